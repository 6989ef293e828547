package credstore

import (
	"io/fs"

	"option_terminal/internal/modules/config"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const tokenKey = "api_token"

// Store persists the API token in a local key-value file. Read once at
// startup, written only on explicit save from the settings flow.
type Store struct {
	path string
	v    *viper.Viper
}

func NewStore(cfg *config.Config) *Store {
	v := viper.New()
	v.SetConfigFile(cfg.CredentialFile)
	v.SetConfigType("yaml")
	return &Store{path: cfg.CredentialFile, v: v}
}

// Load returns the saved token, or "" when no file exists yet (anonymous
// mode is a normal state, not an error).
func (s *Store) Load() (string, error) {
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", errors.Wrap(err, "read credential file")
	}
	return s.v.GetString(tokenKey), nil
}

func (s *Store) Save(token string) error {
	s.v.Set(tokenKey, token)
	return errors.Wrap(s.v.WriteConfigAs(s.path), "write credential file")
}
