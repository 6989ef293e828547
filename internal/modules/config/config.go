package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	gatewayURLENV     = "GATEWAY_URL"
)

// Config ...
type Config struct {
	Gateway struct {
		URL   string `yaml:"url"`
		AppID string `yaml:"app_id"`
	} `yaml:"gateway"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		HealthAddr string `yaml:"health_addr"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Where the saved API token lives (read once at startup, written on save).
	CredentialFile string `yaml:"credential_file"`

	// Request deadlines. Order placement is kept tight so a stuck buy
	// surfaces fast; quote generation on volatile instruments is slower.
	OrderTimeout    time.Duration
	ProposalTimeout time.Duration

	// Panel defaults applied until the user changes them.
	DefaultSymbol   string
	DefaultCurrency string
	DefaultStake    float64
	DefaultDuration int
	DefaultDurUnit  string
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		CredentialFile: getenvDefault("CREDENTIAL_FILE", "credentials.yaml"),

		OrderTimeout:    durationFromEnv("ORDER_TIMEOUT", "15s"),
		ProposalTimeout: durationFromEnv("PROPOSAL_TIMEOUT", "30s"),

		DefaultSymbol:   getenvDefault("DEFAULT_SYMBOL", "R_10"),
		DefaultCurrency: getenvDefault("DEFAULT_CURRENCY", "USD"),
		DefaultStake:    floatFromEnv("DEFAULT_STAKE", 10),
		DefaultDuration: intFromEnv("DEFAULT_DURATION", 5),
		DefaultDurUnit:  getenvDefault("DEFAULT_DURATION_UNIT", "t"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if url := os.Getenv(gatewayURLENV); url != "" {
		config.Gateway.URL = url
	}
	if config.Gateway.URL == "" {
		config.Gateway.URL = "wss://ws.derivws.com/websockets/v3"
	}
	if config.Service.HealthAddr == "" {
		config.Service.HealthAddr = ":8080"
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
