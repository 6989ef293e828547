package notify

import (
	"context"
	"fmt"

	"option_terminal/internal/modules/config"
	"option_terminal/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
	SendService(ctx context.Context, format string, args ...any)
}

// New picks telegram when a token is configured, stdout otherwise. A bad
// token degrades to stdout so a misconfigured notifier never blocks trading.
func New(cfg *config.Config) Notifier {
	if cfg.Telegram.Token == "" {
		return NewStdout()
	}
	t, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		logger.Error("notify: telegram init failed, falling back to stdout: %v", err)
		return NewStdout()
	}
	return t
}

// Telegram is a passive notifier: settlement and connection messages only,
// no command handling.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) SendService(ctx context.Context, format string, args ...any) {
	t.Sendf(format, args...)
}

// Stdout routes everything into the service log.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("%s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info(format, args...) }
func (s *Stdout) SendService(ctx context.Context, format string, args ...any) {
	logger.Info(format, args...)
}
