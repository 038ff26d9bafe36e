// Package notify — операторские уведомления: телеграм при настроенном
// токене, иначе stdout-лог.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"magic_bot/internal/modules/config"
	"magic_bot/pkg/logger"
)

type Notifier interface {
	Send(ctx context.Context, text string)
	Sendf(ctx context.Context, format string, args ...any)
}

func NewNotifier(cfg *config.Config) Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		return &logNotifier{}
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Error("telegram_init_failed err=%v", err)
		return &logNotifier{}
	}
	return &telegramNotifier{bot: bot, chatID: cfg.Telegram.ChatID}
}

type telegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func (n *telegramNotifier) Send(_ context.Context, text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		logger.Error("telegram_send_failed err=%v", err)
	}
}

func (n *telegramNotifier) Sendf(ctx context.Context, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}

type logNotifier struct{}

func (n *logNotifier) Send(_ context.Context, text string) {
	logger.Info("notify %s", text)
}

func (n *logNotifier) Sendf(ctx context.Context, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}
