package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/ghizzi-eng/tg-downloader/app/services"
	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot posts download reports to a chat through the Bot API.
type Bot struct {
	Log    logger.Logger
	ChatID int64

	bot *tgbotapi.BotAPI
}

func NewBot(log logger.Logger, token string, chatID int64) (*Bot, error) {
	return NewBotWithEndpoint(log, token, tgbotapi.APIEndpoint, chatID, &http.Client{})
}

// NewBotWithEndpoint talks to a Bot API server other than the public one.
// endpoint is a format string with the token and method verbs.
func NewBotWithEndpoint(log logger.Logger, token, endpoint string, chatID int64, client *http.Client) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("creating bot api: %w", err)
	}

	log.Info("notification bot ready", "username", bot.Self.UserName, "chat_id", chatID)

	return &Bot{
		Log:    log,
		ChatID: chatID,
		bot:    bot,
	}, nil
}

// Report sends the summary of a download run.
func (b *Bot) Report(ctx context.Context, conv e.Conversation, topic string, report services.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(b.ChatID, FormatReport(conv, topic, report))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.bot.Send(msg); err != nil {
		return fmt.Errorf("sending report: %w", err)
	}

	b.Log.Debug("report sent", "chat_id", b.ChatID)

	return nil
}

func FormatReport(conv e.Conversation, topic string, r services.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>Download finished</b>\n%s", html.EscapeString(conv.Title))
	if topic != "" {
		fmt.Fprintf(&sb, " / %s", html.EscapeString(topic))
	}
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Found: %d\n", r.Found)
	fmt.Fprintf(&sb, "Pending: %d\n", r.Pending)
	fmt.Fprintf(&sb, "Downloaded: %d\n", r.Downloaded)
	fmt.Fprintf(&sb, "Already present: %d\n", r.Skipped)
	if r.Ignored > 0 {
		fmt.Fprintf(&sb, "Ignored: %d\n", r.Ignored)
	}
	fmt.Fprintf(&sb, "Failed: %d", r.Failed)

	return sb.String()
}
