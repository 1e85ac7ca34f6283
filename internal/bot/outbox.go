package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/conversation"
)

const (
	callbackLookup       = "single_lookup"
	callbackBatch        = "batch_mode"
	callbackStats        = "user_stats"
	callbackHelp         = "help"
	callbackFeedback     = "feedback"
	callbackMenu         = "back_to_menu"
	callbackAdminRefresh = "admin_refresh"
)

// Sender is the part of *tgbotapi.BotAPI the outbox needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Outbox sends controller replies as Telegram messages.
type Outbox struct {
	api    Sender
	logger *zap.Logger
}

func NewOutbox(api Sender, logger *zap.Logger) *Outbox {
	return &Outbox{api: api, logger: logger}
}

// Send delivers reply to chatID. Markdown that Telegram refuses to parse is
// resent as plain text.
func (o *Outbox) Send(ctx context.Context, chatID int64, reply conversation.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if markup, ok := keyboard(reply.Menu); ok {
		msg.ReplyMarkup = markup
	}

	_, err := o.api.Send(msg)
	if err != nil && reply.Markdown {
		o.logger.Warn("Markdown message rejected, resending as plain text",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		msg.ParseMode = ""
		_, err = o.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

func keyboard(menu conversation.Menu) (tgbotapi.InlineKeyboardMarkup, bool) {
	switch menu {
	case conversation.MainMenu:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔍 Lookup Vehicle", callbackLookup)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Batch Process", callbackBatch)),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📈 My Stats", callbackStats),
				tgbotapi.NewInlineKeyboardButtonData("ℹ️ Help", callbackHelp),
			),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💬 Feedback", callbackFeedback)),
		), true
	case conversation.BackMenu:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Back to Menu", callbackMenu)),
		), true
	case conversation.AfterLookupMenu:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔍 Lookup Another", callbackLookup)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Main Menu", callbackMenu)),
		), true
	case conversation.AdminMenu:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh Stats", callbackAdminRefresh)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Back to Menu", callbackMenu)),
		), true
	}
	return tgbotapi.InlineKeyboardMarkup{}, false
}
