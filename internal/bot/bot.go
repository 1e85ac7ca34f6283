// Package bot connects the conversation controller to the Telegram Bot API.
package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/conversation"
	"github.com/xaenox/rc-intel-bot/internal/models"
)

// Handler consumes translated events.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	handler     Handler
	pollTimeout int
	logger      *zap.Logger
	wg          sync.WaitGroup
}

func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return api, nil
}

func New(api *tgbotapi.BotAPI, handler Handler, pollTimeout int, logger *zap.Logger) *Bot {
	return &Bot{
		api:         api,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start long-polls for updates until ctx is done, handling each update on
// its own goroutine. It returns after in-flight updates have finished.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.logger.Warn("Failed to answer callback", zap.Error(err), zap.String("data", cb.Data))
		}
	}

	ev, ok := toEvent(update)
	if !ok {
		return
	}
	b.handler.Handle(ctx, ev)
}

var commands = map[string]conversation.Action{
	"start":     conversation.ActionStart,
	"help":      conversation.ActionHelp,
	"menu":      conversation.ActionMenu,
	"lookup":    conversation.ActionLookup,
	"batch":     conversation.ActionBatch,
	"feedback":  conversation.ActionFeedback,
	"stats":     conversation.ActionStats,
	"admin":     conversation.ActionAdmin,
	"cancel":    conversation.ActionCancel,
	"premium":   conversation.ActionPremium,
	"ban":       conversation.ActionBan,
	"unban":     conversation.ActionUnban,
	"broadcast": conversation.ActionBroadcast,
}

var callbacks = map[string]conversation.Action{
	callbackLookup:       conversation.ActionLookup,
	callbackBatch:        conversation.ActionBatch,
	callbackStats:        conversation.ActionStats,
	callbackHelp:         conversation.ActionHelp,
	callbackFeedback:     conversation.ActionFeedback,
	callbackMenu:         conversation.ActionMenu,
	callbackAdminRefresh: conversation.ActionAdmin,
}

func identity(u *tgbotapi.User) models.Identity {
	return models.Identity{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// toEvent translates an update. Updates without a sender, unknown commands
// and non-text messages are dropped.
func toEvent(update tgbotapi.Update) (conversation.Event, bool) {
	if cb := update.CallbackQuery; cb != nil {
		action, ok := callbacks[cb.Data]
		if !ok || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return conversation.Event{}, false
		}
		return conversation.Event{
			Action:   action,
			Identity: identity(cb.From),
			ChatID:   cb.Message.Chat.ID,
		}, true
	}

	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return conversation.Event{}, false
	}

	ev := conversation.Event{
		Identity: identity(message.From),
		ChatID:   message.Chat.ID,
	}

	if message.IsCommand() {
		action, ok := commands[message.Command()]
		if !ok {
			return conversation.Event{}, false
		}
		ev.Action = action
		ev.Text = message.CommandArguments()
		return ev, true
	}

	if message.Text == "" {
		return conversation.Event{}, false
	}
	ev.Action = conversation.ActionText
	ev.Text = message.Text
	return ev, true
}
