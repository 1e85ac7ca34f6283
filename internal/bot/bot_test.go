package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xaenox/rc-intel-bot/internal/conversation"
	"github.com/xaenox/rc-intel-bot/internal/models"
)

func commandUpdate(text, command string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: 42, UserName: "alice", FirstName: "Alice"},
		Chat:     &tgbotapi.Chat{ID: 100},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}},
	}}
}

func TestToEvent_Commands(t *testing.T) {
	tests := []struct {
		text    string
		command string
		action  conversation.Action
		args    string
	}{
		{"/start", "start", conversation.ActionStart, ""},
		{"/lookup", "lookup", conversation.ActionLookup, ""},
		{"/batch", "batch", conversation.ActionBatch, ""},
		{"/cancel", "cancel", conversation.ActionCancel, ""},
		{"/premium 7 off", "premium", conversation.ActionPremium, "7 off"},
		{"/broadcast hello all", "broadcast", conversation.ActionBroadcast, "hello all"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			ev, ok := toEvent(commandUpdate(tt.text, tt.command))
			require.True(t, ok)
			assert.Equal(t, tt.action, ev.Action)
			assert.Equal(t, tt.args, ev.Text)
			assert.Equal(t, int64(100), ev.ChatID)
			assert.Equal(t, models.Identity{ID: 42, Username: "alice", FirstName: "Alice"}, ev.Identity)
		})
	}
}

func TestToEvent_UnknownCommandIgnored(t *testing.T) {
	_, ok := toEvent(commandUpdate("/unknown", "unknown"))
	assert.False(t, ok)
}

func TestToEvent_Text(t *testing.T) {
	ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "MH12DE1433",
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 100},
	}})
	require.True(t, ok)
	assert.Equal(t, conversation.ActionText, ev.Action)
	assert.Equal(t, "MH12DE1433", ev.Text)
}

func TestToEvent_Dropped(t *testing.T) {
	tests := map[string]tgbotapi.Update{
		"empty update": {},
		"no sender":    {Message: &tgbotapi.Message{Text: "hi", Chat: &tgbotapi.Chat{ID: 1}}},
		"photo":        {Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}}},

		"unknown callback": {CallbackQuery: &tgbotapi.CallbackQuery{
			Data:    "nope",
			From:    &tgbotapi.User{ID: 1},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
		}},
	}

	for name, update := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok := toEvent(update)
			assert.False(t, ok)
		})
	}
}

func TestToEvent_Callbacks(t *testing.T) {
	tests := map[string]conversation.Action{
		callbackLookup:       conversation.ActionLookup,
		callbackBatch:        conversation.ActionBatch,
		callbackStats:        conversation.ActionStats,
		callbackHelp:         conversation.ActionHelp,
		callbackFeedback:     conversation.ActionFeedback,
		callbackMenu:         conversation.ActionMenu,
		callbackAdminRefresh: conversation.ActionAdmin,
	}

	for data, action := range tests {
		t.Run(data, func(t *testing.T) {
			ev, ok := toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID:      "cb1",
				Data:    data,
				From:    &tgbotapi.User{ID: 7, FirstName: "Bob"},
				Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 700}},
			}})
			require.True(t, ok)
			assert.Equal(t, action, ev.Action)
			assert.Equal(t, int64(7), ev.Identity.ID)
			assert.Equal(t, int64(700), ev.ChatID)
		})
	}
}

type fakeSender struct {
	sent           []tgbotapi.MessageConfig
	rejectMarkdown bool
	err            error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if f.rejectMarkdown && msg.ParseMode != "" {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestOutbox_Send(t *testing.T) {
	sender := &fakeSender{}
	outbox := NewOutbox(sender, zaptest.NewLogger(t))

	err := outbox.Send(context.Background(), 100, conversation.Reply{Text: "*hi*", Markdown: true, Menu: conversation.MainMenu})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(100), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, markup.InlineKeyboard, 4)
	assert.Equal(t, callbackLookup, *markup.InlineKeyboard[0][0].CallbackData)
}

func TestOutbox_PlainWithoutMenu(t *testing.T) {
	sender := &fakeSender{}
	outbox := NewOutbox(sender, zaptest.NewLogger(t))

	require.NoError(t, outbox.Send(context.Background(), 1, conversation.Reply{Text: "plain"}))
	require.Len(t, sender.sent, 1)
	assert.Empty(t, sender.sent[0].ParseMode)
	assert.Nil(t, sender.sent[0].ReplyMarkup)
}

func TestOutbox_MarkdownFallback(t *testing.T) {
	sender := &fakeSender{rejectMarkdown: true}
	outbox := NewOutbox(sender, zaptest.NewLogger(t))

	err := outbox.Send(context.Background(), 1, conversation.Reply{Text: "owner_name *", Markdown: true})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Empty(t, sender.sent[1].ParseMode)
	assert.Equal(t, "owner_name *", sender.sent[1].Text)
}

func TestOutbox_SendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}
	outbox := NewOutbox(sender, zaptest.NewLogger(t))

	err := outbox.Send(context.Background(), 1, conversation.Reply{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestOutbox_CancelledContext(t *testing.T) {
	sender := &fakeSender{}
	outbox := NewOutbox(sender, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, outbox.Send(ctx, 1, conversation.Reply{Text: "hello"}), context.Canceled)
	assert.Empty(t, sender.sent)
}

func TestKeyboards(t *testing.T) {
	_, ok := keyboard(conversation.NoMenu)
	assert.False(t, ok)

	for _, menu := range []conversation.Menu{conversation.MainMenu, conversation.BackMenu, conversation.AfterLookupMenu, conversation.AdminMenu} {
		markup, ok := keyboard(menu)
		require.True(t, ok)
		assert.NotEmpty(t, markup.InlineKeyboard)
	}
}
