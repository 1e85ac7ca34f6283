package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

func (c *Controller) stats(t *turn) error {
	user, err := c.store.GetUser(t.ctx, t.ev.Identity.ID)
	if err != nil {
		return err
	}
	if user == nil || user.QueriesCount == 0 {
		c.send(t, Reply{Text: msgNoStats, Menu: BackMenu})
		return nil
	}

	recent, err := c.store.RecentQueries(t.ctx, user.ID, recentQueriesShown)
	if err != nil {
		return err
	}

	stats := &models.UserStats{
		User:          *user,
		Remaining:     c.ledger.Remaining(user),
		RecentQueries: recent,
	}
	c.send(t, Reply{Text: statsText(t.ev.Identity, stats), Markdown: true, Menu: BackMenu})
	return nil
}

func (c *Controller) admin(t *turn) error {
	if !c.requireAdmin(t) {
		return nil
	}

	stats, err := c.store.AdminStats(t.ctx, models.Day(c.now()))
	if err != nil {
		return err
	}
	if c.cache != nil {
		size, err := c.cache.Size(t.ctx)
		if err != nil {
			t.logger.Warn("Failed to count cache entries", zap.Error(err))
		} else {
			stats.CacheSize = size
		}
	}

	feedback, err := c.store.RecentFeedback(t.ctx, recentFeedbackShown)
	if err != nil {
		return err
	}

	c.send(t, Reply{Text: adminText(stats, feedback), Markdown: true, Menu: AdminMenu})
	return nil
}

// moderate handles /premium <id> [off], /ban <id> and /unban <id>.
func (c *Controller) moderate(t *turn) error {
	if !c.requireAdmin(t) {
		return nil
	}

	args := strings.Fields(t.ev.Text)
	var userID int64
	var err error
	if len(args) > 0 {
		userID, err = strconv.ParseInt(args[0], 10, 64)
	}
	if len(args) == 0 || err != nil {
		c.send(t, Reply{Text: fmt.Sprintf("Usage: /%s <user id>", t.ev.Action)})
		return nil
	}
	enable := len(args) < 2 || !strings.EqualFold(args[1], "off")

	var text string
	switch t.ev.Action {
	case ActionPremium:
		err = c.store.SetPremium(t.ctx, userID, enable)
		text = fmt.Sprintf("💎 Premium %s for user %d.", onOff(enable), userID)
	case ActionBan:
		err = c.store.SetBanned(t.ctx, userID, true)
		text = fmt.Sprintf("⛔ User %d banned.", userID)
	case ActionUnban:
		err = c.store.SetBanned(t.ctx, userID, false)
		text = fmt.Sprintf("✅ User %d unbanned.", userID)
	}
	if err != nil {
		return err
	}

	t.logger.Info("User moderated", zap.Int64("target_user_id", userID), zap.Bool("enable", enable))
	c.send(t, Reply{Text: text})
	return nil
}

func onOff(enable bool) string {
	if enable {
		return "enabled"
	}
	return "disabled"
}

// broadcast sends the text to every known user. Delivery failures are
// counted and do not stop the broadcast.
func (c *Controller) broadcast(t *turn) error {
	if !c.requireAdmin(t) {
		return nil
	}

	text := strings.TrimSpace(t.ev.Text)
	if text == "" {
		c.send(t, Reply{Text: "Usage: /broadcast <message>"})
		return nil
	}

	ids, err := c.store.ListUserIDs(t.ctx)
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, id := range ids {
		if err := t.ctx.Err(); err != nil {
			return err
		}
		if err := c.outbox.Send(t.ctx, id, Reply{Text: "📢 " + text}); err != nil {
			t.logger.Warn("Broadcast delivery failed", zap.Int64("target_user_id", id), zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	t.logger.Info("Broadcast finished", zap.Int("sent", sent), zap.Int("failed", failed))
	c.send(t, Reply{Text: fmt.Sprintf("📢 Broadcast sent to %d users (%d failed).", sent, failed)})
	return nil
}
