package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/models"
)

func (c *Controller) beginFeedback(t *turn) error {
	if err := c.sessions.Fire(t.sess, TriggerFeedback); err != nil {
		return err
	}
	c.send(t, Reply{Text: msgFeedbackPrompt, Markdown: true})
	return nil
}

func (c *Controller) handleFeedback(t *turn) error {
	text := strings.TrimSpace(t.ev.Text)
	if utf8.RuneCountInString(text) < c.opts.MinFeedbackLength {
		if ok, err := c.advance(t, TriggerRetry); !ok {
			return err
		}
		c.send(t, Reply{Text: fmt.Sprintf(msgFeedbackShort, c.opts.MinFeedbackLength)})
		return nil
	}

	fb := &models.Feedback{
		UserID:    t.ev.Identity.ID,
		Username:  t.ev.Identity.Username,
		Message:   text,
		Category:  c.classifier.Classify(t.ctx, text),
		Timestamp: c.now(),
	}
	if err := c.store.SaveFeedback(t.ctx, fb); err != nil {
		return err
	}
	t.logger.Info("Feedback received", zap.String("category", string(fb.Category)))

	if ok, err := c.advance(t, TriggerDone); err != nil {
		return err
	} else if ok {
		c.send(t, Reply{Text: msgFeedbackThanks, Markdown: true, Menu: BackMenu})
	}

	notice := Reply{Text: feedbackNoticeText(t.ev.Identity, fb), Markdown: true}
	for id := range c.admins {
		if err := c.outbox.Send(t.ctx, id, notice); err != nil {
			t.logger.Error("Failed to notify admin", zap.Int64("admin_id", id), zap.Error(err))
		}
	}
	return nil
}
