package conversation

import (
	"errors"

	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/lookup"
	"github.com/xaenox/rc-intel-bot/internal/rc"
)

func (c *Controller) beginLookup(t *turn) error {
	remaining, err := c.requireQuota(t)
	if errors.Is(err, ErrQuotaExceeded) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.sessions.Fire(t.sess, TriggerLookup); err != nil {
		return err
	}
	c.send(t, Reply{Text: lookupPromptText(remaining), Markdown: true})
	return nil
}

// handleIdentifier runs one single lookup. Every message is counted before
// the quota is checked again, including malformed identifiers.
func (c *Controller) handleIdentifier(t *turn) error {
	if _, err := c.ledger.RecordActivity(t.ctx, t.ev.Identity); err != nil {
		return err
	}

	if _, err := c.requireQuota(t); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return nil
		}
		return err
	}

	id := rc.Normalize(t.ev.Text)
	if !rc.IsValid(id) {
		t.logger.Info("Invalid RC number", zap.String("input", t.ev.Text))
		if ok, err := c.advance(t, TriggerRetry); !ok {
			return err
		}
		c.send(t, Reply{Text: msgInvalidFormat, Markdown: true})
		return nil
	}

	c.send(t, Reply{Text: processingText(id), Markdown: true})

	r, lookupErr := c.lookups.Lookup(t.ctx, id)
	c.logQuery(t, id, lookupErr)

	if lookupErr != nil {
		t.logger.Warn("Lookup failed", zap.String("rc_number", id), zap.Error(lookupErr))
		c.send(t, Reply{Text: lookupFailedText(lookup.Describe(lookupErr)), Markdown: true})
	} else {
		t.logger.Info("Lookup completed",
			zap.String("rc_number", id),
			zap.Bool("from_cache", r.Meta.FromCache))
		c.sendReport(t, r)
	}

	if ok, err := c.advance(t, TriggerDone); !ok {
		return err
	}
	c.send(t, Reply{Text: divider, Menu: AfterLookupMenu})
	return nil
}
