package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/lookup"
	"github.com/xaenox/rc-intel-bot/internal/models"
	"github.com/xaenox/rc-intel-bot/internal/quota"
	"github.com/xaenox/rc-intel-bot/internal/rc"
	"github.com/xaenox/rc-intel-bot/internal/report"
)

// BatchRejectedError is returned when a batch holds more identifiers than
// the user may process now. Nothing of a rejected batch is processed.
type BatchRejectedError struct {
	Requested int
	Cap       int
}

func (e *BatchRejectedError) Error() string {
	return fmt.Sprintf("batch of %d exceeds cap of %d", e.Requested, e.Cap)
}

// BatchCap is the largest batch a user with the given remaining quota may
// submit.
func BatchCap(maxSize, remaining int) int {
	if remaining == quota.Unlimited {
		return maxSize
	}
	return min(maxSize, remaining)
}

// PlanBatch checks a parsed batch against the cap.
func PlanBatch(ids []string, maxSize, remaining int) error {
	limit := BatchCap(maxSize, remaining)
	if len(ids) > limit {
		return &BatchRejectedError{Requested: len(ids), Cap: limit}
	}
	return nil
}

type batchResult struct {
	ID      string
	report  *models.IntelReport
	summary string
	reason  string
}

func (r batchResult) ok() bool {
	return r.report != nil
}

func (c *Controller) beginBatch(t *turn) error {
	remaining, err := c.requireQuota(t)
	if errors.Is(err, ErrQuotaExceeded) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.sessions.Fire(t.sess, TriggerBatch); err != nil {
		return err
	}
	c.send(t, Reply{Text: batchPromptText(remaining, BatchCap(c.opts.BatchMaxSize, remaining)), Markdown: true})
	return nil
}

func (c *Controller) handleBatch(t *turn) error {
	ids := rc.Split(t.ev.Text)
	if len(ids) == 0 {
		if ok, err := c.advance(t, TriggerRetry); !ok {
			return err
		}
		c.send(t, Reply{Text: msgBatchEmpty})
		return nil
	}

	remaining, err := c.requireQuota(t)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return nil
		}
		return err
	}

	var rejected *BatchRejectedError
	if err := PlanBatch(ids, c.opts.BatchMaxSize, remaining); errors.As(err, &rejected) {
		t.logger.Info("Batch rejected",
			zap.Int("requested", rejected.Requested),
			zap.Int("cap", rejected.Cap))
		if ok, err := c.advance(t, TriggerRetry); !ok {
			return err
		}
		c.send(t, Reply{Text: batchRejectedText(rejected, remaining), Markdown: true})
		return nil
	}

	batchCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	c.sessions.beginBatch(t.sess, cancel)

	logger := t.logger.With(zap.String("batch_id", uuid.NewString()))
	logger.Info("Batch started", zap.Int("size", len(ids)))
	c.send(t, Reply{Text: batchStartedText(len(ids)), Markdown: true})

	results, err := c.runBatch(t, batchCtx, ids, logger)
	if err != nil {
		logger.Error("Batch stopped", zap.Int("processed", len(results)), zap.Error(err))
		c.send(t, Reply{Text: batchSummaryText(results, len(ids), batchAborted), Markdown: true})
		return err
	}
	cancelled := batchCtx.Err() != nil && t.ctx.Err() == nil

	logger.Info("Batch finished",
		zap.Int("processed", len(results)),
		zap.Bool("cancelled", cancelled))
	outcome := batchComplete
	if cancelled {
		outcome = batchCancelled
	}
	c.send(t, Reply{Text: batchSummaryText(results, len(ids), outcome), Markdown: true})

	var reports []*models.IntelReport
	for _, r := range results {
		if r.ok() {
			reports = append(reports, r.report)
		}
	}
	if len(reports) > 0 && !cancelled {
		c.send(t, Reply{Text: msgSendingReports})
		for _, r := range reports {
			c.sendReport(t, r)
		}
	}

	return c.sessions.finishBatch(t.sess)
}

// runBatch processes ids in order until done or batchCtx is cancelled. The
// lookup itself runs on the turn context so an in-flight fetch completes.
// On a store error the results gathered so far are returned with it.
func (c *Controller) runBatch(t *turn, batchCtx context.Context, ids []string, logger *zap.Logger) ([]batchResult, error) {
	results := make([]batchResult, 0, len(ids))
	delay := false

	for _, id := range ids {
		if delay {
			if err := c.opts.Sleep(batchCtx, c.opts.BatchItemDelay); err != nil {
				break
			}
		}
		if batchCtx.Err() != nil {
			break
		}

		if !rc.IsValid(id) {
			results = append(results, batchResult{ID: id, reason: "Invalid format"})
			c.metrics.ObserveBatchItem(false)
			delay = false
			continue
		}

		if _, err := c.ledger.RecordActivity(t.ctx, t.ev.Identity); err != nil {
			return results, err
		}

		r, lookupErr := c.lookups.Lookup(t.ctx, id)
		c.logQuery(t, id, lookupErr)
		c.metrics.ObserveBatchItem(lookupErr == nil)
		delay = true

		if lookupErr != nil {
			logger.Warn("Batch item failed", zap.String("rc_number", id), zap.Error(lookupErr))
			results = append(results, batchResult{ID: id, reason: lookup.Describe(lookupErr)})
			continue
		}
		results = append(results, batchResult{ID: id, report: r, summary: report.Summary(r)})
	}

	return results, nil
}
