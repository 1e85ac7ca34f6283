// Package quota tracks per-user daily lookup counts.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/rc-intel-bot/internal/models"
	"github.com/xaenox/rc-intel-bot/internal/storage"
)

// Unlimited is reported as the remaining count for premium users.
const Unlimited = -1

type Ledger struct {
	store      storage.UserStorage
	dailyLimit int
	now        func() time.Time
}

func NewLedger(store storage.UserStorage, dailyLimit int) *Ledger {
	return &Ledger{
		store:      store,
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
}

// WithClock replaces the clock used to derive the calendar day.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) Limit() int {
	return l.dailyLimit
}

// RecordActivity counts one query for the user. The store performs the
// increment-or-reset atomically.
func (l *Ledger) RecordActivity(ctx context.Context, identity models.Identity) (*models.User, error) {
	now := l.now()
	user, err := l.store.RecordUserActivity(ctx, identity, models.Day(now), now)
	if err != nil {
		return nil, fmt.Errorf("record activity for user %d: %w", identity.ID, err)
	}
	return user, nil
}

// Check reports whether the user may query now and how many queries remain
// today. Remaining is Unlimited for premium users.
func (l *Ledger) Check(ctx context.Context, userID int64) (bool, int, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return false, 0, fmt.Errorf("check quota for user %d: %w", userID, err)
	}
	allowed, remaining := l.evaluate(user)
	return allowed, remaining, nil
}

// Remaining evaluates an already loaded user without touching the store.
func (l *Ledger) Remaining(user *models.User) int {
	_, remaining := l.evaluate(user)
	return remaining
}

func (l *Ledger) evaluate(user *models.User) (bool, int) {
	if user == nil {
		return l.dailyLimit > 0, l.dailyLimit
	}
	if user.IsBanned {
		return false, 0
	}
	if user.IsPremium {
		return true, Unlimited
	}

	usedToday := user.QueriesToday
	if user.LastQueryDate != models.Day(l.now()) {
		usedToday = 0
	}
	remaining := l.dailyLimit - usedToday
	if remaining < 0 {
		remaining = 0
	}
	return remaining > 0, remaining
}
