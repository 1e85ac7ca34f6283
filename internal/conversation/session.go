package conversation

import (
	"context"
	"sync"

	"github.com/xaenox/rc-intel-bot/internal/metrics"
)

// Session is the conversation state of one user. The turn lock serializes
// turns; mu guards state and the running batch and is never held across I/O.
type Session struct {
	UserID int64

	turn sync.Mutex

	mu          sync.Mutex
	state       State
	cancelBatch context.CancelFunc
	epoch       uint64 // bumped by Cancel and Reset
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch identifies the session between cancellations. A turn reads it when
// it starts and passes it to FireUnlessCancelled.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Sessions holds one Session per user for the lifetime of the process.
type Sessions struct {
	mu      sync.Mutex
	byUser  map[int64]*Session
	machine *Machine
	metrics *metrics.Metrics
}

func NewSessions(machine *Machine, m *metrics.Metrics) *Sessions {
	return &Sessions{
		byUser:  make(map[int64]*Session),
		machine: machine,
		metrics: m,
	}
}

func (r *Sessions) Get(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byUser[userID]
	if !ok {
		sess = &Session{UserID: userID, state: Idle}
		r.byUser[userID] = sess
	}
	return sess
}

// Fire applies trigger to the session state.
func (r *Sessions) Fire(sess *Session, trigger Trigger) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return r.fireLocked(sess, trigger)
}

func (r *Sessions) fireLocked(sess *Session, trigger Trigger) error {
	next, err := r.machine.Fire(sess.state, trigger)
	if err != nil {
		return err
	}
	r.setLocked(sess, next)
	return nil
}

func (r *Sessions) setLocked(sess *Session, next State) {
	switch {
	case sess.state == Idle && next != Idle:
		r.metrics.SessionOpened()
	case sess.state != Idle && next == Idle:
		r.metrics.SessionClosed()
	}
	sess.state = next
}

// Cancel stops a running batch and returns the session to Idle.
func (r *Sessions) Cancel(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancelBatch != nil {
		sess.cancelBatch()
		sess.cancelBatch = nil
	}
	sess.epoch++
	return r.fireLocked(sess, TriggerCancel)
}

// Reset forces the session to Idle without consulting the transition table.
func (r *Sessions) Reset(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancelBatch != nil {
		sess.cancelBatch()
		sess.cancelBatch = nil
	}
	sess.epoch++
	r.setLocked(sess, Idle)
}

// FireUnlessCancelled applies trigger only if the session was not cancelled
// or reset since epoch. It reports whether the trigger was applied.
func (r *Sessions) FireUnlessCancelled(sess *Session, epoch uint64, trigger Trigger) (bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.epoch != epoch {
		return false, nil
	}
	if err := r.fireLocked(sess, trigger); err != nil {
		return false, err
	}
	return true, nil
}

// beginBatch registers cancel so a concurrent Cancel can stop the batch.
func (r *Sessions) beginBatch(sess *Session, cancel context.CancelFunc) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.cancelBatch = cancel
}

// finishBatch fires Done unless Cancel already stopped the batch and
// returned the session to Idle.
func (r *Sessions) finishBatch(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancelBatch == nil {
		return nil
	}
	sess.cancelBatch = nil
	return r.fireLocked(sess, TriggerDone)
}
