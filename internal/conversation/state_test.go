package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransitions(t *testing.T) {
	m, err := NewMachine(DefaultTransitions())
	require.NoError(t, err)

	tests := []struct {
		from    State
		trigger Trigger
		want    State
	}{
		{Idle, TriggerLookup, AwaitingIdentifier},
		{Idle, TriggerBatch, AwaitingBatchInput},
		{Idle, TriggerFeedback, AwaitingFeedback},
		{Idle, TriggerCancel, Idle},
		{AwaitingIdentifier, TriggerRetry, AwaitingIdentifier},
		{AwaitingIdentifier, TriggerDone, Idle},
		{AwaitingIdentifier, TriggerBatch, AwaitingBatchInput},
		{AwaitingBatchInput, TriggerRetry, AwaitingBatchInput},
		{AwaitingBatchInput, TriggerCancel, Idle},
		{AwaitingFeedback, TriggerDone, Idle},
	}
	for _, tt := range tests {
		got, err := m.Fire(tt.from, tt.trigger)
		require.NoError(t, err, "%s --%s-->", tt.from, tt.trigger)
		assert.Equal(t, tt.want, got, "%s --%s-->", tt.from, tt.trigger)
	}
}

func TestMachine_IllegalTransition(t *testing.T) {
	m, err := NewMachine(DefaultTransitions())
	require.NoError(t, err)

	for _, trigger := range []Trigger{TriggerRetry, TriggerDone} {
		got, err := m.Fire(Idle, trigger)
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, Idle, got)
	}
}

func TestNewMachine_RejectsInvalidTables(t *testing.T) {
	tests := map[string]func(Transitions){
		"missing state": func(tr Transitions) {
			delete(tr, AwaitingFeedback)
		},
		"no cancel": func(tr Transitions) {
			delete(tr[AwaitingIdentifier], TriggerCancel)
		},
		"retry moves": func(tr Transitions) {
			tr[AwaitingBatchInput][TriggerRetry] = Idle
		},
		"done stays": func(tr Transitions) {
			tr[AwaitingIdentifier][TriggerDone] = AwaitingIdentifier
		},
		"unknown target": func(tr Transitions) {
			tr[Idle][TriggerLookup] = State(99)
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			table := DefaultTransitions()
			mutate(table)
			_, err := NewMachine(table)
			assert.Error(t, err)
		})
	}
}

func TestBatchCap(t *testing.T) {
	assert.Equal(t, 5, BatchCap(10, 5))
	assert.Equal(t, 10, BatchCap(10, 50))
	assert.Equal(t, 10, BatchCap(10, -1))
	assert.Equal(t, 0, BatchCap(10, 0))
}

func TestPlanBatch(t *testing.T) {
	ids := make([]string, 12)
	err := PlanBatch(ids, 10, 5)

	var rejected *BatchRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 5, rejected.Cap)
	assert.Equal(t, 12, rejected.Requested)

	assert.NoError(t, PlanBatch(ids[:5], 10, 5))
	assert.NoError(t, PlanBatch(ids[:10], 10, -1))
}

func TestSessions_FireUnlessCancelled(t *testing.T) {
	m, err := NewMachine(DefaultTransitions())
	require.NoError(t, err)
	sessions := NewSessions(m, nil)
	sess := sessions.Get(42)

	require.NoError(t, sessions.Fire(sess, TriggerLookup))
	epoch := sess.Epoch()

	ok, err := sessions.FireUnlessCancelled(sess, epoch, TriggerRetry)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, AwaitingIdentifier, sess.State())

	require.NoError(t, sessions.Cancel(sess))
	ok, err = sessions.FireUnlessCancelled(sess, epoch, TriggerDone)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Idle, sess.State())

	sessions.Reset(sess)
	assert.Equal(t, epoch+2, sess.Epoch())
}
