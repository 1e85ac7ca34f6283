package conversation

import (
	"errors"
	"fmt"
)

type State int

const (
	Idle State = iota
	AwaitingIdentifier
	AwaitingBatchInput
	AwaitingFeedback
)

var states = []State{Idle, AwaitingIdentifier, AwaitingBatchInput, AwaitingFeedback}

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingIdentifier:
		return "awaiting_identifier"
	case AwaitingBatchInput:
		return "awaiting_batch_input"
	case AwaitingFeedback:
		return "awaiting_feedback"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Trigger int

const (
	TriggerLookup Trigger = iota
	TriggerBatch
	TriggerFeedback
	TriggerRetry  // invalid input, prompt again
	TriggerDone   // turn finished
	TriggerCancel // explicit cancel or menu navigation
)

func (t Trigger) String() string {
	switch t {
	case TriggerLookup:
		return "lookup"
	case TriggerBatch:
		return "batch"
	case TriggerFeedback:
		return "feedback"
	case TriggerRetry:
		return "retry"
	case TriggerDone:
		return "done"
	case TriggerCancel:
		return "cancel"
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

var ErrIllegalTransition = errors.New("illegal state transition")

// Transitions maps each state to the triggers it accepts and their targets.
type Transitions map[State]map[Trigger]State

// DefaultTransitions lets a user switch modes from any state. Retry and Done
// are only meaningful while waiting for input.
func DefaultTransitions() Transitions {
	enter := func(extra map[Trigger]State) map[Trigger]State {
		m := map[Trigger]State{
			TriggerLookup:   AwaitingIdentifier,
			TriggerBatch:    AwaitingBatchInput,
			TriggerFeedback: AwaitingFeedback,
			TriggerCancel:   Idle,
		}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}

	return Transitions{
		Idle:               enter(nil),
		AwaitingIdentifier: enter(map[Trigger]State{TriggerRetry: AwaitingIdentifier, TriggerDone: Idle}),
		AwaitingBatchInput: enter(map[Trigger]State{TriggerRetry: AwaitingBatchInput, TriggerDone: Idle}),
		AwaitingFeedback:   enter(map[Trigger]State{TriggerRetry: AwaitingFeedback, TriggerDone: Idle}),
	}
}

type Machine struct {
	table Transitions
}

// NewMachine validates table: every state must be known and cancellable to
// Idle, Retry must keep the state, and Done must return to Idle.
func NewMachine(table Transitions) (*Machine, error) {
	known := make(map[State]bool, len(states))
	for _, s := range states {
		known[s] = true
	}

	for _, s := range states {
		if _, ok := table[s]; !ok {
			return nil, fmt.Errorf("state %s has no transitions", s)
		}
	}

	for from, edges := range table {
		if !known[from] {
			return nil, fmt.Errorf("unknown state %s", from)
		}
		if to, ok := edges[TriggerCancel]; !ok || to != Idle {
			return nil, fmt.Errorf("state %s must cancel to %s", from, Idle)
		}
		for trigger, to := range edges {
			if !known[to] {
				return nil, fmt.Errorf("%s --%s--> unknown state %s", from, trigger, to)
			}
			if trigger == TriggerRetry && to != from {
				return nil, fmt.Errorf("%s --%s--> %s must stay in %s", from, trigger, to, from)
			}
			if trigger == TriggerDone && to != Idle {
				return nil, fmt.Errorf("%s --%s--> %s must return to %s", from, trigger, to, Idle)
			}
		}
	}

	return &Machine{table: table}, nil
}

// Fire returns the state reached from `from` on trigger.
func (m *Machine) Fire(from State, trigger Trigger) (State, error) {
	to, ok := m.table[from][trigger]
	if !ok {
		return from, fmt.Errorf("%w: %s --%s-->", ErrIllegalTransition, from, trigger)
	}
	return to, nil
}
