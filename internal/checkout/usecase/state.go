package usecase

import (
	"errors"
	"fmt"
)

type State string

const (
	StateIdle                State = "IDLE"
	StateValidating          State = "VALIDATING"
	StateCreatingReservation State = "CREATING_RESERVATION"
	StateInitiatingPayment   State = "INITIATING_PAYMENT"
	StateComplete            State = "COMPLETE"
	StateFailed              State = "FAILED"
)

var ErrIllegalTransition = errors.New("illegal checkout transition")

var transitions = map[State][]State{
	StateIdle:                {StateValidating},
	StateValidating:          {StateIdle, StateCreatingReservation, StateFailed},
	StateCreatingReservation: {StateInitiatingPayment, StateComplete, StateFailed},
	StateInitiatingPayment:   {StateComplete, StateFailed},
}

func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// machine tracks one attempt. Every state it passes through is kept in
// trail, starting with IDLE.
type machine struct {
	state State
	trail []State
}

func newMachine() *machine {
	return &machine{state: StateIdle, trail: []State{StateIdle}}
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
	}
	m.state = next
	m.trail = append(m.trail, next)
	return nil
}
