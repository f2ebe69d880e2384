// Package checkout drives a shopper from seat selection to a confirmed
// ticket.  Progress is held in an explicit Session persisted between
// requests, so any server instance can serve the next step.
package checkout

import (
    "errors"
    "fmt"
)

// State is a checkout step.
type State string

const (
    StateSelection    State = "selection"
    StatePayment      State = "payment"
    StateConfirmation State = "confirmation"
    StateError        State = "error"
)

var ErrInvalidTransition = errors.New("invalid checkout transition")

var transitions = map[State][]State{
    StateSelection:    {StatePayment, StateError},
    StatePayment:      {StateConfirmation, StateError},
    StateError:        {StatePayment},
    StateConfirmation: {StateSelection},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
    for _, s := range transitions[from] {
        if s == to {
            return true
        }
    }
    return false
}

// ValidateTransition returns ErrInvalidTransition for an illegal move.
func ValidateTransition(from, to State) error {
    if !CanTransition(from, to) {
        return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
    }
    return nil
}

// CanClose reports whether the shopper may close the flow.  Payment has no
// direct exit.
func CanClose(s State) bool {
    switch s {
    case StateSelection, StateError, StateConfirmation:
        return true
    }
    return false
}
