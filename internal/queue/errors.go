package queue

import (
	"errors"
	"fmt"

	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

// ErrLeaseLost is returned when a job is completed after its lease expired
// and another worker reclaimed it.
var ErrLeaseLost = store.ErrLeaseLost

// TerminalClass names a reason to stop retrying a job.
type TerminalClass string

const (
	ClassUnsupportedChain TerminalClass = "unsupported_chain"
	ClassInvalidAddress   TerminalClass = "invalid_address"
	ClassAlwaysDeny       TerminalClass = "always_deny"
	ClassInactive         TerminalClass = "no_market_activity"
)

// TerminalError wraps an error that must suppress the job instead of
// scheduling a retry.
type TerminalError struct {
	Class TerminalClass
	Err   error
}

func (e *TerminalError) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Terminal marks err as terminal with the given class.
func Terminal(class TerminalClass, err error) error {
	return &TerminalError{Class: class, Err: err}
}

// AsTerminal extracts a TerminalError from the chain.
func AsTerminal(err error) (*TerminalError, bool) {
	var te *TerminalError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
