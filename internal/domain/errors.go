package domain

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// InputUnavailableError is returned when unit attributes could not be read.
// A cycle that hits it aborts without touching the relation table.
type InputUnavailableError struct {
	UnitIDs []UnitID
	Cause   error
}

func (e InputUnavailableError) Error() string {
	msg := "attribute index unavailable"
	if len(e.UnitIDs) > 0 {
		ids := make([]string, 0, len(e.UnitIDs))
		for _, id := range e.UnitIDs {
			ids = append(ids, id.String())
		}
		if len(ids) > 5 {
			ids = append(ids[:5], fmt.Sprintf("and %d more", len(e.UnitIDs)-5))
		}
		msg += " for " + strings.Join(ids, ", ")
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e InputUnavailableError) Unwrap() error {
	return e.Cause
}

func (e InputUnavailableError) Is(target error) bool {
	_, ok := target.(InputUnavailableError)
	if ok {
		return true
	}
	_, ok = target.(*InputUnavailableError)
	return ok
}

var ErrInputUnavailable = InputUnavailableError{}

// CanonicalizationError reports a pair that could not be put into canonical form.
// The pair is dropped and the cycle continues.
type CanonicalizationError struct {
	A      string
	B      string
	Reason string
}

func (e CanonicalizationError) Error() string {
	return fmt.Sprintf("cannot canonicalize pair (%s, %s): %s", e.A, e.B, e.Reason)
}

func (e CanonicalizationError) Is(target error) bool {
	_, ok := target.(CanonicalizationError)
	if ok {
		return true
	}
	_, ok = target.(*CanonicalizationError)
	return ok
}

var ErrCanonicalization = CanonicalizationError{}

var (
	ErrPersistenceConflict = errors.New("persistence conflict on duplicate relations")
	ErrCycleInProgress     = errors.New("reconciliation cycle already in progress")
	ErrInvalidScope        = errors.New("invalid reconciliation scope")
)
