package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")

	ErrReadFailed    = errors.New("document read failed")
	ErrTransport     = errors.New("generator transport failed")
	ErrTimeout       = errors.New("generator call timed out")
	ErrInvalidResult = errors.New("generator result invalid")
	ErrFormatting    = errors.New("generator result failed quality checks")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// CategoryFor maps an attempt error onto the retry queue category. Anything
// unrecognized counts as a transport-style quick retry.
func CategoryFor(err error) FailureCategory {
	switch {
	case IsKind(err, ErrReadFailed):
		return CategoryReadError
	case IsKind(err, ErrTimeout):
		return CategoryTimeout
	case IsKind(err, ErrFormatting):
		return CategoryFormatting
	case IsKind(err, ErrInvalidResult):
		return CategoryInvalidResult
	default:
		return CategoryTransport
	}
}
