package tpm

import (
	"errors"
	"fmt"

	"github.com/san-kum/tpmsim/internal/thermo"
)

// Configuration errors returned before the first step.
var (
	ErrShapeMismatch = thermo.ErrShapeMismatch
	ErrUnstable      = thermo.ErrUnstable
	ErrParameter     = thermo.ErrParameter

	// ErrNotImplemented is returned for binary mutual heating.
	ErrNotImplemented = errors.New("tpm: not implemented")
)

// StepError wraps an error with the step at which it occurred.
type StepError struct {
	Body string
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("tpm: %s: step %d (t=%.1f s): %v", e.Body, e.Step, e.Time, e.Err)
	}
	return fmt.Sprintf("tpm: step %d (t=%.1f s): %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
