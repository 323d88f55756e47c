package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTerminalDecision guards every state-changing workflow operation once a
	// terminal decision exists for the candidate.
	ErrTerminalDecision = errors.New("a terminal decision has already been recorded")

	// ErrDecisionExists rejects recording a second, contradictory decision kind.
	ErrDecisionExists = errors.New("a decision is already recorded for this candidate")

	ErrStepOrder        = errors.New("step cannot be submitted out of order")
	ErrInvalidPatch     = errors.New("invalid form patch")
	ErrLastListItem     = errors.New("a list must keep at least one element")
	ErrIndexOutOfRange  = errors.New("list index out of range")
	ErrUnknownForm      = errors.New("unknown form kind")
	ErrUnknownListField = errors.New("unknown list field")
	ErrUnknownStep      = errors.New("unknown step")
)

// IncompleteError reports the required fields a step aggregate is missing.
type IncompleteError struct {
	Step    int
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("step %d is incomplete: missing %s", e.Step, strings.Join(e.Missing, ", "))
}
