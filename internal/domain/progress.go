package domain

import (
	"fmt"
	"time"
)

// Workflow steps. Step 6 is the completion sentinel, not a real step.
const (
	StepOffer           = 1
	StepAssessment      = 2
	StepRevocation      = 3
	StepReassessment    = 4
	StepFinalRevocation = 5
	StepCompleted       = 6
)

type DecisionKind string

const (
	DecisionHire         DecisionKind = "hire"
	DecisionReassessment DecisionKind = "reassessment"
	DecisionRevoke       DecisionKind = "revoke"
	DecisionFinalRevoke  DecisionKind = "final_revoke"
)

func ParseDecisionKind(s string) (DecisionKind, error) {
	k := DecisionKind(s)
	switch k {
	case DecisionHire, DecisionReassessment, DecisionRevoke, DecisionFinalRevoke:
		return k, nil
	}
	return "", fmt.Errorf("unknown decision kind %q", s)
}

// DecisionRecord is the terminal outcome for a candidate. At most one exists;
// recording one forecloses the other three kinds.
type DecisionRecord struct {
	ID          string       `json:"id"`
	Decision    DecisionKind `json:"decision"`
	CandidateID string       `json:"candidateId"`
	HRAdminName string       `json:"hrAdminName"`
	CompanyName string       `json:"companyName"`
	SentAt      time.Time    `json:"sentAt"`
}

// Progress tracks where a candidate sits in the five-step sequence.
type Progress struct {
	CandidateID string          `json:"candidateId"`
	CurrentStep int             `json:"currentStep"`
	Decision    *DecisionRecord `json:"decision,omitempty"`
}

func NewProgress(candidateID string) *Progress {
	return &Progress{CandidateID: candidateID, CurrentStep: StepOffer}
}

// Completed reports whether the workflow is over for this candidate, either by
// reaching the step sentinel or by a recorded terminal decision.
func (p *Progress) Completed() bool {
	return p.CurrentStep >= StepCompleted || p.Decision != nil
}
