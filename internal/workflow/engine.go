package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Rezme-Inc/fairchance-api/internal/domain"
	"github.com/Rezme-Inc/fairchance-api/internal/notify"
	"github.com/Rezme-Inc/fairchance-api/internal/storage"
)

// Store is the persistence surface the engine drives: per-candidate form
// records plus the step completion ledger. GetForm and GetProgress return
// private copies; a change takes effect only through SaveForm or one of the
// ledger operations, so a rejected merge or a failed gate leaves the stored
// record untouched.
type Store interface {
	GetForm(ctx context.Context, candidateID string, kind domain.FormKind) any
	SaveForm(ctx context.Context, candidateID string, kind domain.FormKind, form any) error
	GetProgress(ctx context.Context, candidateID string) *domain.Progress
	AdvanceStep(ctx context.Context, candidateID string) (*domain.Progress, error)
	RecordDecision(ctx context.Context, candidateID string, rec domain.DecisionRecord) error
	ResetForms(ctx context.Context, candidateID string) error
	AppendAudit(ctx context.Context, candidateID string, action string, detail any) error
}

// Archiver stores an immutable snapshot of each sent notice.
type Archiver interface {
	PutNotice(ctx context.Context, candidateID string, step int, payload []byte) (string, error)
}

// Notifier emits fire-and-forget terminal-decision events.
type Notifier interface {
	PublishDecision(ctx context.Context, event notify.DecisionEvent)
}

// SuggestionProvider returns field suggestions for a form kind from free text.
type SuggestionProvider interface {
	Suggest(ctx context.Context, kind domain.FormKind, sourceText string) (map[string]string, error)
}

// Actor identifies the HR admin performing a workflow action.
type Actor struct {
	Name    string
	Company string
}

// Outcome reports where the candidate landed after a state-changing operation.
// Warning carries non-fatal persistence trouble: the transition happened, the
// durable write may not have.
type Outcome struct {
	Progress *domain.Progress
	Decision *domain.DecisionRecord
	Warning  string
}

// Engine sequences the five compliance steps for a candidate, enforces the
// completeness gates between parts and steps, and exposes the terminal
// actions. Gating predicates are pure; persistence failures never roll back a
// transition that already happened.
type Engine struct {
	store    Store
	archive  Archiver
	notifier Notifier
	suggest  SuggestionProvider
	log      zerolog.Logger
}

func NewEngine(store Store, archive Archiver, notifier Notifier, suggest SuggestionProvider, log zerolog.Logger) *Engine {
	return &Engine{store: store, archive: archive, notifier: notifier, suggest: suggest, log: log}
}

func (e *Engine) GetForm(ctx context.Context, candidateID string, kind domain.FormKind) any {
	return e.store.GetForm(ctx, candidateID, kind)
}

func (e *Engine) Progress(ctx context.Context, candidateID string) *domain.Progress {
	return e.store.GetProgress(ctx, candidateID)
}

// UpdateForm applies a partial update: scalar fields merge, list fields
// replace, unknown keys are rejected. The whole record is persisted.
func (e *Engine) UpdateForm(ctx context.Context, candidateID string, kind domain.FormKind, patch json.RawMessage) (any, string, error) {
	form := e.store.GetForm(ctx, candidateID, kind)
	if err := domain.MergeForm(form, patch); err != nil {
		return nil, "", err
	}
	warning, err := nonFatal(e.store.SaveForm(ctx, candidateID, kind, form))
	if err != nil {
		return nil, "", err
	}
	return form, warning, nil
}

// AppendListItem appends one empty element to an ordered list field.
func (e *Engine) AppendListItem(ctx context.Context, candidateID string, kind domain.FormKind, field string) (any, string, error) {
	form := e.store.GetForm(ctx, candidateID, kind)
	if err := domain.AppendListItem(form, field); err != nil {
		return nil, "", err
	}
	warning, err := nonFatal(e.store.SaveForm(ctx, candidateID, kind, form))
	if err != nil {
		return nil, "", err
	}
	return form, warning, nil
}

// RemoveListItem removes a list element; removing the last one is rejected and
// the record is left unchanged.
func (e *Engine) RemoveListItem(ctx context.Context, candidateID string, kind domain.FormKind, field string, index int) (any, string, error) {
	form := e.store.GetForm(ctx, candidateID, kind)
	if err := domain.RemoveListItem(form, field, index); err != nil {
		return nil, "", err
	}
	warning, err := nonFatal(e.store.SaveForm(ctx, candidateID, kind, form))
	if err != nil {
		return nil, "", err
	}
	return form, warning, nil
}

// Autofill asks the suggestion provider for field values and merges them into
// currently-empty scalar fields only.
func (e *Engine) Autofill(ctx context.Context, candidateID string, kind domain.FormKind, sourceText string) (any, string, error) {
	if e.suggest == nil {
		return nil, "", errors.New("autofill is not configured")
	}
	suggestions, err := e.suggest.Suggest(ctx, kind, sourceText)
	if err != nil {
		return nil, "", err
	}
	form := e.store.GetForm(ctx, candidateID, kind)
	if err := domain.MergeSuggestions(form, suggestions); err != nil {
		return nil, "", err
	}
	warning, err := nonFatal(e.store.SaveForm(ctx, candidateID, kind, form))
	if err != nil {
		return nil, "", err
	}
	return form, warning, nil
}

// SubmitStep is "Review & Send": the aggregate must satisfy every part's
// required-field predicate for the step, the step must be the candidate's
// current one, and on success the record is committed, archived, and the
// ledger advanced. Submitting the final revocation notice also records the
// final_revoke decision.
//
// One ordering exception: step 5 may be submitted while the candidate sits at
// step 4 when the notice records that the candidate never responded; the
// conditional reassessment step is skipped.
func (e *Engine) SubmitStep(ctx context.Context, candidateID string, step int, aggregate json.RawMessage, actor Actor) (Outcome, error) {
	def, err := domain.StepFor(step)
	if err != nil {
		return Outcome{}, err
	}

	p := e.store.GetProgress(ctx, candidateID)
	if p.Decision != nil {
		return Outcome{Progress: p}, domain.ErrTerminalDecision
	}

	skippingReassessment := step == domain.StepFinalRevocation && p.CurrentStep == domain.StepReassessment
	if step != p.CurrentStep && !skippingReassessment {
		return Outcome{Progress: p}, domain.ErrStepOrder
	}

	form := e.store.GetForm(ctx, candidateID, def.Form)
	if err := domain.MergeForm(form, aggregate); err != nil {
		return Outcome{Progress: p}, err
	}

	missing, err := domain.MissingStepFields(form, step)
	if err != nil {
		return Outcome{Progress: p}, err
	}
	if len(missing) > 0 {
		return Outcome{Progress: p}, &domain.IncompleteError{Step: step, Missing: missing}
	}

	if skippingReassessment {
		final, ok := form.(*domain.FinalRevocationForm)
		if !ok || !final.NoResponse {
			return Outcome{Progress: p}, domain.ErrStepOrder
		}
	}

	var warnings []string
	if w, err := nonFatal(e.store.SaveForm(ctx, candidateID, def.Form, form)); err != nil {
		return Outcome{Progress: p}, err
	} else if w != "" {
		warnings = append(warnings, w)
	}

	e.archiveNotice(ctx, candidateID, step, form)

	advances := 1
	if skippingReassessment {
		advances = 2
	}
	for i := 0; i < advances; i++ {
		var advErr error
		p, advErr = e.store.AdvanceStep(ctx, candidateID)
		if w, err := nonFatal(advErr); err != nil {
			return Outcome{Progress: p}, err
		} else if w != "" {
			warnings = append(warnings, w)
		}
	}

	e.audit(ctx, candidateID, "step_submitted", map[string]any{
		"step":         step,
		"form":         def.Form,
		"current_step": p.CurrentStep,
	})

	out := Outcome{Progress: p, Warning: joinWarnings(warnings)}
	if step == domain.StepFinalRevocation {
		rec, w, err := e.recordDecision(ctx, candidateID, domain.DecisionFinalRevoke, actor)
		if err != nil {
			return out, err
		}
		out.Decision = rec
		out.Warning = joinWarnings(append(warnings, w))
	}
	return out, nil
}

// ExtendOffer records the hire decision, clears all persisted step data, and
// ends the workflow for the candidate.
func (e *Engine) ExtendOffer(ctx context.Context, candidateID string, actor Actor) (Outcome, error) {
	rec, w, err := e.recordDecision(ctx, candidateID, domain.DecisionHire, actor)
	if err != nil {
		return Outcome{}, err
	}
	warnings := []string{w}
	if w, err := nonFatal(e.store.ResetForms(ctx, candidateID)); err != nil {
		return Outcome{Decision: rec}, err
	} else if w != "" {
		warnings = append(warnings, w)
	}
	p := e.store.GetProgress(ctx, candidateID)
	return Outcome{Progress: p, Decision: rec, Warning: joinWarnings(warnings)}, nil
}

// ConcludeRevocation closes the case as revoked: the preliminary notice went
// out, the response window lapsed, and no reassessment was performed. Requires
// the candidate to have moved past step 3.
func (e *Engine) ConcludeRevocation(ctx context.Context, candidateID string, actor Actor) (Outcome, error) {
	p := e.store.GetProgress(ctx, candidateID)
	if p.CurrentStep < domain.StepReassessment {
		return Outcome{Progress: p}, domain.ErrStepOrder
	}
	rec, w, err := e.recordDecision(ctx, candidateID, domain.DecisionRevoke, actor)
	if err != nil {
		return Outcome{Progress: p}, err
	}
	return Outcome{Progress: p, Decision: rec, Warning: w}, nil
}

// ConcludeReassessment closes the case after a completed reassessment resolved
// it without a final revocation notice. Requires the reassessment step to have
// been committed.
func (e *Engine) ConcludeReassessment(ctx context.Context, candidateID string, actor Actor) (Outcome, error) {
	p := e.store.GetProgress(ctx, candidateID)
	if p.CurrentStep < domain.StepFinalRevocation {
		return Outcome{Progress: p}, domain.ErrStepOrder
	}
	rec, w, err := e.recordDecision(ctx, candidateID, domain.DecisionReassessment, actor)
	if err != nil {
		return Outcome{Progress: p}, err
	}
	return Outcome{Progress: p, Decision: rec, Warning: w}, nil
}

func (e *Engine) recordDecision(ctx context.Context, candidateID string, kind domain.DecisionKind, actor Actor) (*domain.DecisionRecord, string, error) {
	rec := domain.DecisionRecord{
		ID:          uuid.NewString(),
		Decision:    kind,
		CandidateID: candidateID,
		HRAdminName: actor.Name,
		CompanyName: actor.Company,
		SentAt:      time.Now().UTC(),
	}
	warning, err := nonFatal(e.store.RecordDecision(ctx, candidateID, rec))
	if err != nil {
		return nil, "", err
	}

	if e.notifier != nil {
		e.notifier.PublishDecision(ctx, notify.DecisionEvent{
			EventID:     uuid.NewString(),
			CandidateID: candidateID,
			Decision:    string(kind),
			Actor:       actor.Name,
			Company:     actor.Company,
			SentAt:      rec.SentAt,
		})
	}
	e.audit(ctx, candidateID, "decision_recorded", rec)

	return &rec, warning, nil
}

func (e *Engine) archiveNotice(ctx context.Context, candidateID string, step int, form any) {
	if e.archive == nil {
		return
	}
	payload, err := json.Marshal(form)
	if err != nil {
		e.log.Warn().Err(err).Str("candidate_id", candidateID).Int("step", step).Msg("workflow: failed to marshal notice snapshot")
		return
	}
	if _, err := e.archive.PutNotice(ctx, candidateID, step, payload); err != nil {
		e.log.Warn().Err(err).Str("candidate_id", candidateID).Int("step", step).Msg("workflow: notice archive failed (non-fatal)")
	}
}

func (e *Engine) audit(ctx context.Context, candidateID, action string, detail any) {
	if err := e.store.AppendAudit(ctx, candidateID, action, detail); err != nil {
		var pe *storage.PersistenceError
		if !errors.As(err, &pe) {
			e.log.Warn().Err(err).Str("candidate_id", candidateID).Str("action", action).Msg("workflow: audit append failed")
		}
	}
}

// nonFatal converts a best-effort persistence failure into a user-visible
// warning; any other error stays fatal.
func nonFatal(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	var pe *storage.PersistenceError
	if errors.As(err, &pe) {
		return "change applied but may not have been durably saved", nil
	}
	return "", err
}

func joinWarnings(warnings []string) string {
	kept := warnings[:0]
	for _, w := range warnings {
		if w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, "; ")
}
