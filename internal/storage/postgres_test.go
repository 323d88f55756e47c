package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rezme-Inc/fairchance-api/internal/domain"
)

// unreachableStore points at a port nothing listens on. sql.Open is lazy, so
// construction succeeds and every database round trip fails fast, which is
// exactly the degraded mode the store must survive.
func unreachableStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("host=127.0.0.1 port=1 user=x dbname=x sslmode=disable connect_timeout=1", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetFormNeverFails(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	form := s.GetForm(ctx, "cand-1", domain.FormAssessment)
	assess, ok := form.(*domain.AssessmentForm)
	require.True(t, ok)
	assert.Equal(t, []string{""}, assess.Duties, "default shape served when nothing is stored")

	// Repeat reads serve the same in-memory record, as a fresh copy each time.
	again := s.GetForm(ctx, "cand-1", domain.FormAssessment)
	assert.Equal(t, form, again)
	assert.NotSame(t, form, again)
}

func TestFormRecordsDoNotAliasCallerPointers(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	form := s.GetForm(ctx, "cand-8", domain.FormOffer).(*domain.OfferForm)
	form.Position = "Clerk"

	got := s.GetForm(ctx, "cand-8", domain.FormOffer).(*domain.OfferForm)
	assert.Empty(t, got.Position, "mutating a returned copy does not touch the store")

	_ = s.SaveForm(ctx, "cand-8", domain.FormOffer, form)
	form.Position = "Tampered"

	got = s.GetForm(ctx, "cand-8", domain.FormOffer).(*domain.OfferForm)
	assert.Equal(t, "Clerk", got.Position, "the store keeps its own copy of a saved record")
}

func TestProgressSnapshotsDoNotAliasLedger(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	p := s.GetProgress(ctx, "cand-9")
	p.CurrentStep = domain.StepCompleted

	assert.Equal(t, domain.StepOffer, s.GetProgress(ctx, "cand-9").CurrentStep,
		"mutating a snapshot does not advance the ledger")
}

func TestConcurrentFormWritesOneCandidate(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				form := s.GetForm(ctx, "cand-10", domain.FormOffer).(*domain.OfferForm)
				form.Position = fmt.Sprintf("position-%d", i)
				_ = s.SaveForm(ctx, "cand-10", domain.FormOffer, form)
				_ = s.GetProgress(ctx, "cand-10")
			}
		}(i)
	}
	wg.Wait()

	// Last write wins; whichever it was, the record is a coherent struct.
	got := s.GetForm(ctx, "cand-10", domain.FormOffer).(*domain.OfferForm)
	assert.Regexp(t, `^position-\d+$`, got.Position)
}

func TestSaveFormFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	form := s.GetForm(ctx, "cand-2", domain.FormOffer).(*domain.OfferForm)
	form.Position = "Clerk"

	err := s.SaveForm(ctx, "cand-2", domain.FormOffer, form)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save form", pe.Op)

	got := s.GetForm(ctx, "cand-2", domain.FormOffer).(*domain.OfferForm)
	assert.Equal(t, "Clerk", got.Position, "failed write-through does not lose the change")
}

func TestAdvanceStepCapsAtSentinel(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	assert.Equal(t, domain.StepOffer, s.GetProgress(ctx, "cand-3").CurrentStep)

	for i := 0; i < 8; i++ {
		p, err := s.AdvanceStep(ctx, "cand-3")
		var pe *PersistenceError
		require.ErrorAs(t, err, &pe, "db is down, every advance reports best-effort failure")
		require.NotNil(t, p)
	}
	assert.Equal(t, domain.StepCompleted, s.GetProgress(ctx, "cand-3").CurrentStep)
}

func TestAdvanceStepRejectedAfterDecision(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	rec := domain.DecisionRecord{ID: "dec-1", Decision: domain.DecisionHire, CandidateID: "cand-4"}
	err := s.RecordDecision(ctx, "cand-4", rec)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe, "decision is recorded in memory despite the failed write")

	p, err := s.AdvanceStep(ctx, "cand-4")
	assert.ErrorIs(t, err, domain.ErrTerminalDecision)
	assert.Equal(t, domain.StepOffer, p.CurrentStep, "rejected advance has no side effects")
}

func TestRecordDecisionRejectsSecondKind(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	first := domain.DecisionRecord{ID: "dec-1", Decision: domain.DecisionRevoke, CandidateID: "cand-5"}
	var pe *PersistenceError
	require.ErrorAs(t, s.RecordDecision(ctx, "cand-5", first), &pe)

	second := domain.DecisionRecord{ID: "dec-2", Decision: domain.DecisionHire, CandidateID: "cand-5"}
	err := s.RecordDecision(ctx, "cand-5", second)
	assert.ErrorIs(t, err, domain.ErrDecisionExists)

	p := s.GetProgress(ctx, "cand-5")
	require.NotNil(t, p.Decision)
	assert.Equal(t, "dec-1", p.Decision.ID, "first decision stands")
}

func TestResetFormsKeepsDecision(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	ctx := context.Background()

	offer := s.GetForm(ctx, "cand-6", domain.FormOffer).(*domain.OfferForm)
	offer.ApplicantName = "Jane Doe"
	_ = s.SaveForm(ctx, "cand-6", domain.FormOffer, offer)
	_, _ = s.AdvanceStep(ctx, "cand-6")

	rec := domain.DecisionRecord{ID: "dec-1", Decision: domain.DecisionHire, CandidateID: "cand-6"}
	var pe *PersistenceError
	require.ErrorAs(t, s.RecordDecision(ctx, "cand-6", rec), &pe)

	require.ErrorAs(t, s.ResetForms(ctx, "cand-6"), &pe)

	fresh := s.GetForm(ctx, "cand-6", domain.FormOffer).(*domain.OfferForm)
	assert.Empty(t, fresh.ApplicantName, "form data purged")

	p := s.GetProgress(ctx, "cand-6")
	assert.Equal(t, domain.StepOffer, p.CurrentStep, "step counter rewound")
	require.NotNil(t, p.Decision, "decision record survives the purge")
	assert.Equal(t, domain.DecisionHire, p.Decision.Decision)
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	t.Parallel()

	s := unreachableStore(t)
	err := s.AppendAudit(context.Background(), "cand-7", "step_submitted", map[string]any{"step": 1})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "append audit", pe.Op)
	assert.Error(t, pe.Unwrap())
	assert.Contains(t, pe.Error(), "append audit")
}
