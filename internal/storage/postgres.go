package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/Rezme-Inc/fairchance-api/internal/domain"
)

// PersistenceError marks a failed best-effort database write. The in-memory
// state already reflects the change; callers surface the error as a warning
// instead of failing the request.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store holds every candidate's form records and workflow progress. Reads and
// writes go through an in-memory map first and are written through to Postgres
// best-effort: a failed write is logged, the memory state stands, and the
// caller gets a *PersistenceError to surface as a non-fatal warning.
//
// Records are keyed strictly by candidate id. Last write wins; there is no
// optimistic locking and no cross-session merge. Reads hand out private copies
// and saves swap whole records under the lock, so concurrent requests never
// share a record pointer.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	mu       sync.Mutex
	forms    map[string]map[domain.FormKind]any
	progress map[string]*domain.Progress
}

func NewStore(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:       db,
		log:      log,
		forms:    make(map[string]map[domain.FormKind]any),
		progress: make(map[string]*domain.Progress),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetForm returns a private copy of the candidate's stored record for kind, or
// the documented default shape when none exists. The caller owns the copy;
// changes take effect only through SaveForm. It never fails: a database read
// error falls back to the in-memory state and is only logged.
func (s *Store) GetForm(ctx context.Context, candidateID string, kind domain.FormKind) any {
	form := s.ensureForm(ctx, candidateID, kind)

	s.mu.Lock()
	clone, err := domain.CloneForm(form)
	s.mu.Unlock()
	if err != nil {
		// Unreachable for parsed kinds; keep the never-fails contract anyway.
		s.log.Error().Err(err).Str("form", string(kind)).Msg("storage: unknown form kind requested")
		return &struct{}{}
	}
	return clone
}

// ensureForm returns the canonical in-memory record, loading it from the
// database on first access. The round trip happens outside the map lock so a
// slow read for one candidate cannot stall every other request.
func (s *Store) ensureForm(ctx context.Context, candidateID string, kind domain.FormKind) any {
	s.mu.Lock()
	if byKind, ok := s.forms[candidateID]; ok {
		if form, ok := byKind[kind]; ok {
			s.mu.Unlock()
			return form
		}
	}
	s.mu.Unlock()

	form, err := domain.NewForm(kind)
	if err != nil {
		return &struct{}{}
	}
	if payload, loadErr := s.loadFormPayload(ctx, candidateID, kind); loadErr != nil {
		s.log.Warn().Err(loadErr).
			Str("candidate_id", candidateID).
			Str("form", string(kind)).
			Msg("storage: form read failed, serving in-memory state")
	} else if payload != nil {
		if err := json.Unmarshal(payload, form); err != nil {
			s.log.Warn().Err(err).
				Str("candidate_id", candidateID).
				Str("form", string(kind)).
				Msg("storage: stored form payload is malformed, serving defaults")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byKind, ok := s.forms[candidateID]
	if !ok {
		byKind = make(map[domain.FormKind]any)
		s.forms[candidateID] = byKind
	}
	// A concurrent request may have installed the record first; keep its copy.
	if existing, ok := byKind[kind]; ok {
		return existing
	}
	byKind[kind] = form
	return form
}

func (s *Store) loadFormPayload(ctx context.Context, candidateID string, kind domain.FormKind) ([]byte, error) {
	var payload []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM candidate_forms
		WHERE candidate_id = $1 AND form_kind = $2
	`, candidateID, kind)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// SaveForm persists the entire form record, not a diff. The record is copied
// on the way in and swapped whole under the lock, so the caller keeps exclusive
// ownership of its pointer. The returned error, if any, is a
// *PersistenceError: memory is already updated.
func (s *Store) SaveForm(ctx context.Context, candidateID string, kind domain.FormKind, form any) error {
	clone, err := domain.CloneForm(form)
	if err != nil {
		return s.warn("save form", candidateID, err)
	}

	s.mu.Lock()
	byKind, ok := s.forms[candidateID]
	if !ok {
		byKind = make(map[domain.FormKind]any)
		s.forms[candidateID] = byKind
	}
	byKind[kind] = clone
	s.mu.Unlock()

	payload, err := json.Marshal(form)
	if err != nil {
		return s.warn("save form", candidateID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidate_forms (candidate_id, form_kind, payload)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (candidate_id, form_kind) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`, candidateID, kind, string(payload))
	if err != nil {
		return s.warn("save form", candidateID, err)
	}
	return nil
}

// GetProgress returns a snapshot of the candidate's workflow progress, lazily
// initialized to step 1 with no decision. Like GetForm it never fails and
// never aliases the canonical record.
func (s *Store) GetProgress(ctx context.Context, candidateID string) *domain.Progress {
	p := s.ensureProgress(ctx, candidateID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotProgress(p)
}

// ensureProgress returns the canonical record, loading it from the database on
// first access. Like ensureForm, the round trip runs outside the map lock.
func (s *Store) ensureProgress(ctx context.Context, candidateID string) *domain.Progress {
	s.mu.Lock()
	if p, ok := s.progress[candidateID]; ok {
		s.mu.Unlock()
		return p
	}
	s.mu.Unlock()

	p := domain.NewProgress(candidateID)
	if loaded, err := s.loadProgress(ctx, candidateID); err != nil {
		s.log.Warn().Err(err).
			Str("candidate_id", candidateID).
			Msg("storage: progress read failed, serving in-memory state")
	} else if loaded != nil {
		p = loaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.progress[candidateID]; ok {
		return existing
	}
	s.progress[candidateID] = p
	return p
}

func snapshotProgress(p *domain.Progress) *domain.Progress {
	cp := *p
	if p.Decision != nil {
		rec := *p.Decision
		cp.Decision = &rec
	}
	return &cp
}

func (s *Store) loadProgress(ctx context.Context, candidateID string) (*domain.Progress, error) {
	var (
		currentStep int
		decisionID  sql.NullString
		decision    sql.NullString
		hrAdmin     sql.NullString
		company     sql.NullString
		sentAt      sql.NullTime
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT current_step, decision_id, decision, hr_admin_name, company_name, sent_at
		FROM workflow_progress
		WHERE candidate_id = $1
	`, candidateID)
	if err := row.Scan(&currentStep, &decisionID, &decision, &hrAdmin, &company, &sentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	p := &domain.Progress{CandidateID: candidateID, CurrentStep: currentStep}
	if decision.Valid {
		kind, err := domain.ParseDecisionKind(decision.String)
		if err != nil {
			return nil, err
		}
		p.Decision = &domain.DecisionRecord{
			ID:          decisionID.String,
			Decision:    kind,
			CandidateID: candidateID,
			HRAdminName: hrAdmin.String,
			CompanyName: company.String,
			SentAt:      sentAt.Time,
		}
	}
	return p, nil
}

// AdvanceStep increments the candidate's current step, capped at the completion
// sentinel. It is rejected without side effects when a terminal decision
// exists.
func (s *Store) AdvanceStep(ctx context.Context, candidateID string) (*domain.Progress, error) {
	p := s.ensureProgress(ctx, candidateID)

	s.mu.Lock()
	if p.Decision != nil {
		snap := snapshotProgress(p)
		s.mu.Unlock()
		return snap, domain.ErrTerminalDecision
	}
	if p.CurrentStep < domain.StepCompleted {
		p.CurrentStep++
	}
	snap := snapshotProgress(p)
	s.mu.Unlock()

	if err := s.persistStep(ctx, candidateID, snap.CurrentStep); err != nil {
		return snap, s.warn("advance step", candidateID, err)
	}
	return snap, nil
}

func (s *Store) persistStep(ctx context.Context, candidateID string, step int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_progress (candidate_id, current_step)
		VALUES ($1, $2)
		ON CONFLICT (candidate_id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			updated_at = NOW()
	`, candidateID, step)
	return err
}

// RecordDecision writes the terminal decision for a candidate. Only one
// decision may ever exist: a second kind is rejected rather than silently
// overwriting the first.
func (s *Store) RecordDecision(ctx context.Context, candidateID string, rec domain.DecisionRecord) error {
	p := s.ensureProgress(ctx, candidateID)

	s.mu.Lock()
	if p.Decision != nil {
		s.mu.Unlock()
		return domain.ErrDecisionExists
	}
	decision := rec
	p.Decision = &decision
	step := p.CurrentStep
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_progress (candidate_id, current_step, decision_id, decision, hr_admin_name, company_name, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (candidate_id) DO UPDATE SET
			decision_id = EXCLUDED.decision_id,
			decision = EXCLUDED.decision,
			hr_admin_name = EXCLUDED.hr_admin_name,
			company_name = EXCLUDED.company_name,
			sent_at = EXCLUDED.sent_at,
			updated_at = NOW()
	`, candidateID, step, rec.ID, rec.Decision, rec.HRAdminName, rec.CompanyName, rec.SentAt)
	if err != nil {
		return s.warn("record decision", candidateID, err)
	}
	return nil
}

// ResetForms purges every form record for the candidate and rewinds the step
// counter, used after a hire decision clears the working data. The decision
// record itself survives as the evidence of the outcome.
func (s *Store) ResetForms(ctx context.Context, candidateID string) error {
	p := s.ensureProgress(ctx, candidateID)

	s.mu.Lock()
	s.forms[candidateID] = make(map[domain.FormKind]any)
	p.CurrentStep = domain.StepOffer
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM candidate_forms WHERE candidate_id = $1
	`, candidateID); err != nil {
		return s.warn("reset forms", candidateID, err)
	}
	if err := s.persistStep(ctx, candidateID, domain.StepOffer); err != nil {
		return s.warn("reset forms", candidateID, err)
	}
	return nil
}

// AppendAudit inserts one audit row. Best-effort like every other write.
func (s *Store) AppendAudit(ctx context.Context, candidateID, action string, detail any) error {
	var payload []byte
	switch v := detail.(type) {
	case nil:
		payload = []byte("{}")
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return s.warn("append audit", candidateID, err)
		}
		payload = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (candidate_id, action, detail)
		VALUES ($1, $2, $3::jsonb)
	`, candidateID, action, string(payload))
	if err != nil {
		return s.warn("append audit", candidateID, err)
	}
	return nil
}

// CountCandidates is an operational helper for tooling and smoke checks.
func (s *Store) CountCandidates(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_progress`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return count, nil
}

func (s *Store) warn(op, candidateID string, err error) error {
	s.log.Warn().Err(err).
		Str("candidate_id", candidateID).
		Str("op", op).
		Msg("storage: best-effort write failed, in-memory state stands")
	return &PersistenceError{Op: op, Err: err}
}
