package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Rezme-Inc/fairchance-api/internal/domain"
	"github.com/Rezme-Inc/fairchance-api/internal/storage"
	"github.com/Rezme-Inc/fairchance-api/internal/workflow"
)

type Handler struct {
	engine *workflow.Engine
	store  *storage.Store
	log    zerolog.Logger
}

func NewHandler(engine *workflow.Engine, store *storage.Store, log zerolog.Logger) *Handler {
	return &Handler{engine: engine, store: store, log: log}
}

type submitStepRequest struct {
	Step        int             `json:"step"`
	HRAdminName string          `json:"hrAdminName"`
	CompanyName string          `json:"companyName"`
	Form        json.RawMessage `json:"form"`
}

type actionRequest struct {
	HRAdminName string `json:"hrAdminName"`
	CompanyName string `json:"companyName"`
}

type autofillRequest struct {
	SourceText string `json:"sourceText"`
}

type progressResponse struct {
	CandidateID string                 `json:"candidateId"`
	CurrentStep int                    `json:"currentStep"`
	Completed   bool                   `json:"completed"`
	Decision    *domain.DecisionRecord `json:"decision,omitempty"`
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request, candidateID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p := h.engine.Progress(ctx, candidateID)
	writeJSON(w, http.StatusOK, progressResponse{
		CandidateID: p.CandidateID,
		CurrentStep: p.CurrentStep,
		Completed:   p.Completed(),
		Decision:    p.Decision,
	})
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request, candidateID, formKind string) {
	kind, err := domain.ParseFormKind(formKind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, h.engine.GetForm(ctx, candidateID, kind))
}

func (h *Handler) PatchForm(w http.ResponseWriter, r *http.Request, candidateID, formKind string) {
	kind, err := domain.ParseFormKind(formKind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	var patch json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	form, warning, err := h.engine.UpdateForm(ctx, candidateID, kind, patch)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	writeFormResult(w, form, warning)
}

func (h *Handler) AppendListItem(w http.ResponseWriter, r *http.Request, candidateID, formKind, field string) {
	kind, err := domain.ParseFormKind(formKind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	form, warning, err := h.engine.AppendListItem(ctx, candidateID, kind, field)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	writeFormResult(w, form, warning)
}

func (h *Handler) RemoveListItem(w http.ResponseWriter, r *http.Request, candidateID, formKind, field string, index int) {
	kind, err := domain.ParseFormKind(formKind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	form, warning, err := h.engine.RemoveListItem(ctx, candidateID, kind, field, index)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	writeFormResult(w, form, warning)
}

func (h *Handler) Autofill(w http.ResponseWriter, r *http.Request, candidateID, formKind string) {
	kind, err := domain.ParseFormKind(formKind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	var req autofillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.SourceText == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "sourceText is required"})
		return
	}

	form, warning, err := h.engine.Autofill(r.Context(), candidateID, kind, req.SourceText)
	if err != nil {
		h.log.Warn().Err(err).Str("candidate_id", candidateID).Msg("api: autofill failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "autofill suggestions unavailable"})
		return
	}
	writeFormResult(w, form, warning)
}

// SubmitStep is the single state-changing workflow endpoint: a completed step
// aggregate comes in, the ledger advances on success.
func (h *Handler) SubmitStep(w http.ResponseWriter, r *http.Request, candidateID string) {
	var req submitStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if len(req.Form) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "form payload is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	out, err := h.engine.SubmitStep(ctx, candidateID, req.Step, req.Form, workflow.Actor{
		Name:    req.HRAdminName,
		Company: req.CompanyName,
	})
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	writeOutcome(w, out)
}

func (h *Handler) ExtendOffer(w http.ResponseWriter, r *http.Request, candidateID string) {
	h.terminalAction(w, r, candidateID, h.engine.ExtendOffer)
}

func (h *Handler) ConcludeRevocation(w http.ResponseWriter, r *http.Request, candidateID string) {
	h.terminalAction(w, r, candidateID, h.engine.ConcludeRevocation)
}

func (h *Handler) ConcludeReassessment(w http.ResponseWriter, r *http.Request, candidateID string) {
	h.terminalAction(w, r, candidateID, h.engine.ConcludeReassessment)
}

func (h *Handler) terminalAction(w http.ResponseWriter, r *http.Request, candidateID string,
	action func(context.Context, string, workflow.Actor) (workflow.Outcome, error)) {

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.HRAdminName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "hrAdminName is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	out, err := action(ctx, candidateID, workflow.Actor{Name: req.HRAdminName, Company: req.CompanyName})
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	writeOutcome(w, out)
}

// NoticeDeadline computes the legal response deadline for a notice sent on
// start, plus the business days still remaining as of today.
func (h *Handler) NoticeDeadline(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "start must be a YYYY-MM-DD date"})
		return
	}
	days, err := domain.SanitizeBusinessDays(r.URL.Query().Get("days"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	deadline := domain.AddBusinessDays(start, days)
	writeJSON(w, http.StatusOK, map[string]any{
		"start":        start.Format("2006-01-02"),
		"businessDays": days,
		"deadline":     deadline.Format("2006-01-02"),
		"remaining":    domain.BusinessDaysRemaining(start, time.Now()),
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) writeWorkflowError(w http.ResponseWriter, err error) {
	var incomplete *domain.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": incomplete.Error(), "missing": incomplete.Missing})
	case errors.Is(err, domain.ErrTerminalDecision), errors.Is(err, domain.ErrDecisionExists),
		errors.Is(err, domain.ErrStepOrder):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrUnknownStep), errors.Is(err, domain.ErrUnknownForm),
		errors.Is(err, domain.ErrUnknownListField), errors.Is(err, domain.ErrInvalidPatch),
		errors.Is(err, domain.ErrLastListItem), errors.Is(err, domain.ErrIndexOutOfRange):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("api: workflow operation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func writeOutcome(w http.ResponseWriter, out workflow.Outcome) {
	body := map[string]any{"success": true}
	if out.Progress != nil {
		body["currentStep"] = out.Progress.CurrentStep
		body["completed"] = out.Progress.Completed()
	}
	if out.Decision != nil {
		body["decision"] = out.Decision
	}
	if out.Warning != "" {
		body["warning"] = out.Warning
	}
	writeJSON(w, http.StatusOK, body)
}

func writeFormResult(w http.ResponseWriter, form any, warning string) {
	body := map[string]any{"success": true, "form": form}
	if warning != "" {
		body["warning"] = warning
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
