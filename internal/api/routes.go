package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Rezme-Inc/fairchance-api/internal/security"
)

// CSRF-exempt path prefixes: the hosted auth provider's callback endpoints and
// the health probes.
var csrfExemptPrefixes = []string{"/v1/auth/", "/healthz", "/readyz"}

func NewRouter(h *Handler, limiter *security.RateLimiter, production bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(production))
	r.Use(security.NewCSRF(production, csrfExemptPrefixes).Middleware)
	r.Use(limiter.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	})

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/business-days/deadline", h.NoticeDeadline)

		r.Route("/candidates/{candidateId}", func(r chi.Router) {
			r.Get("/progress", func(w http.ResponseWriter, r *http.Request) {
				h.GetProgress(w, r, chi.URLParam(r, "candidateId"))
			})
			r.Post("/assessment", func(w http.ResponseWriter, r *http.Request) {
				h.SubmitStep(w, r, chi.URLParam(r, "candidateId"))
			})

			r.Route("/forms/{formKind}", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					h.GetForm(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "formKind"))
				})
				r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
					h.PatchForm(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "formKind"))
				})
				r.Post("/autofill", func(w http.ResponseWriter, r *http.Request) {
					h.Autofill(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "formKind"))
				})
				r.Post("/list/{field}", func(w http.ResponseWriter, r *http.Request) {
					h.AppendListItem(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "formKind"), chi.URLParam(r, "field"))
				})
				r.Delete("/list/{field}/{index}", func(w http.ResponseWriter, r *http.Request) {
					index, err := strconv.Atoi(chi.URLParam(r, "index"))
					if err != nil {
						writeJSON(w, http.StatusBadRequest, map[string]any{"error": "index must be an integer"})
						return
					}
					h.RemoveListItem(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "formKind"), chi.URLParam(r, "field"), index)
				})
			})

			r.Route("/actions", func(r chi.Router) {
				r.Post("/extend-offer", func(w http.ResponseWriter, r *http.Request) {
					h.ExtendOffer(w, r, chi.URLParam(r, "candidateId"))
				})
				r.Post("/conclude-revocation", func(w http.ResponseWriter, r *http.Request) {
					h.ConcludeRevocation(w, r, chi.URLParam(r, "candidateId"))
				})
				r.Post("/conclude-reassessment", func(w http.ResponseWriter, r *http.Request) {
					h.ConcludeReassessment(w, r, chi.URLParam(r, "candidateId"))
				})
			})
		})
	})

	return r
}
