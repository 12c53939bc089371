package patterns

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers provides HTTP handlers for pattern endpoints
type Handlers struct {
	learner *Learner
	log     zerolog.Logger
}

// NewHandlers creates a new patterns handlers instance
func NewHandlers(learner *Learner, log zerolog.Logger) *Handlers {
	return &Handlers{
		learner: learner,
		log:     log.With().Str("module", "patterns_handlers").Logger(),
	}
}

// RegisterRoutes registers all pattern routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/patterns", func(r chi.Router) {
		r.Get("/suggest", h.Suggest)
		r.Post("/learn", h.Learn)
	})
}

// Suggest looks up a suggestion for a raw description.
// GET /patterns/suggest?scope=...&description=...
func (h *Handlers) Suggest(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	description := r.URL.Query().Get("description")
	if scope == "" || description == "" {
		http.Error(w, "scope and description are required", http.StatusBadRequest)
		return
	}

	suggestion, err := h.learner.Find(scope, description)
	if err != nil {
		h.log.Error().Err(err).Msg("Pattern lookup failed")
		http.Error(w, "pattern lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"normalized": Normalize(description),
		"suggestion": suggestion, // null when nothing applies
	})
}

// LearnRequest is the body for POST /patterns/learn
type LearnRequest struct {
	Scope       string     `json:"scope"`
	Description string     `json:"description"`
	Assignment  Assignment `json:"assignment"`
}

// Learn records a confirmed human decision
func (h *Handlers) Learn(w http.ResponseWriter, r *http.Request) {
	var req LearnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Scope == "" || req.Description == "" || req.Assignment.Account == "" {
		http.Error(w, "scope, description and assignment.account are required", http.StatusBadRequest)
		return
	}

	if err := h.learner.Learn(req.Scope, req.Description, req.Assignment); err != nil {
		h.log.Error().Err(err).Msg("Pattern learn failed")
		http.Error(w, "pattern learn failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "learned",
		"normalized": Normalize(req.Description),
	})
}
