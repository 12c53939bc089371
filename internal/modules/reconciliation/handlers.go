package reconciliation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers provides HTTP handlers for reconciliation endpoints
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new reconciliation handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("module", "reconciliation_handlers").Logger(),
	}
}

// RegisterRoutes registers all reconciliation routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/reconciliation", func(r chi.Router) {
		r.Post("/run", h.Run)
		r.Post("/import-document", h.ImportDocument)
	})
}

// Run executes an import attempt on transactions supplied in the body.
// 409 when another import holds the account lock, 500 with the report
// body on a partial commit so the caller knows which entries succeeded.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountCode == "" {
		http.Error(w, "account_code is required", http.StatusBadRequest)
		return
	}

	report, err := h.service.Run(r.Context(), req)
	h.respond(w, report, err)
}

// ImportDocumentRequest is the body for POST /reconciliation/import-document
type ImportDocumentRequest struct {
	CompanyScope string `json:"company_scope"`
	AccountCode  string `json:"account_code"`
	DocumentRef  string `json:"document_ref"`
	Commit       bool   `json:"commit"`
}

// ImportDocument extracts a document and runs the import on its
// transactions.
func (h *Handlers) ImportDocument(w http.ResponseWriter, r *http.Request) {
	var req ImportDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountCode == "" || req.DocumentRef == "" {
		http.Error(w, "account_code and document_ref are required", http.StatusBadRequest)
		return
	}

	report, err := h.service.RunFromDocument(r.Context(), req.CompanyScope, req.AccountCode, req.DocumentRef, req.Commit)
	h.respond(w, report, err)
}

func (h *Handlers) respond(w http.ResponseWriter, report *Report, err error) {
	w.Header().Set("Content-Type", "application/json")

	var partial *PartialCommitError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrResourceBusy):
		w.WriteHeader(http.StatusConflict)
	case errors.As(err, &partial):
		// Partial commit: the report names the entries that succeeded.
		w.WriteHeader(http.StatusInternalServerError)
	default:
		h.log.Error().Err(err).Msg("Import run failed")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	response := map[string]interface{}{"report": report}
	if err != nil {
		response["error"] = err.Error()
	}
	json.NewEncoder(w).Encode(response)
}
