package locks

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers provides HTTP handlers for lock administration
type Handlers struct {
	manager *Manager
	log     zerolog.Logger
}

// NewHandlers creates a new locks handlers instance
func NewHandlers(manager *Manager, log zerolog.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		log:     log.With().Str("module", "locks_handlers").Logger(),
	}
}

// RegisterRoutes registers all lock routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/locks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Delete("/{resourceKey}", h.ForceRelease)
	})
}

// List returns the currently held import locks
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	active, err := h.manager.ListActive()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list locks")
		http.Error(w, "failed to list locks", http.StatusInternalServerError)
		return
	}
	if active == nil {
		active = []ImportLock{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"locks": active,
		"count": len(active),
	})
}

// ForceRelease drops a lock regardless of holder. Operator escape hatch
// for a crashed import that has not yet hit the TTL.
func (h *Handlers) ForceRelease(w http.ResponseWriter, r *http.Request) {
	resourceKey := chi.URLParam(r, "resourceKey")

	if err := h.manager.Release(resourceKey); err != nil {
		h.log.Error().Err(err).Str("resource", resourceKey).Msg("Failed to release lock")
		http.Error(w, "failed to release lock", http.StatusInternalServerError)
		return
	}

	h.log.Info().Str("resource", resourceKey).Msg("Lock force-released")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "released", "resource_key": resourceKey})
}
