package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	ImportStarted   EventType = "IMPORT_STARTED"
	ImportRejected  EventType = "IMPORT_REJECTED"
	ImportCompleted EventType = "IMPORT_COMPLETED"

	LockAcquired EventType = "LOCK_ACQUIRED"
	LockReleased EventType = "LOCK_RELEASED"
	LocksPurged  EventType = "LOCKS_PURGED"

	BatchCommitted    EventType = "BATCH_COMMITTED"
	PartialCommit     EventType = "PARTIAL_COMMIT"
	VarianceDetected  EventType = "VARIANCE_DETECTED"
	PatternLearned    EventType = "PATTERN_LEARNED"
	AmbiguousIdentity EventType = "AMBIGUOUS_IDENTITY"
	RecordExcluded    EventType = "RECORD_EXCLUDED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging. Events are the audit trail
// of the reconciliation pipeline; every state transition of an import run
// passes through here.
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit logs an event with structured data
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Module:    module,
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		payload = []byte("{}")
	}

	m.log.Info().
		Str("event", string(event.Type)).
		Str("module", event.Module).
		RawJSON("data", payload).
		Msg("Event emitted")
}
