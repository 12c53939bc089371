package reconciliation

import (
	"errors"
	"fmt"
)

// ErrResourceBusy signals another import holds the account lock. The
// caller may retry after a short delay; the committer never retries
// internally.
var ErrResourceBusy = errors.New("import already in progress for this account")

// PartialCommitError reports a commit where some entry updates succeeded
// and some failed. Each update is idempotent, so a re-run of the same
// commit only touches the remainder.
type PartialCommitError struct {
	BatchID   int
	Succeeded []string          // entry IDs updated
	Failed    map[string]string // entry ID -> failure reason
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("batch %d partially committed: %d succeeded, %d failed",
		e.BatchID, len(e.Succeeded), len(e.Failed))
}
