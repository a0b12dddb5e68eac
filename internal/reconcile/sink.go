package reconcile

import (
	"context"

	"github.com/mygovdir/dirsync/internal/domain"
)

// Stored is a record as currently held by a sink, together with the
// content hash recorded when it was written.
type Stored struct {
	Hash   string
	Record domain.DirectoryRecord
}

// DocumentError is one failed sink write. Failures are collected per
// document and reported after the whole batch has been attempted.
type DocumentError struct {
	DocumentID string
	Err        error
}

// SinkResult reports the outcome of applying one change set to one sink.
type SinkResult struct {
	Applied int
	Failed  []DocumentError
}

// OK reports whether every document write succeeded.
func (r SinkResult) OK() bool {
	return len(r.Failed) == 0
}

// Sink is a synchronization destination. Apply must attempt every document
// in the change set before returning, collecting per-document failures in
// the result rather than aborting on the first one; the returned error is
// reserved for whole-batch failures (connection loss, exhausted retries on
// a group-level call).
type Sink interface {
	Name() string
	Ping(ctx context.Context) error
	Apply(ctx context.Context, cs ChangeSet) (SinkResult, error)
}

// StateSource is implemented by the sink that serves as the system of
// record for reconciliation: it can return the stored documents for one
// organization keyed by document id.
type StateSource interface {
	Existing(ctx context.Context, orgID string) (map[string]Stored, error)
}
