package reconcile

import (
	"fmt"

	"github.com/mygovdir/dirsync/internal/domain"
)

// Pair holds the previous and current versions of an updated record.
type Pair struct {
	Old domain.DirectoryRecord
	New domain.DirectoryRecord
}

// ChangeSet is the per-organization outcome of one reconciliation pass.
// It is ephemeral: computed, applied to the sinks, reported, discarded.
type ChangeSet struct {
	OrgID   string
	Added   []domain.DirectoryRecord
	Updated []Pair
	Deleted []domain.DirectoryRecord

	// Snapshot is the complete new batch for the organization in sort
	// order. Sinks without point updates (the sheet mirror) rewrite the
	// whole group from it.
	Snapshot []domain.DirectoryRecord
}

// Empty reports whether applying the change set would be a no-op.
func (cs ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Updated) == 0 && len(cs.Deleted) == 0
}

// Summary renders the one-line per-organization report format.
func (cs ChangeSet) Summary() string {
	return fmt.Sprintf("%s - Added: %d, Updated: %d, Deleted: %d",
		cs.OrgID, len(cs.Added), len(cs.Updated), len(cs.Deleted))
}
