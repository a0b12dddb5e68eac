// Package reconcile computes the minimal add/update/delete set that brings
// a sink's contents for one organization in line with a freshly normalized
// batch, and defines the sink contract those change sets are applied
// through.
package reconcile

import (
	"sort"

	"github.com/mygovdir/dirsync/internal/content"
	"github.com/mygovdir/dirsync/internal/domain"
)

// Diff joins the incoming batch against the existing sink state on
// document id and classifies every record:
//
//   - id absent from existing        -> added
//   - id present, hashes differ      -> updated (old, new)
//   - id present, hashes equal       -> no-op, never rewritten
//   - existing id absent from batch  -> deleted
//
// Diff is deliberately dumb: an empty incoming batch marks every existing
// record deleted. Callers own the empty-batch guard; a broken upstream
// scrape must never reach this function.
func Diff(orgID string, incoming []domain.DirectoryRecord, existing map[string]Stored) ChangeSet {
	return diff(orgID, incoming, existing, false)
}

// DiffFull is Diff for full-overwrite runs: records whose hashes match the
// stored state are still classified as updated so every document gets
// rewritten.
func DiffFull(orgID string, incoming []domain.DirectoryRecord, existing map[string]Stored) ChangeSet {
	return diff(orgID, incoming, existing, true)
}

func diff(orgID string, incoming []domain.DirectoryRecord, existing map[string]Stored, force bool) ChangeSet {
	cs := ChangeSet{OrgID: orgID}

	seen := make(map[string]bool, len(incoming))
	for _, rec := range incoming {
		id := rec.DocumentID()
		seen[id] = true

		old, ok := existing[id]
		if !ok {
			cs.Added = append(cs.Added, rec)
			continue
		}
		if force || content.HashRecord(rec) != old.Hash {
			cs.Updated = append(cs.Updated, Pair{Old: old.Record, New: rec})
		}
	}

	for id, old := range existing {
		if !seen[id] {
			cs.Deleted = append(cs.Deleted, old.Record)
		}
	}
	// Map iteration order is random; keep deletions deterministic.
	sort.Slice(cs.Deleted, func(i, j int) bool { return cs.Deleted[i].Less(cs.Deleted[j]) })

	cs.Snapshot = make([]domain.DirectoryRecord, len(incoming))
	copy(cs.Snapshot, incoming)
	sort.Slice(cs.Snapshot, func(i, j int) bool { return cs.Snapshot[i].Less(cs.Snapshot[j]) })

	return cs
}
