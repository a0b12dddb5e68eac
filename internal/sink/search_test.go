package sink

import (
	"context"
	"testing"

	"github.com/mygovdir/dirsync/internal/content"
	"github.com/mygovdir/dirsync/internal/domain"
	"github.com/mygovdir/dirsync/internal/reconcile"
)

func newTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	s, err := NewSearchIndex(t.TempDir())
	if err != nil {
		t.Fatalf("NewSearchIndex failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(orgID string, div, pos int, name string) domain.DirectoryRecord {
	return domain.DirectoryRecord{
		OrgID: orgID, OrgSort: 1, OrgName: "Test Ministry", OrgType: domain.OrgTypeMinistry,
		DivisionSort: div, PositionSort: pos, PersonName: name,
	}
}

func TestSearchIndex_Ping(t *testing.T) {
	s := newTestIndex(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSearchIndex_ApplyAddedAndExisting(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	r1 := rec("jpm", 1, 1, "Ali Bin Abu")
	r2 := rec("jpm", 1, 2, "Siti Aminah")
	other := rec("mof", 1, 1, "Rahman")

	cs := reconcile.ChangeSet{OrgID: "jpm", Added: []domain.DirectoryRecord{r1, r2}}
	result, err := s.Apply(ctx, cs)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !result.OK() || result.Applied != 2 {
		t.Errorf("result = %+v", result)
	}

	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "mof", Added: []domain.DirectoryRecord{other}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	existing, err := s.Existing(ctx, "jpm")
	if err != nil {
		t.Fatalf("Existing failed: %v", err)
	}
	if len(existing) != 2 {
		t.Fatalf("existing has %d docs, want 2 (mof must not leak in)", len(existing))
	}

	got, ok := existing[r1.DocumentID()]
	if !ok {
		t.Fatalf("doc %s missing", r1.DocumentID())
	}
	if got.Hash != content.HashRecord(r1) {
		t.Errorf("stored hash mismatch: %s", got.Hash)
	}
	if got.Record.PersonName != "Ali Bin Abu" || got.Record.DivisionSort != 1 {
		t.Errorf("stored record = %+v", got.Record)
	}
}

func TestSearchIndex_ApplyUpdate(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	old := rec("jpm", 1, 1, "Ali")
	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "jpm", Added: []domain.DirectoryRecord{old}}); err != nil {
		t.Fatal(err)
	}

	updated := rec("jpm", 1, 1, "Ali Bin Abu")
	cs := reconcile.ChangeSet{OrgID: "jpm", Updated: []reconcile.Pair{{Old: old, New: updated}}}
	if _, err := s.Apply(ctx, cs); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	existing, err := s.Existing(ctx, "jpm")
	if err != nil {
		t.Fatal(err)
	}
	if len(existing) != 1 {
		t.Fatalf("update must not duplicate, got %d docs", len(existing))
	}
	got := existing[updated.DocumentID()]
	if got.Record.PersonName != "Ali Bin Abu" {
		t.Errorf("record not rewritten: %+v", got.Record)
	}
	if got.Hash != content.HashRecord(updated) {
		t.Error("stored hash not advanced")
	}
}

func TestSearchIndex_ApplyDelete(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	r1 := rec("jpm", 1, 1, "Ali")
	r2 := rec("jpm", 1, 2, "Siti")
	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "jpm", Added: []domain.DirectoryRecord{r1, r2}}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "jpm", Deleted: []domain.DirectoryRecord{r1}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	existing, err := s.Existing(ctx, "jpm")
	if err != nil {
		t.Fatal(err)
	}
	if len(existing) != 1 {
		t.Fatalf("existing has %d docs, want 1", len(existing))
	}
	if _, ok := existing[r1.DocumentID()]; ok {
		t.Error("deleted doc still present")
	}
}

func TestSearchIndex_StableKeyRoundTrip(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	r := rec("jpm", 1, 1, "Ali")
	r.StableKey = "ali-ketua-bpm"
	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "jpm", Added: []domain.DirectoryRecord{r}}); err != nil {
		t.Fatal(err)
	}

	existing, err := s.Existing(ctx, "jpm")
	if err != nil {
		t.Fatal(err)
	}
	stored, ok := existing[r.DocumentID()]
	if !ok {
		t.Fatalf("doc not found under stable id %q", r.DocumentID())
	}
	if stored.Record.StableKey != "ali-ketua-bpm" {
		t.Errorf("stable key = %q, want %q", stored.Record.StableKey, "ali-ketua-bpm")
	}
	if stored.Record.DocumentID() != r.DocumentID() {
		t.Errorf("round-tripped id = %q, want %q", stored.Record.DocumentID(), r.DocumentID())
	}

	// Deleting the fetched record must remove the stored document.
	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "jpm", Deleted: []domain.DirectoryRecord{stored.Record}}); err != nil {
		t.Fatal(err)
	}
	existing, err = s.Existing(ctx, "jpm")
	if err != nil {
		t.Fatal(err)
	}
	if len(existing) != 0 {
		t.Errorf("existing has %d docs after delete, want 0", len(existing))
	}
}

func TestSearchIndex_ExistingEmptyOrg(t *testing.T) {
	s := newTestIndex(t)
	existing, err := s.Existing(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Existing failed: %v", err)
	}
	if len(existing) != 0 {
		t.Errorf("got %d docs for unknown org", len(existing))
	}
}

func TestSearchIndex_ExistingPaginates(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	var records []domain.DirectoryRecord
	for i := 0; i < existingPageSize+10; i++ {
		records = append(records, rec("jpm", 1, i, "Person"))
	}
	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "jpm", Added: records}); err != nil {
		t.Fatal(err)
	}

	existing, err := s.Existing(ctx, "jpm")
	if err != nil {
		t.Fatal(err)
	}
	if len(existing) != existingPageSize+10 {
		t.Errorf("got %d docs, want %d", len(existing), existingPageSize+10)
	}
}

func TestSearchIndex_Search(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	r1 := rec("jpm", 1, 1, "Ali Bin Abu")
	r1.PositionName = "Ketua Setiausaha"
	r2 := rec("mof", 1, 1, "Siti Aminah")
	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "jpm", Added: []domain.DirectoryRecord{r1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(ctx, reconcile.ChangeSet{OrgID: "mof", Added: []domain.DirectoryRecord{r2}}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "ali", "", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results.Total != 1 {
		t.Errorf("Total = %d, want 1", results.Total)
	}

	// Org filter excludes the only match
	results, err = s.Search(ctx, "ali", "mof", 10)
	if err != nil {
		t.Fatal(err)
	}
	if results.Total != 0 {
		t.Errorf("Total = %d, want 0 with org filter", results.Total)
	}
}

func TestSearchIndex_ReopenExistingIndex(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSearchIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := rec("jpm", 1, 1, "Ali")
	if _, err := s.Apply(context.Background(), reconcile.ChangeSet{OrgID: "jpm", Added: []domain.DirectoryRecord{r}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSearchIndex(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("DocCount = %d, want 1", count)
	}
}
