package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mygovdir/dirsync/internal/domain"
)

func sample() domain.DirectoryRecord {
	return domain.DirectoryRecord{
		OrgSort: 1, OrgID: "jpm", OrgName: "Jabatan Perdana Menteri",
		OrgType: "ministry", DivisionSort: 2, DivisionName: "BKP",
		PositionSort: 3, PositionName: "Ketua", PersonName: "Ali",
		PersonEmail: "ali@jpm.gov.my", PersonPhone: "03-8000 8000",
	}
}

func TestHashRecord_Deterministic(t *testing.T) {
	r := sample()
	if HashRecord(r) != HashRecord(r) {
		t.Error("repeated calls must agree")
	}
	if len(HashRecord(r)) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(HashRecord(r)))
	}
}

func TestHashRecord_EqualFieldsEqualDigest(t *testing.T) {
	a := sample()
	b := sample()
	if HashRecord(a) != HashRecord(b) {
		t.Error("field-for-field equal records must hash equal")
	}
}

func TestHashRecord_ContentChangeChangesDigest(t *testing.T) {
	a := sample()
	b := sample()
	b.PersonPhone = "03-8000 8001"
	if HashRecord(a) == HashRecord(b) {
		t.Error("changed business field must change digest")
	}
}

func TestHashRecord_IgnoresStableKey(t *testing.T) {
	a := sample()
	b := sample()
	b.StableKey = "ali-ketua"
	if HashRecord(a) != HashRecord(b) {
		t.Error("identity helpers must not affect the content digest")
	}
}

func TestHashRecord_KeyOrderIrrelevant(t *testing.T) {
	// Same logical record arriving with different raw map orderings.
	m1 := map[string]any{"person_name": "Ali", "org_id": "jpm", "org_sort": 1}
	m2 := map[string]any{"org_sort": 1, "org_id": "jpm", "person_name": "Ali"}
	if HashRecord(domain.FromMap(m1)) != HashRecord(domain.FromMap(m2)) {
		t.Error("digest must be invariant under input key order")
	}
}

func TestHashBatch_OrderSensitive(t *testing.T) {
	a := sample()
	b := sample()
	b.PositionSort = 9

	d1 := HashBatch([]domain.DirectoryRecord{a, b})
	d2 := HashBatch([]domain.DirectoryRecord{b, a})
	if d1 == d2 {
		t.Error("batch digest covers ordering")
	}
	if d1 != HashBatch([]domain.DirectoryRecord{a, b}) {
		t.Error("batch digest must be deterministic")
	}
}

func TestHashBatch_Empty(t *testing.T) {
	if HashBatch(nil) != HashBatch([]domain.DirectoryRecord{}) {
		t.Error("nil and empty batches must hash equal")
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(path, []byte(`[{"org_id":"jpm"}]`), 0644); err != nil {
		t.Fatal(err)
	}

	d1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	d2, _ := HashFile(path)
	if d1 != d2 || len(d1) != 64 {
		t.Errorf("unstable or malformed digest: %q vs %q", d1, d2)
	}

	if _, err := HashFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
