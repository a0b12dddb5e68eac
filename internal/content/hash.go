// Package content produces the deterministic fingerprints used for change
// detection: a per-record digest over the business fields and a per-batch
// digest used to short-circuit reconciliation when an entire source is
// unchanged since the last run.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/mygovdir/dirsync/internal/domain"
)

// hashedFields is the fixed business-field subset included in the record
// digest, in canonical order. Identity helpers (stable_key) and anything
// attached downstream (content_hash) are deliberately excluded: identity
// and content must be able to change independently.
type hashedFields struct {
	OrgSort         int    `json:"org_sort"`
	OrgID           string `json:"org_id"`
	OrgName         string `json:"org_name"`
	OrgType         string `json:"org_type"`
	DivisionSort    int    `json:"division_sort"`
	DivisionName    string `json:"division_name"`
	SubdivisionName string `json:"subdivision_name"`
	PositionSort    int    `json:"position_sort"`
	PositionName    string `json:"position_name"`
	PersonName      string `json:"person_name"`
	PersonEmail     string `json:"person_email"`
	PersonPhone     string `json:"person_phone"`
	PersonFax       string `json:"person_fax"`
	ParentOrgID     string `json:"parent_org_id"`
}

func canonical(r domain.DirectoryRecord) []byte {
	data, _ := json.Marshal(hashedFields{
		OrgSort:         r.OrgSort,
		OrgID:           r.OrgID,
		OrgName:         r.OrgName,
		OrgType:         r.OrgType,
		DivisionSort:    r.DivisionSort,
		DivisionName:    r.DivisionName,
		SubdivisionName: r.SubdivisionName,
		PositionSort:    r.PositionSort,
		PositionName:    r.PositionName,
		PersonName:      r.PersonName,
		PersonEmail:     r.PersonEmail,
		PersonPhone:     r.PersonPhone,
		PersonFax:       r.PersonFax,
		ParentOrgID:     r.ParentOrgID,
	})
	return data
}

// HashRecord returns the SHA-256 hex digest of the record's canonical JSON
// form. Two records that agree on every hashed business field produce the
// same digest regardless of how their raw input maps were ordered.
func HashRecord(r domain.DirectoryRecord) string {
	sum := sha256.Sum256(canonical(r))
	return hex.EncodeToString(sum[:])
}

// HashBatch returns the SHA-256 hex digest of the ordered batch as JSON
// lines of canonical record forms. Used only for the cheap "did this
// source change at all" check.
func HashBatch(records []domain.DirectoryRecord) string {
	h := sha256.New()
	for _, r := range records {
		h.Write(canonical(r))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile returns the SHA-256 hex digest of a file's raw bytes.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
