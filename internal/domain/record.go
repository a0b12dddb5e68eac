package domain

import (
	"fmt"
	"time"
)

// SortSentinel is the value assigned to a *_sort field that was missing
// from the scraped input. Sentinel-sorted entries sort before real ones so
// they are easy to spot in the mirror.
const SortSentinel = -1

// Organization type values accepted in the org_type field.
const (
	OrgTypeMinistry   = "ministry"
	OrgTypeAgency     = "agency"
	OrgTypeDepartment = "department"
	OrgTypeState      = "state"
)

// DirectoryRecord is one person/position entry in one organization's staff
// directory. Nullable string fields use "" as the explicit null value; the
// *_sort fields are always present (repaired to SortSentinel when absent).
type DirectoryRecord struct {
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

	// StableKey, when supplied by the upstream adapter, overrides the
	// positional identity used for reconciliation. Positional sort values
	// recomputed from page position make moved entries look like
	// delete+add pairs; adapters that can derive a stable key should.
	StableKey string `json:"stable_key,omitempty"`
}

// DocumentID returns the stable per-record key used to match new records
// against previously stored ones. Content may change while the id stays
// fixed; the id is never derived from the content hash.
func (r DirectoryRecord) DocumentID() string {
	if r.StableKey != "" {
		return r.OrgID + "/" + r.StableKey
	}
	return fmt.Sprintf("%s/%d/%d", r.OrgID, r.DivisionSort, r.PositionSort)
}

// Less orders records by the natural in-organization sort key
// (org_sort, division_sort, position_sort).
func (r DirectoryRecord) Less(other DirectoryRecord) bool {
	if r.OrgSort != other.OrgSort {
		return r.OrgSort < other.OrgSort
	}
	if r.DivisionSort != other.DivisionSort {
		return r.DivisionSort < other.DivisionSort
	}
	return r.PositionSort < other.PositionSort
}

// Bleve field name constants for consistent field references in mappings
// and queries.
const (
	FieldID              = "id"
	FieldOrgSort         = "org_sort"
	FieldOrgID           = "org_id"
	FieldOrgName         = "org_name"
	FieldOrgType         = "org_type"
	FieldDivisionSort    = "division_sort"
	FieldDivisionName    = "division_name"
	FieldSubdivisionName = "subdivision_name"
	FieldPositionSort    = "position_sort"
	FieldPositionName    = "position_name"
	FieldPersonName      = "person_name"
	FieldPersonEmail     = "person_email"
	FieldPersonPhone     = "person_phone"
	FieldPersonFax       = "person_fax"
	FieldParentOrgID     = "parent_org_id"
	FieldContentHash     = "content_hash"
)

// Columns is the canonical column order for the spreadsheet mirror. The
// trailing column is the sync timestamp.
var Columns = []string{
	FieldOrgSort,
	FieldOrgID,
	FieldOrgName,
	FieldOrgType,
	FieldDivisionSort,
	FieldDivisionName,
	FieldSubdivisionName,
	FieldPositionSort,
	FieldPositionName,
	FieldPersonName,
	FieldPersonEmail,
	FieldPersonPhone,
	FieldPersonFax,
	FieldParentOrgID,
	"synced_at",
}

// Row renders the record as one spreadsheet row in Columns order.
func (r DirectoryRecord) Row(syncedAt time.Time) []string {
	return []string{
		fmt.Sprintf("%d", r.OrgSort),
		r.OrgID,
		r.OrgName,
		r.OrgType,
		fmt.Sprintf("%d", r.DivisionSort),
		r.DivisionName,
		r.SubdivisionName,
		fmt.Sprintf("%d", r.PositionSort),
		r.PositionName,
		r.PersonName,
		r.PersonEmail,
		r.PersonPhone,
		r.PersonFax,
		r.ParentOrgID,
		syncedAt.UTC().Format(time.RFC3339),
	}
}

// FromMap builds a typed record from a validated raw mapping. Validation
// guarantees every schema field is present with the right kind; unknown
// extra keys are ignored here but preserved in the raw form.
func FromMap(m map[string]any) DirectoryRecord {
	return DirectoryRecord{
		OrgSort:         intField(m, FieldOrgSort),
		OrgID:           stringField(m, FieldOrgID),
		OrgName:         stringField(m, FieldOrgName),
		OrgType:         stringField(m, FieldOrgType),
		DivisionSort:    intField(m, FieldDivisionSort),
		DivisionName:    stringField(m, FieldDivisionName),
		SubdivisionName: stringField(m, FieldSubdivisionName),
		PositionSort:    intField(m, FieldPositionSort),
		PositionName:    stringField(m, FieldPositionName),
		PersonName:      stringField(m, FieldPersonName),
		PersonEmail:     stringField(m, FieldPersonEmail),
		PersonPhone:     stringField(m, FieldPersonPhone),
		PersonFax:       stringField(m, FieldPersonFax),
		ParentOrgID:     stringField(m, FieldParentOrgID),
		StableKey:       stringField(m, "stable_key"),
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// JSON numbers decode as float64
		return int(v)
	default:
		return SortSentinel
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
