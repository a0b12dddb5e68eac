package schema

import (
	"github.com/mygovdir/dirsync/internal/domain"
)

// Kind is the value kind of a schema field.
type Kind int

const (
	// KindInt fields are non-nullable integers, repaired to
	// domain.SortSentinel when missing or mistyped.
	KindInt Kind = iota
	// KindString fields are nullable strings with "" as the null value.
	KindString
)

// Field describes one schema field.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Schema is an ordered list of fields defining the canonical record shape.
// Order matters: it is the canonical key order after normalization.
type Schema struct {
	Fields []Field
}

// Repair records one default-fill performed during validation.
type Repair struct {
	Field  string
	Reason string
}

// DirectorySchema is the canonical directory-entry schema shared by every
// ministry category.
var DirectorySchema = Schema{Fields: []Field{
	{Name: domain.FieldOrgSort, Kind: KindInt},
	{Name: domain.FieldOrgID, Kind: KindString},
	{Name: domain.FieldOrgName, Kind: KindString},
	{Name: domain.FieldOrgType, Kind: KindString},
	{Name: domain.FieldDivisionSort, Kind: KindInt},
	{Name: domain.FieldDivisionName, Kind: KindString, Nullable: true},
	{Name: domain.FieldSubdivisionName, Kind: KindString, Nullable: true},
	{Name: domain.FieldPositionSort, Kind: KindInt},
	{Name: domain.FieldPositionName, Kind: KindString, Nullable: true},
	{Name: domain.FieldPersonName, Kind: KindString, Nullable: true},
	{Name: domain.FieldPersonEmail, Kind: KindString, Nullable: true},
	{Name: domain.FieldPersonPhone, Kind: KindString, Nullable: true},
	{Name: domain.FieldPersonFax, Kind: KindString, Nullable: true},
	{Name: domain.FieldParentOrgID, Kind: KindString, Nullable: true},
}}

// Validate returns a copy of raw in which every schema field is present
// with a value of the declared kind. Missing or mistyped fields are filled
// with a type-appropriate default and reported as repairs; a single
// malformed record never fails the batch. Unknown extra keys pass through
// unchanged for forward compatibility.
func (s Schema) Validate(raw map[string]any) (map[string]any, []Repair) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	var repairs []Repair
	for _, f := range s.Fields {
		v, ok := out[f.Name]
		if !ok || v == nil {
			if !ok {
				repairs = append(repairs, Repair{Field: f.Name, Reason: "missing"})
			} else if !f.Nullable {
				repairs = append(repairs, Repair{Field: f.Name, Reason: "null"})
			}
			out[f.Name] = defaultFor(f.Kind)
			continue
		}
		switch f.Kind {
		case KindInt:
			if n, ok := asInt(v); ok {
				out[f.Name] = n
			} else {
				repairs = append(repairs, Repair{Field: f.Name, Reason: "not an integer"})
				out[f.Name] = domain.SortSentinel
			}
		case KindString:
			if _, ok := v.(string); !ok {
				repairs = append(repairs, Repair{Field: f.Name, Reason: "not a string"})
				out[f.Name] = ""
			}
		}
	}
	return out, repairs
}

func defaultFor(k Kind) any {
	if k == KindInt {
		return domain.SortSentinel
	}
	return ""
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
