package schema

import (
	"fmt"
	"os"

	"github.com/mygovdir/dirsync/internal/domain"
	"gopkg.in/yaml.v3"
)

// Rules is the static per-category cleanup configuration applied by the
// normalizer. Organization-specific knowledge (deprecated scraper keys,
// which fields get case treatment) lives here, not in code.
type Rules struct {
	// DeprecatedKeys are internal scraper keys stripped from records.
	DeprecatedKeys []string `yaml:"deprecated_keys"`
	// TitleCaseFields get locale-aware title casing.
	TitleCaseFields []string `yaml:"title_case_fields"`
	// LowerCaseFields are lowered (emails, ids).
	LowerCaseFields []string `yaml:"lower_case_fields"`
	// PhoneFields get phone/fax character cleanup.
	PhoneFields []string `yaml:"phone_fields"`
}

// RulesFile is the on-disk shape of a category rules file: one Rules block
// per category name.
type RulesFile struct {
	Categories map[string]Rules `yaml:"categories"`
}

// DefaultMinistryRules covers the common ministry directory shape.
func DefaultMinistryRules() Rules {
	return Rules{
		DeprecatedKeys: []string{"_raw_html", "_page", "_source_url", "person_sort_order"},
		TitleCaseFields: []string{
			domain.FieldPersonName,
			domain.FieldPositionName,
			domain.FieldDivisionName,
			domain.FieldSubdivisionName,
		},
		LowerCaseFields: []string{domain.FieldOrgID, domain.FieldPersonEmail, domain.FieldParentOrgID},
		PhoneFields:     []string{domain.FieldPersonPhone, domain.FieldPersonFax},
	}
}

// LoadRulesFile parses a YAML category rules file.
func LoadRulesFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if rf.Categories == nil {
		rf.Categories = make(map[string]Rules)
	}
	return &rf, nil
}
