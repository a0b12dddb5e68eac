package schema

import (
	"fmt"
	"sort"
)

// Category bundles the schema and cleanup rules for one record category.
type Category struct {
	Name   string
	Schema Schema
	Rules  Rules
}

// Registry resolves a category name to its schema and rules. Resolution is
// always by explicit lookup, never by filesystem convention.
type Registry struct {
	categories map[string]Category
}

// NewRegistry returns a registry pre-populated with the built-in ministry
// category.
func NewRegistry() *Registry {
	r := &Registry{categories: make(map[string]Category)}
	r.Register(Category{Name: "ministry", Schema: DirectorySchema, Rules: DefaultMinistryRules()})
	return r
}

// Register adds or replaces a category.
func (r *Registry) Register(c Category) {
	r.categories[c.Name] = c
}

// LoadFile merges categories from a YAML rules file. File entries share the
// directory schema; only the cleanup rules vary per category.
func (r *Registry) LoadFile(path string) error {
	rf, err := LoadRulesFile(path)
	if err != nil {
		return err
	}
	for name, rules := range rf.Categories {
		r.Register(Category{Name: name, Schema: DirectorySchema, Rules: rules})
	}
	return nil
}

// Resolve returns the category for the given name.
func (r *Registry) Resolve(name string) (Category, error) {
	c, ok := r.categories[name]
	if !ok {
		return Category{}, fmt.Errorf("unknown record category: %q", name)
	}
	return c, nil
}

// Names returns the registered category names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
