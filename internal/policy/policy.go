// Package policy holds the declarative overrides applied on top of the
// caller's visible fields: fields that are always projected for an object
// type, and relation collections always attached to every record.
package policy

import (
	"strings"

	metadata "github.com/hanpama/recordgql/internal/metadata"
)

// Entry forces Fields to be projected for records of Object.
type Entry struct {
	Object string   `yaml:"object"`
	Fields []string `yaml:"fields"`
}

// Table is the forced-inclusion table. The zero value forces nothing.
type Table []Entry

// Forced returns the field names forced for objectName, in table order.
// Object names match case-insensitively.
func (t Table) Forced(objectName string) []string {
	var out []string
	for _, e := range t {
		if strings.EqualFold(e.Object, objectName) {
			out = append(out, e.Fields...)
		}
	}
	return out
}

// Apply returns requested plus every forced field of objectName that exists
// in all and is not already requested. requested is not modified.
func (t Table) Apply(objectName string, requested, all []*metadata.Field) []*metadata.Field {
	forced := t.Forced(objectName)
	out := append(make([]*metadata.Field, 0, len(requested)+len(forced)), requested...)
	if len(forced) == 0 {
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, f := range out {
		if f != nil {
			seen[f.ID] = true
		}
	}
	byName := make(map[string]*metadata.Field, len(all))
	for _, f := range all {
		byName[f.Name] = f
	}
	for _, name := range forced {
		f, ok := byName[name]
		if !ok || seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	return out
}

// Attachment is a relation collection projected on every record, regardless
// of visibility. Object names the metadata of the collection's records.
type Attachment struct {
	Field  string `yaml:"field"`
	Object string `yaml:"object"`
}

// Config is the operator-facing policy file.
type Config struct {
	ForcedInclusion Table        `yaml:"forcedInclusion"`
	AlwaysInclude   []Attachment `yaml:"alwaysInclude"`
}

// Default returns the policy used by the Twenty CRM record tables.
func Default() *Config {
	return &Config{
		ForcedInclusion: Table{
			{Object: "task", Fields: []string{"assignee"}},
		},
		AlwaysInclude: []Attachment{
			{Field: "noteTargets", Object: "noteTarget"},
			{Field: "taskTargets", Object: "taskTarget"},
		},
	}
}
