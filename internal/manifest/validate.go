package manifest

import "fmt"

// Report lists every defect found in a manifest in one pass. Valid reflects
// Errors only; Warnings carries the findings of the type's advisory rules.
type Report struct {
	Type       ResourceType `json:"type" yaml:"type"`
	Valid      bool         `json:"valid" yaml:"valid"`
	Errors     []string     `json:"errors" yaml:"errors"`
	Warnings   []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Categories int          `json:"categories" yaml:"categories"`
	Resources  int          `json:"resources" yaml:"resources"`
}

func (r *Report) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Validate checks doc against the structural rules for t. Defects are
// collected in discovery order, category-major then resource-minor. The only
// early exit is a missing or malformed categories array.
func Validate(doc *Document, t ResourceType) Report {
	cfg, _ := Lookup(t)
	report := Report{Type: t, Errors: []string{}}

	categories := arrayField(doc.root, "categories")
	if !categories.ok() {
		report.addError("Missing or invalid categories array")
		return report
	}
	report.Categories = len(categories.value)

	for i, cat := range categories.value {
		if !idField(cat, "category").ok() {
			report.addError("Category %d missing ID", i)
		}
		label := categoryLabel(cat, i)

		resources := arrayField(cat, "resource")
		if !resources.ok() {
			report.addError("Category %s has invalid resources", label)
			continue
		}
		report.Resources += len(resources.value)

		for j, res := range resources.value {
			if !stringField(res, "thumb").ok() || !stringField(res, "zip").ok() {
				report.addError("Category %s, resource %d missing thumb or zip", label, j)
			}
		}
	}

	if cfg.RequiresBase {
		if !stringField(doc.root, "base").ok() {
			report.addError("Missing base URL")
		}
	}

	report.Valid = len(report.Errors) == 0

	for _, rule := range cfg.Rules {
		report.Warnings = append(report.Warnings, rule(doc)...)
	}
	return report
}
