package chart

import (
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultPlotField is the plot-series field of Plotly-style figures.
const DefaultPlotField = "data"

// Rule is the shape predicate a parsed candidate must satisfy.
// Field is a gjson path; the zero Rule uses DefaultPlotField.
type Rule struct {
	Field string
}

// NewRule returns a rule requiring field to be present.
func NewRule(field string) Rule {
	return Rule{Field: strings.TrimSpace(field)}
}

func (r Rule) field() string {
	if r.Field == "" {
		return DefaultPlotField
	}
	return r.Field
}

// Accepts reports whether raw is a JSON object carrying a non-null
// plot-series field.
// raw must already be valid JSON.
func (r Rule) Accepts(raw string) bool {
	v := gjson.Parse(raw)
	if !v.IsObject() {
		return false
	}
	f := v.Get(r.field())
	return f.Exists() && f.Type != gjson.Null
}
