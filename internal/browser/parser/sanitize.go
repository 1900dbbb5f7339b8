package parser

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips unsafe markup from server-provided fragments while keeping
// the form controls and identifiers that partial updates depend on.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds the fragment policy on top of bluemonday's UGC policy.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowStandardAttributes()
	p.AllowAttrs("id", "name", "class", "style").Globally()
	p.AllowElements("form", "input", "select", "option", "optgroup", "textarea",
		"button", "label", "fieldset", "legend", "span", "div")
	p.AllowAttrs("action", "method", "enctype").OnElements("form")
	p.AllowAttrs("type", "value", "checked", "disabled", "readonly", "placeholder", "size", "maxlength").
		OnElements("input")
	p.AllowAttrs("value", "selected", "disabled").OnElements("option")
	p.AllowAttrs("multiple", "disabled").OnElements("select")
	p.AllowAttrs("rows", "cols", "disabled", "readonly").OnElements("textarea")
	p.AllowAttrs("type", "value", "disabled").OnElements("button")
	p.AllowAttrs("for").OnElements("label")
	return &Sanitizer{policy: p}
}

// Sanitize returns the cleaned markup.
func (s *Sanitizer) Sanitize(markup string) string {
	return s.policy.Sanitize(markup)
}
