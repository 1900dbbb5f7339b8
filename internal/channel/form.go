// internal/channel/form.go
package channel

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
)

// SerializeForm collects the successful controls of form the way a browser
// would for an urlencoded submission. Buttons are left out; the triggering
// component is named by the request source instead.
func SerializeForm(form *html.Node) url.Values {
	values := url.Values{}
	for _, n := range dom.FindByTag(form, "input", "select", "textarea") {
		name := dom.Attr(n, "name")
		if name == "" || dom.HasAttr(n, "disabled") {
			continue
		}
		switch n.Data {
		case "input":
			switch strings.ToLower(dom.Attr(n, "type")) {
			case "submit", "button", "reset", "image", "file":
				continue
			case "checkbox", "radio":
				if !dom.HasAttr(n, "checked") {
					continue
				}
				v := dom.Attr(n, "value")
				if !dom.HasAttr(n, "value") {
					v = "on"
				}
				values.Add(name, v)
			default:
				values.Add(name, dom.Attr(n, "value"))
			}
		case "textarea":
			values.Add(name, dom.TextContent(n))
		case "select":
			for _, v := range selectedOptions(n) {
				values.Add(name, v)
			}
		}
	}
	return values
}

func selectedOptions(sel *html.Node) []string {
	options := dom.FindByTag(sel, "option")
	var out []string
	for _, o := range options {
		if dom.HasAttr(o, "selected") {
			out = append(out, optionValue(o))
		}
	}
	if len(out) == 0 && len(options) > 0 && !dom.HasAttr(sel, "multiple") {
		out = append(out, optionValue(options[0]))
	}
	return out
}

func optionValue(o *html.Node) string {
	if dom.HasAttr(o, "value") {
		return dom.Attr(o, "value")
	}
	return strings.TrimSpace(dom.TextContent(o))
}
