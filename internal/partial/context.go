// internal/partial/context.go
package partial

import (
	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
)

// RequestContext describes the request a response answers.
type RequestContext struct {
	// Source is the id of the element that triggered the request.
	Source string
	// SourceControl is an explicit source-control id; it wins over Source.
	SourceControl string
	// SourceForm hints the id of the originating form.
	SourceForm string
}

// ref points at an element by id, or by node when it has none. Ids are
// resolved late so that elements replaced later in the same response are
// still found.
type ref struct {
	id   string
	node *html.Node
}

// refSet is an insertion-ordered set of refs.
type refSet struct {
	items []ref
}

func (s *refSet) add(id string, n *html.Node) {
	for _, r := range s.items {
		if (id != "" && r.id == id) || (id == "" && r.id == "" && r.node == n) {
			return
		}
	}
	if id != "" {
		n = nil
	}
	s.items = append(s.items, ref{id: id, node: n})
}

func (s *refSet) len() int { return len(s.items) }

func (s *refSet) clear() { s.items = nil }

// ProcessingContext is the request-scoped bookkeeping of one invocation.
type ProcessingContext struct {
	RequestContext

	affectedForms    refSet
	affectedElements refSet

	viewToken       string
	hasViewToken    bool
	clientWindow    string
	hasClientWindow bool
}

// NewProcessingContext starts the bookkeeping for one response.
func NewProcessingContext(req RequestContext) *ProcessingContext {
	return &ProcessingContext{RequestContext: req}
}

// PendingViewToken returns the captured view-state token, if any.
func (c *ProcessingContext) PendingViewToken() (string, bool) {
	return c.viewToken, c.hasViewToken
}

// PendingClientWindow returns the captured client-window token, if any.
func (c *ProcessingContext) PendingClientWindow() (string, bool) {
	return c.clientWindow, c.hasClientWindow
}

// AffectedFormIDs lists the ids of the affected forms, skipping id-less ones.
func (c *ProcessingContext) AffectedFormIDs() []string { return refIDs(c.affectedForms) }

// AffectedElementIDs lists the ids of the affected elements, skipping id-less ones.
func (c *ProcessingContext) AffectedElementIDs() []string { return refIDs(c.affectedElements) }

func refIDs(s refSet) []string {
	var out []string
	for _, r := range s.items {
		if r.id != "" {
			out = append(out, r.id)
		}
	}
	return out
}

func (c *ProcessingContext) addForm(form *html.Node) {
	c.affectedForms.add(dom.Attr(form, "id"), form)
}

func (c *ProcessingContext) addElement(n *html.Node) {
	c.affectedElements.add(dom.Attr(n, "id"), n)
}
