// internal/partial/directive.go
package partial

// Directive is one top-level child of a partial-response envelope:
// ErrorDirective, Redirect or Changes.
type Directive interface {
	isDirective()
}

// ErrorDirective is a server-declared application error.
type ErrorDirective struct {
	ErrorName    string
	ErrorMessage string
}

// Redirect asks for a full page navigation.
type Redirect struct {
	URL string
}

// Changes is the ordered list of DOM mutations.
type Changes struct {
	Items []ChangeItem
}

func (ErrorDirective) isDirective() {}
func (Redirect) isDirective()       {}
func (Changes) isDirective()        {}

// ChangeItem is one entry of a changes directive. Items are applied strictly
// in document order.
type ChangeItem interface {
	isChangeItem()
}

// InsertMode selects the side of the anchor an insert lands on.
type InsertMode int

const (
	InsertBefore InsertMode = iota
	InsertAfter
)

func (m InsertMode) String() string {
	if m == InsertAfter {
		return "after"
	}
	return "before"
}

// Update replaces the target's outer markup, or routes to the reserved
// document handlers. Content is the concatenation of the CDATA blocks.
type Update struct {
	TargetID string
	Content  string
}

// Insert places Content next to the anchor element.
type Insert struct {
	Mode     InsertMode
	AnchorID string
	Content  string
}

// Delete removes the target element.
type Delete struct {
	TargetID string
}

// AttributePair is one attribute assignment. An absent value is "".
type AttributePair struct {
	Name  string
	Value string
}

// Attributes sets attributes on the target in order.
type Attributes struct {
	TargetID string
	Pairs    []AttributePair
}

// Eval carries script text for the global-scope evaluator.
type Eval struct {
	Script string
}

// Extension is an opaque vendor extension; it is ignored.
type Extension struct{}

// Malformed stands in for an item whose shape could not be decoded, so the
// failure is raised at its position in the change list.
type Malformed struct {
	Tag    string
	Reason string
}

func (Update) isChangeItem()     {}
func (Insert) isChangeItem()     {}
func (Delete) isChangeItem()     {}
func (Attributes) isChangeItem() {}
func (Eval) isChangeItem()       {}
func (Extension) isChangeItem()  {}
func (Malformed) isChangeItem()  {}
