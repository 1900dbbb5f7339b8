// browser/dom/document.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ScriptEvaluator executes script source in the global scope of the page.
type ScriptEvaluator interface {
	Evaluate(script string) error
}

// StyleSheet records a stylesheet applied to the document head.
type StyleSheet struct {
	Href  string
	Media string
	Text  string
}

// Document is a live, in-memory HTML document together with the page-level
// state (location, focus, applied styles) that the patch primitives touch.
// A Document is not safe for concurrent use.
type Document struct {
	root     *html.Node
	logger   *zap.Logger
	scripts  ScriptEvaluator
	location string
	activeID string

	styleSheets   []StyleSheet
	loadedScripts []string
}

// Parse reads an HTML page into a new Document.
func Parse(r io.Reader, logger *zap.Logger) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html document: %w", err)
	}
	return NewDocument(root, logger), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(markup string, logger *zap.Logger) (*Document, error) {
	return Parse(strings.NewReader(markup), logger)
}

// NewDocument wraps an already parsed document root.
func NewDocument(root *html.Node, logger *zap.Logger) *Document {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document{
		root:   root,
		logger: logger.Named("dom"),
	}
}

// SetScriptEvaluator installs the evaluator used by RunScripts.
func (d *Document) SetScriptEvaluator(e ScriptEvaluator) { d.scripts = e }

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Render serializes the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning an empty string on failure.
func (d *Document) String() string {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return ""
	}
	return sb.String()
}

// Location returns the URL last navigated to.
func (d *Document) Location() string { return d.location }

// SetLocation records the document URL without treating it as a navigation.
func (d *Document) SetLocation(url string) { d.location = url }

// Navigate performs a full-page navigation (window.location = url).
func (d *Document) Navigate(url string) {
	d.logger.Info("Navigating document.", zap.String("url", url))
	d.location = url
}

// StyleSheets returns the stylesheets applied through RunCSS, in order.
func (d *Document) StyleSheets() []StyleSheet { return d.styleSheets }

// LoadedScripts returns the external script URLs requested through RunScripts.
func (d *Document) LoadedScripts() []string { return d.loadedScripts }

// Head returns the live <head> element.
func (d *Document) Head() *html.Node {
	return htmlquery.FindOne(d.root, "//head")
}

// Body returns the live <body> element.
func (d *Document) Body() *html.Node {
	return htmlquery.FindOne(d.root, "//body")
}

// ByID returns the element with the given id attribute, or nil.
func (d *Document) ByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return htmlquery.FindOne(d.root, "//*[@id="+xpathLiteral(id)+"]")
}

// ByIDOrName resolves an identifier against id first and then against name.
func (d *Document) ByIDOrName(id string) *html.Node {
	if id == "" {
		return nil
	}
	if n := d.ByID(id); n != nil {
		return n
	}
	return htmlquery.FindOne(d.root, "//*[@name="+xpathLiteral(id)+"]")
}

// FindByTag returns every element below root (root included) whose tag is one of tags.
func FindByTag(root *html.Node, tags ...string) []*html.Node {
	if root == nil || len(tags) == 0 {
		return nil
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[strings.ToLower(t)] = true
	}
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && want[n.Data] {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Forms returns every form of the document in document order.
func (d *Document) Forms() []*html.Node {
	return htmlquery.Find(d.root, "//form")
}

// FormByID returns the form with the given id, falling back to a form named id.
func (d *Document) FormByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	for _, f := range d.Forms() {
		if Attr(f, "id") == id {
			return f
		}
	}
	for _, f := range d.Forms() {
		if Attr(f, "name") == id {
			return f
		}
	}
	return nil
}

// ParentForm returns the closest <form>, starting at n itself.
func ParentForm(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return nil
}

// Contains reports whether n is ancestor or one of its descendants.
func Contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Attached reports whether n is still part of the document tree.
func (d *Document) Attached(n *html.Node) bool {
	return n != nil && Contains(d.root, n)
}

// Attr returns the value of an attribute, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	return htmlquery.SelectAttr(n, name)
}

// HasAttr reports whether the attribute is present.
func HasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

// SetAttr sets or adds an attribute on n.
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr removes an attribute from n.
func RemoveAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// SetAttribute is the attribute-setting primitive. A nil node is tolerated.
// Boolean attributes are removed when reset to an empty or "false" value.
func (d *Document) SetAttribute(n *html.Node, name, value string) {
	if n == nil {
		d.logger.Debug("Attribute target does not exist; skipping.", zap.String("attribute", name))
		return
	}
	name = strings.ToLower(name)
	if booleanAttributes[name] && (value == "" || value == "false") {
		RemoveAttr(n, name)
		return
	}
	SetAttr(n, name, value)
}

var booleanAttributes = map[string]bool{
	"checked":  true,
	"disabled": true,
	"readonly": true,
	"selected": true,
	"multiple": true,
	"hidden":   true,
}

// Focus marks the element with id as the active element.
func (d *Document) Focus(id string) { d.activeID = id }

// ActiveElement returns the focused element, if it is still attached.
func (d *Document) ActiveElement() *html.Node {
	if d.activeID == "" {
		return nil
	}
	return d.ByID(d.activeID)
}

// ParseFragment parses markup in the context of the given element. When the
// context is nil or not an element, <body> is used.
func (d *Document) ParseFragment(context *html.Node, markup string) ([]*html.Node, error) {
	if context == nil || context.Type != html.ElementNode {
		context = d.Body()
	}
	if context == nil {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup fragment: %w", err)
	}
	return nodes, nil
}

// OuterReplace replaces n with the parsed markup and returns the inserted
// element nodes. With preserveFocus the active element keeps focus when an
// element with the same id exists after the replacement.
func (d *Document) OuterReplace(n *html.Node, markup string, preserveFocus bool) ([]*html.Node, error) {
	if n == nil || n.Parent == nil {
		return nil, fmt.Errorf("outer replace target is detached")
	}
	focusInside := false
	if active := d.ActiveElement(); active != nil && Contains(n, active) {
		focusInside = true
	}

	nodes, err := d.ParseFragment(n.Parent, markup)
	if err != nil {
		return nil, err
	}
	parent := n.Parent
	for _, c := range nodes {
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)

	if focusInside && (!preserveFocus || d.ActiveElement() == nil) {
		d.activeID = ""
	}
	return elementsOnly(nodes), nil
}

// InsertBefore inserts the parsed markup immediately before anchor.
func (d *Document) InsertBefore(anchor *html.Node, markup string) ([]*html.Node, error) {
	if anchor == nil || anchor.Parent == nil {
		return nil, fmt.Errorf("insert anchor is detached")
	}
	nodes, err := d.ParseFragment(anchor.Parent, markup)
	if err != nil {
		return nil, err
	}
	for _, c := range nodes {
		anchor.Parent.InsertBefore(c, anchor)
	}
	return elementsOnly(nodes), nil
}

// InsertAfter inserts the parsed markup immediately after anchor.
func (d *Document) InsertAfter(anchor *html.Node, markup string) ([]*html.Node, error) {
	if anchor == nil || anchor.Parent == nil {
		return nil, fmt.Errorf("insert anchor is detached")
	}
	nodes, err := d.ParseFragment(anchor.Parent, markup)
	if err != nil {
		return nil, err
	}
	next := anchor.NextSibling
	for _, c := range nodes {
		anchor.Parent.InsertBefore(c, next)
	}
	return elementsOnly(nodes), nil
}

// AppendChild parses markup in the context of parent and appends it.
func (d *Document) AppendChild(parent *html.Node, markup string) ([]*html.Node, error) {
	if parent == nil {
		return nil, fmt.Errorf("append target is nil")
	}
	nodes, err := d.ParseFragment(parent, markup)
	if err != nil {
		return nil, err
	}
	for _, c := range nodes {
		parent.AppendChild(c)
	}
	return elementsOnly(nodes), nil
}

// Delete removes n from the document.
func (d *Document) Delete(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	if active := d.ActiveElement(); active != nil && Contains(n, active) {
		d.activeID = ""
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// RunScripts evaluates the inline <script> elements found in nodes (and their
// descendants). External scripts are recorded, not fetched. Evaluation errors
// are logged and do not stop the remaining scripts.
func (d *Document) RunScripts(nodes []*html.Node, isHead bool) {
	for _, n := range nodes {
		for _, s := range FindByTag(n, "script") {
			if typ := strings.ToLower(Attr(s, "type")); typ != "" && !strings.Contains(typ, "javascript") && typ != "module" {
				continue
			}
			if src := Attr(s, "src"); src != "" {
				d.loadedScripts = append(d.loadedScripts, src)
				continue
			}
			source := TextContent(s)
			if strings.TrimSpace(source) == "" || d.scripts == nil {
				continue
			}
			if err := d.scripts.Evaluate(stripCommentMarkers(source)); err != nil {
				d.logger.Warn("Embedded script failed.",
					zap.Bool("head", isHead),
					zap.String("element", GenerateUniqueXPath(s)),
					zap.Error(err))
			}
		}
	}
}

// RunCSS applies every <style> and stylesheet <link> found in nodes. When
// the nodes are not part of the live head, copies are appended to it.
func (d *Document) RunCSS(nodes []*html.Node, isHead bool) {
	head := d.Head()
	for _, n := range nodes {
		for _, s := range FindByTag(n, "style", "link") {
			if s.Data == "link" && !strings.EqualFold(Attr(s, "rel"), "stylesheet") {
				continue
			}
			sheet := StyleSheet{Href: Attr(s, "href"), Media: Attr(s, "media")}
			if s.Data == "style" {
				sheet.Text = TextContent(s)
			}
			d.styleSheets = append(d.styleSheets, sheet)

			if head != nil && !Contains(head, s) {
				head.AppendChild(cloneNode(s))
			}
		}
	}
	d.logger.Debug("Applied stylesheets.", zap.Bool("head", isHead), zap.Int("total", len(d.styleSheets)))
}

// TextContent concatenates the text below n.
func TextContent(n *html.Node) string {
	return htmlquery.InnerText(n)
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) string {
	return htmlquery.OutputHTML(n, true)
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}

func elementsOnly(nodes []*html.Node) []*html.Node {
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out
}

// stripCommentMarkers removes the legacy "<!--" and "-->" guards some servers
// still wrap inline script bodies with.
func stripCommentMarkers(src string) string {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "<!--") {
		return src
	}
	s = strings.TrimPrefix(s, "<!--")
	s = strings.TrimSuffix(s, "-->")
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "//"))
}
