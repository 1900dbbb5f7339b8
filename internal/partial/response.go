// internal/partial/response.go
package partial

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/facespatch/internal/browser/parser"
	"github.com/xkilldash9x/facespatch/internal/channel"
)

// Envelope and directive tags.
const (
	tagPartialResponse = "partial-response"
	tagError           = "error"
	tagErrorName       = "error-name"
	tagErrorMessage    = "error-message"
	tagRedirect        = "redirect"
	tagChanges         = "changes"
	tagUpdate          = "update"
	tagInsert          = "insert"
	tagDelete          = "delete"
	tagAttributes      = "attributes"
	tagAttribute       = "attribute"
	tagEval            = "eval"
	tagExtension       = "extension"
	tagBefore          = "before"
	tagAfter           = "after"
)

// Parse returns the first directive of the envelope.
func Parse(resp channel.Response) (Directive, error) {
	directives, err := ParseAll(resp)
	if err != nil {
		return nil, err
	}
	if len(directives) == 0 {
		return nil, newErrorf(ErrMalformedResponse, "Parse", "%s carries no directive", tagPartialResponse)
	}
	return directives[0], nil
}

// ParseAll validates the envelope and returns every top-level directive in
// document order. Unknown top-level children are skipped.
func ParseAll(resp channel.Response) ([]Directive, error) {
	if resp == nil {
		return nil, newErrorf(ErrTransport, "ParseAll", "no response")
	}
	doc, err := resp.XML()
	if err == nil && doc == nil {
		return nil, newErrorf(ErrTransport, "ParseAll", "response has no XML body")
	}
	if parser.IsParseError(doc, err) {
		return nil, newError(ErrMalformedResponse, "ParseAll", "response is not well-formed XML", err)
	}

	root := findRoot(doc)
	if root == nil {
		return nil, newErrorf(ErrMalformedResponse, "ParseAll", "no %s root element", tagPartialResponse)
	}

	var directives []Directive
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case tagError:
			directives = append(directives, ErrorDirective{
				ErrorName:    textOf(child.SelectElement(tagErrorName)),
				ErrorMessage: textOf(child.SelectElement(tagErrorMessage)),
			})
		case tagRedirect:
			directives = append(directives, Redirect{URL: child.SelectAttrValue("url", "")})
		case tagChanges:
			directives = append(directives, Changes{Items: parseChanges(child)})
		}
	}
	return directives, nil
}

// findRoot looks at the first significant top-level node, and at most one
// sibling after it, for the envelope element. The XML declaration and
// whitespace do not count.
func findRoot(doc *etree.Document) *etree.Element {
	seen := 0
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			if strings.TrimSpace(t.Data) == "" {
				continue
			}
		case *etree.ProcInst:
			continue
		}
		if el, ok := tok.(*etree.Element); ok && el.Tag == tagPartialResponse {
			return el
		}
		seen++
		if seen == 2 {
			return nil
		}
	}
	return nil
}

func parseChanges(changes *etree.Element) []ChangeItem {
	var items []ChangeItem
	for _, el := range changes.ChildElements() {
		switch el.Tag {
		case tagUpdate:
			items = append(items, Update{TargetID: el.SelectAttrValue("id", ""), Content: textOf(el)})
		case tagInsert:
			items = append(items, parseInsert(el))
		case tagDelete:
			items = append(items, Delete{TargetID: el.SelectAttrValue("id", "")})
		case tagAttributes:
			attrs := Attributes{TargetID: el.SelectAttrValue("id", "")}
			for _, a := range el.SelectElements(tagAttribute) {
				attrs.Pairs = append(attrs.Pairs, AttributePair{
					Name:  a.SelectAttrValue("name", ""),
					Value: a.SelectAttrValue("value", ""),
				})
			}
			items = append(items, attrs)
		case tagEval:
			items = append(items, Eval{Script: textOf(el)})
		case tagExtension:
			items = append(items, Extension{})
		}
	}
	return items
}

// parseInsert accepts exactly one of: id with a before attribute, id with an
// after attribute, or no id and a leading <before id>/<after id> child.
func parseInsert(el *etree.Element) ChangeItem {
	id := el.SelectAttrValue("id", "")
	before := el.SelectAttrValue(tagBefore, "")
	after := el.SelectAttrValue(tagAfter, "")

	switch {
	case id != "" && before != "" && after == "":
		return Insert{Mode: InsertBefore, AnchorID: before, Content: textOf(el)}
	case id != "" && before == "" && after != "":
		return Insert{Mode: InsertAfter, AnchorID: after, Content: textOf(el)}
	case id != "":
		return Malformed{Tag: tagInsert, Reason: "insert needs exactly one of before or after"}
	}

	children := el.ChildElements()
	if len(children) == 0 {
		return Malformed{Tag: tagInsert, Reason: "insert has neither an id nor a before/after child"}
	}
	nested := children[0]
	anchor := nested.SelectAttrValue("id", "")
	if anchor == "" {
		return Malformed{Tag: tagInsert, Reason: "nested insert position has no id"}
	}
	switch nested.Tag {
	case tagBefore:
		return Insert{Mode: InsertBefore, AnchorID: anchor, Content: textOf(nested)}
	case tagAfter:
		return Insert{Mode: InsertAfter, AnchorID: anchor, Content: textOf(nested)}
	}
	return Malformed{Tag: tagInsert, Reason: "unexpected insert child <" + nested.Tag + ">"}
}

// textOf concatenates the character data (CDATA blocks included) directly
// below el, in document order.
func textOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var sb strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return sb.String()
}
