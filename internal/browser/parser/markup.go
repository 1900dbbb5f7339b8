// internal/browser/parser/markup.go
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// ErrInvalidDocument is returned when a document parses but has no usable root element.
var ErrInvalidDocument = errors.New("xml document has no usable root element")

// parserErrorTag is the root some XML engines produce instead of failing.
const parserErrorTag = "parsererror"

// ParseXML parses text as strict XML.
func ParseXML(text string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromString(text); err != nil {
		return nil, fmt.Errorf("xml parse failed: %w", err)
	}
	if IsParseError(doc, nil) {
		return nil, ErrInvalidDocument
	}
	return doc, nil
}

// ParseXMLBytes parses raw bytes as strict XML.
func ParseXMLBytes(b []byte) (*etree.Document, error) {
	return ParseXML(string(b))
}

// IsParseError normalises the different ways an XML parse can fail (returned
// error, empty document, or a <parsererror> document) into one check.
func IsParseError(doc *etree.Document, err error) bool {
	if err != nil || doc == nil {
		return true
	}
	root := doc.Root()
	if root == nil {
		return true
	}
	if strings.EqualFold(root.Tag, parserErrorTag) {
		return true
	}
	return len(root.FindElements("//"+parserErrorTag)) > 0
}

var (
	doubledCommentOpen  = regexp.MustCompile(`<!--\s*<!--`)
	doubledCommentClose = regexp.MustCompile(`-->\s*-->`)
	doubledScriptClose  = regexp.MustCompile(`(?i)</script>\s*</script>`)
)

// Repair applies conservative string-level fixes for markup that XML engines
// commonly mis-parse: doubled comment openers and closers and doubled
// script-closing tags are collapsed.
func Repair(text string) string {
	text = doubledCommentOpen.ReplaceAllString(text, "<!--")
	text = doubledCommentClose.ReplaceAllString(text, "-->")
	return doubledScriptClose.ReplaceAllString(text, "</script>")
}

// ExtractFragment returns the raw markup of the first <tag>...</tag> span in
// text, using a lenient HTML tokenizer. A missing end tag extends the span to
// the end of the input. Returns "" when the tag is absent.
func ExtractFragment(text, tag string) string {
	tag = strings.ToLower(tag)
	z := html.NewTokenizer(strings.NewReader(text))

	offset, start, depth := 0, -1, 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF || start < 0 {
				return ""
			}
			return text[start:]
		}
		raw := len(z.Raw())
		name, _ := z.TagName()

		switch {
		case tt == html.StartTagToken && string(name) == tag:
			if start < 0 {
				start = offset
			} else {
				depth++
			}
		case tt == html.EndTagToken && string(name) == tag && start >= 0:
			if depth == 0 {
				return text[start : offset+raw]
			}
			depth--
		}
		offset += raw
	}
}

// InnerMarkup strips the outer start and end tags of a fragment produced by
// ExtractFragment.
func InnerMarkup(fragment, tag string) string {
	if fragment == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	if tt := z.Next(); tt != html.StartTagToken && tt != html.SelfClosingTagToken {
		return fragment
	}
	inner := fragment[len(z.Raw()):]

	closing := "</" + strings.ToLower(tag)
	trimmed := strings.TrimRight(inner, " \t\r\n")
	if idx := strings.LastIndex(strings.ToLower(trimmed), closing); idx >= 0 && strings.HasSuffix(trimmed, ">") {
		return inner[:idx]
	}
	return inner
}

// StartTagAttributes returns the attributes of the first start tag in fragment.
func StartTagAttributes(fragment string) []html.Attribute {
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken, html.SelfClosingTagToken:
			return z.Token().Attr
		}
	}
}

// WriteElementChildren serializes the children of an XML element back to
// HTML markup. Text below <script> and <style> is written verbatim and void
// elements get no end tag.
func WriteElementChildren(el *etree.Element) string {
	var buf bytes.Buffer
	for _, c := range el.Child {
		writeToken(&buf, c, false)
	}
	return buf.String()
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

func writeToken(buf *bytes.Buffer, tok etree.Token, rawText bool) {
	switch t := tok.(type) {
	case *etree.Element:
		tag := t.FullTag()
		buf.WriteString("<" + tag)
		for _, a := range t.Attr {
			buf.WriteString(" " + a.FullKey() + `="` + html.EscapeString(a.Value) + `"`)
		}
		buf.WriteByte('>')
		name := strings.ToLower(t.Tag)
		if voidElements[name] && len(t.Child) == 0 {
			return
		}
		raw := name == "script" || name == "style"
		for _, c := range t.Child {
			writeToken(buf, c, raw)
		}
		buf.WriteString("</" + tag + ">")
	case *etree.CharData:
		if rawText || t.IsCData() {
			buf.WriteString(t.Data)
		} else {
			buf.WriteString(html.EscapeString(t.Data))
		}
	case *etree.Comment:
		buf.WriteString("<!--" + t.Data + "-->")
	}
}
