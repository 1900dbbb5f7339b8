// internal/partial/body.go
package partial

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/browser/parser"
)

const bodyPlaceholderID = "facespatch-body-placeholder"

// replaceBody swaps the content of the live <body> while keeping the element
// itself. The new content always comes from the lenient extraction; parsing
// is used only to recover the new body's attributes.
func (p *Processor) replaceBody(markup string, precomputed *etree.Document) ([]*html.Node, error) {
	body := p.doc.Body()
	if body == nil {
		return nil, newErrorf(ErrUnknownTarget, "replaceBody", "document has no body")
	}

	if active := p.doc.ActiveElement(); active != nil && !p.cfg.PreserveFocus && dom.Contains(body, active) {
		p.doc.Focus("")
	}
	dom.RemoveChildren(body)
	placeholder := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "id", Val: bodyPlaceholderID}},
	}
	body.AppendChild(placeholder)

	for _, a := range p.bodyAttributes(markup, precomputed) {
		dom.SetAttr(body, a.Key, a.Val)
	}

	fragment := parser.ExtractFragment(markup, "body")
	content := markup
	if fragment != "" {
		content = parser.InnerMarkup(fragment, "body")
	}
	nodes, err := p.doc.OuterReplace(placeholder, content, p.cfg.PreserveFocus)
	if err != nil {
		return nil, newError(ErrMalformedDirective, "replaceBody", "body markup rejected", err)
	}
	p.doc.RunScripts(nodes, false)
	return nodes, nil
}

// bodyAttributes recovers the attributes of the new <body> element, from the
// precomputed document when there is one, else through the same tiers used
// for the head.
func (p *Processor) bodyAttributes(markup string, precomputed *etree.Document) []html.Attribute {
	if precomputed != nil {
		if el := precomputed.FindElement("//body"); el != nil {
			return xmlAttributes(el)
		}
	}
	if !p.cfg.UnreliableXMLParser {
		for _, text := range []string{markup, parser.Repair(markup)} {
			doc, err := parser.ParseXML(text)
			if parser.IsParseError(doc, err) {
				continue
			}
			if el := doc.FindElement("//body"); el != nil {
				return xmlAttributes(el)
			}
			break
		}
	}
	fragment := parser.ExtractFragment(markup, "body")
	if fragment == "" {
		p.logger.Debug("No body element in replacement markup; attributes kept.")
		return nil
	}
	return parser.StartTagAttributes(fragment)
}

func xmlAttributes(el *etree.Element) []html.Attribute {
	out := make([]html.Attribute, 0, len(el.Attr))
	for _, a := range el.Attr {
		key := a.Key
		if a.Space != "" && a.Space != "xmlns" {
			key = a.Space + ":" + a.Key
		}
		if a.Space == "xmlns" || key == "xmlns" {
			continue
		}
		out = append(out, html.Attribute{Key: strings.ToLower(key), Val: a.Value})
	}
	return out
}
