// internal/partial/head.go
package partial

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/browser/parser"
)

// markupStrategy recovers the inner markup of one element of a document.
// doc is set only when the whole document was parsed, so that it can be
// reused for the body.
type markupStrategy struct {
	name string
	xml  bool
	run  func(markup, tag string) (inner string, doc *etree.Document, err error)
}

// strategies lists the recovery tiers from the most to the least strict.
// The XML tiers are dropped when the parser is configured as unreliable.
func (p *Processor) strategies() []markupStrategy {
	all := []markupStrategy{
		{name: "strict", xml: true, run: strictParse},
		{name: "repaired", xml: true, run: repairedParse},
		{name: "lenient", run: lenientExtract},
		{name: "raw", run: rawInner},
	}
	if !p.cfg.UnreliableXMLParser {
		return all
	}
	var out []markupStrategy
	for _, s := range all {
		if !s.xml {
			out = append(out, s)
		}
	}
	return out
}

func strictParse(markup, tag string) (string, *etree.Document, error) {
	doc, err := parser.ParseXML(markup)
	if parser.IsParseError(doc, err) {
		return "", nil, fmt.Errorf("strict parse: %w", errOr(err))
	}
	el := doc.FindElement("//" + tag)
	if el == nil {
		return "", doc, nil
	}
	return parser.WriteElementChildren(el), doc, nil
}

func repairedParse(markup, tag string) (string, *etree.Document, error) {
	return strictParse(parser.Repair(markup), tag)
}

// lenientExtract cuts the element out with the HTML tokenizer and validates
// only that narrower fragment as XML.
func lenientExtract(markup, tag string) (string, *etree.Document, error) {
	inner := parser.InnerMarkup(parser.ExtractFragment(markup, tag), tag)
	doc, err := parser.ParseXML("<" + tag + ">" + inner + "</" + tag + ">")
	if parser.IsParseError(doc, err) {
		return "", nil, fmt.Errorf("lenient parse: %w", errOr(err))
	}
	return parser.WriteElementChildren(doc.Root()), nil, nil
}

// rawInner accepts the extracted markup without any validation.
func rawInner(markup, tag string) (string, *etree.Document, error) {
	return parser.InnerMarkup(parser.ExtractFragment(markup, tag), tag), nil, nil
}

func errOr(err error) error {
	if err == nil {
		return parser.ErrInvalidDocument
	}
	return err
}

// replaceHead swaps the effects of the document head: live stylesheets are
// dropped, the new head's styles are applied and its scripts run. It returns
// the fully parsed document when a strict tier produced one.
func (p *Processor) replaceHead(markup string) (*etree.Document, error) {
	var (
		inner  string
		parsed *etree.Document
		errs   []error
		ok     bool
	)
	for _, s := range p.headStrategies {
		var err error
		inner, parsed, err = s.run(markup, "head")
		if err == nil {
			p.logger.Debug("Head recovered.", zap.String("strategy", s.name))
			ok = true
			break
		}
		errs = append(errs, err)
	}
	if !ok {
		return nil, newError(ErrHeadReplacement, "replaceHead", "every head recovery strategy failed", errors.Join(errs...))
	}

	head := p.doc.Head()
	nodes, err := p.doc.ParseFragment(head, inner)
	if err != nil {
		return nil, newError(ErrHeadReplacement, "replaceHead", "new head markup rejected", err)
	}

	if head != nil {
		for _, old := range dom.FindByTag(head, "link", "style") {
			p.doc.Delete(old)
		}
	}
	p.doc.RunCSS(nodes, true)
	p.doc.RunScripts(nodes, true)
	return parsed, nil
}
