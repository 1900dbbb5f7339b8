// internal/partial/update.go
package partial

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
)

func (p *Processor) applyUpdate(u Update, ctx *ProcessingContext) error {
	if p.isTokenID(u.TargetID) {
		p.captureToken(u, ctx)
		return nil
	}

	switch u.TargetID {
	case p.ids.root:
		markup := u.Content
		if idx := strings.Index(strings.ToLower(markup), "<html"); idx >= 0 {
			markup = markup[idx:]
		}
		parsed, err := p.replaceHead(markup)
		if err != nil {
			return err
		}
		nodes, err := p.replaceBody(markup, parsed)
		if err != nil {
			return err
		}
		p.recordOutcome(nodes, ctx)

	case p.ids.head:
		if _, err := p.replaceHead(u.Content); err != nil {
			return err
		}

	case p.ids.body:
		nodes, err := p.replaceBody(u.Content, nil)
		if err != nil {
			return err
		}
		p.recordOutcome(nodes, ctx)

	case p.ids.resource:
		head := p.doc.Head()
		if head == nil {
			return newErrorf(ErrUnknownTarget, "processUpdate", "document has no head for resource %q", u.TargetID)
		}
		nodes, err := p.doc.AppendChild(head, u.Content)
		if err != nil {
			return newError(ErrMalformedDirective, "processUpdate", "resource markup rejected", err)
		}
		p.doc.RunCSS(nodes, true)
		p.doc.RunScripts(nodes, true)
		p.recordOutcome(nodes, ctx)

	default:
		target := p.doc.ByIDOrName(u.TargetID)
		if target == nil {
			return newErrorf(ErrUnknownTarget, "processUpdate", "update target %q not found", u.TargetID)
		}
		nodes, err := p.doc.OuterReplace(target, p.sanitize(u.Content), p.cfg.PreserveFocus)
		if err != nil {
			return newError(ErrMalformedDirective, "processUpdate", "outer replace failed", err)
		}
		p.doc.RunScripts(nodes, false)
		p.recordOutcome(nodes, ctx)
	}
	return nil
}

// captureToken records a view-state or client-window update without touching
// the DOM. The originating form, when one can be found, is marked affected.
func (p *Processor) captureToken(u Update, ctx *ProcessingContext) {
	value := strings.TrimSpace(u.Content)
	if strings.Contains(u.TargetID, p.ids.viewState) {
		ctx.viewToken, ctx.hasViewToken = value, true
	} else {
		ctx.clientWindow, ctx.hasClientWindow = value, true
	}

	if form := p.sourceForm(ctx); form != nil {
		ctx.addForm(form)
	} else {
		p.logger.Debug("No source form for token update.", zap.String("id", u.TargetID))
	}
}

// sourceForm resolves the form that issued the request: the hinted form id
// first, then fuzzy detection from the source control.
func (p *Processor) sourceForm(ctx *ProcessingContext) *html.Node {
	if form := p.doc.FormByID(ctx.SourceForm); form != nil {
		return form
	}
	elementID := ctx.SourceControl
	if elementID == "" {
		elementID = ctx.Source
	}
	if elementID == "" {
		return nil
	}
	return p.fuzzyFormDetection(elementID)
}

// fuzzyFormDetection finds the form an element id belongs to: the element
// itself when it is a form, its ancestor form, the only form of the page, or
// the form holding a control named like the element.
func (p *Processor) fuzzyFormDetection(id string) *html.Node {
	forms := p.doc.Forms()
	if len(forms) == 0 {
		return nil
	}
	if el := p.doc.ByIDOrName(id); el != nil {
		if form := dom.ParentForm(el); form != nil {
			return form
		}
	}
	if len(forms) == 1 {
		return forms[0]
	}
	for _, form := range forms {
		for _, ctl := range dom.FindByTag(form, "input", "select", "textarea", "button") {
			if dom.Attr(ctl, "name") == id {
				return form
			}
		}
	}
	return nil
}
