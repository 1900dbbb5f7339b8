// internal/partial/viewstate.go
package partial

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
)

// Reconcile writes the captured view-state and client-window tokens into the
// hidden fields of the affected forms, then clears the affected sets. It is a
// no-op when no token was captured.
func (p *Processor) Reconcile(ctx *ProcessingContext) {
	defer func() {
		ctx.affectedForms.clear()
		ctx.affectedElements.clear()
	}()

	if ctx.hasViewToken {
		p.propagate(ctx, p.ids.viewState, ctx.viewToken)
	}
	if ctx.hasClientWindow {
		p.propagate(ctx, p.ids.clientWindow, ctx.clientWindow)
	}
}

func (p *Processor) propagate(ctx *ProcessingContext, name, value string) {
	log := p.logger.With(zap.String("field", name))

	if p.cfg.NoPortletEnv {
		forms := p.doc.Forms()
		for _, form := range forms {
			p.setTokenOnForm(form, name, value)
		}
		log.Debug("Token broadcast to every form.", zap.Int("forms", len(forms)))
		return
	}

	if form := p.firstResolvableForm(ctx); form != nil {
		field := p.setTokenOnForm(form, name, value)
		prefix := tokenPrefix(dom.Attr(field, "id"), name)
		updated := 0
		if prefix != "" {
			for _, other := range p.tokenFields(p.doc.Root(), name) {
				if strings.HasPrefix(dom.Attr(other, "id"), prefix) {
					dom.SetAttr(other, "value", value)
					updated++
				}
			}
		}
		log.Debug("Token propagated by prefix.", zap.String("prefix", prefix), zap.Int("fields", updated))
		return
	}

	for _, r := range ctx.affectedForms.items {
		if form := p.resolve(r); form != nil {
			p.setTokenOnForm(form, name, value)
		}
	}
	for _, r := range ctx.affectedElements.items {
		el := p.resolve(r)
		if el == nil {
			continue
		}
		for _, form := range dom.FindByTag(el, "form") {
			p.setTokenOnForm(form, name, value)
		}
	}
	log.Debug("Token set on affected forms.",
		zap.Int("forms", ctx.affectedForms.len()),
		zap.Int("elements", ctx.affectedElements.len()))
}

// firstResolvableForm returns the first affected form known by an id that
// still resolves to a live form.
func (p *Processor) firstResolvableForm(ctx *ProcessingContext) *html.Node {
	for _, r := range ctx.affectedForms.items {
		if r.id == "" {
			continue
		}
		if n := p.doc.ByID(r.id); n != nil && n.Data == "form" {
			return n
		}
	}
	return nil
}

// resolve looks a ref up late; nodes are used only while still attached.
func (p *Processor) resolve(r ref) *html.Node {
	if r.id != "" {
		return p.doc.ByID(r.id)
	}
	if p.doc.Attached(r.node) {
		return r.node
	}
	return nil
}

// tokenPrefix cuts id right after the token name: "j_id1:javax.faces.ViewState:0"
// yields "j_id1:javax.faces.ViewState".
func tokenPrefix(id, name string) string {
	idx := strings.Index(id, name)
	if idx < 0 {
		return ""
	}
	return id[:idx+len(name)]
}

func (p *Processor) tokenFields(root *html.Node, name string) []*html.Node {
	var out []*html.Node
	for _, in := range dom.FindByTag(root, "input") {
		if dom.Attr(in, "name") == name {
			out = append(out, in)
		}
	}
	return out
}

// setTokenOnForm stores value in the form's token field, appending a hidden
// field when the form has none. It returns the field.
func (p *Processor) setTokenOnForm(form *html.Node, name, value string) *html.Node {
	if fields := p.tokenFields(form, name); len(fields) > 0 {
		dom.SetAttr(fields[0], "value", value)
		return fields[0]
	}

	sep := p.cfg.SeparatorChar
	id := name + sep + uuid.NewString()
	if formID := dom.Attr(form, "id"); formID != "" {
		id = formID + sep + id
	}
	field := &html.Node{
		Type:     html.ElementNode,
		Data:     "input",
		DataAtom: atom.Input,
		Attr: []html.Attribute{
			{Key: "type", Val: "hidden"},
			{Key: "name", Val: name},
			{Key: "id", Val: id},
			{Key: "value", Val: value},
		},
	}
	form.AppendChild(field)
	p.logger.Debug("Synthesized token field.", zap.String("id", id))
	return field
}
