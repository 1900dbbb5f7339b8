// internal/partial/processor.go
package partial

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/browser/parser"
	"github.com/xkilldash9x/facespatch/internal/config"
)

// reservedIDs are the target ids that route to document-level handlers, and
// the markers that identify token carriers.
type reservedIDs struct {
	root         string
	head         string
	body         string
	resource     string
	viewState    string
	clientWindow string
}

func newReservedIDs(ns string) reservedIDs {
	return reservedIDs{
		root:         ns + ".ViewRoot",
		head:         ns + ".ViewHead",
		body:         ns + ".ViewBody",
		resource:     ns + ".Resource",
		viewState:    ns + ".ViewState",
		clientWindow: ns + ".ClientWindow",
	}
}

// Processor applies change directives to a document and reconciles the
// view tokens afterwards.
type Processor struct {
	doc       *dom.Document
	eval      dom.ScriptEvaluator
	cfg       config.PartialConfig
	ids       reservedIDs
	sanitizer *parser.Sanitizer
	logger    *zap.Logger

	headStrategies []markupStrategy
}

// NewProcessor creates a Processor for doc. eval runs <eval> directives and
// may be nil, in which case they are skipped.
func NewProcessor(doc *dom.Document, eval dom.ScriptEvaluator, cfg config.PartialConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "javax.faces"
	}
	if cfg.SeparatorChar == "" {
		cfg.SeparatorChar = ":"
	}
	p := &Processor{
		doc:    doc,
		eval:   eval,
		cfg:    cfg,
		ids:    newReservedIDs(cfg.Namespace),
		logger: logger.Named("processor"),
	}
	if cfg.SanitizeFragments {
		p.sanitizer = parser.NewSanitizer()
	}
	p.headStrategies = p.strategies()
	return p
}

// Apply runs every item of changes in document order. The first failure
// stops processing; mutations already made are kept.
func (p *Processor) Apply(changes Changes, ctx *ProcessingContext) error {
	for i, item := range changes.Items {
		if err := p.applyItem(item, ctx); err != nil {
			p.logger.Debug("Change aborted the response.", zap.Int("index", i), zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) applyItem(item ChangeItem, ctx *ProcessingContext) error {
	switch it := item.(type) {
	case Update:
		return p.applyUpdate(it, ctx)
	case Insert:
		return p.applyInsert(it, ctx)
	case Delete:
		return p.applyDelete(it, ctx)
	case Attributes:
		return p.applyAttributes(it)
	case Eval:
		return p.applyEval(it)
	case Extension:
		return nil
	case Malformed:
		return newErrorf(ErrMalformedDirective, "processInsert", "%s", it.Reason)
	default:
		return newErrorf(ErrMalformedDirective, "Apply", "unsupported change item %T", item)
	}
}

// applyEval hands the script to the evaluator. Its error is returned as is.
func (p *Processor) applyEval(e Eval) error {
	if p.eval == nil {
		p.logger.Warn("No script evaluator configured; skipping eval.")
		return nil
	}
	return p.eval.Evaluate(e.Script)
}

func (p *Processor) applyInsert(ins Insert, ctx *ProcessingContext) error {
	anchor := p.doc.ByIDOrName(ins.AnchorID)
	if anchor == nil {
		return newErrorf(ErrUnknownTarget, "processInsert", "insert anchor %q not found", ins.AnchorID)
	}
	content := p.sanitize(ins.Content)

	insertFn := p.doc.InsertBefore
	if ins.Mode == InsertAfter {
		insertFn = p.doc.InsertAfter
	}
	nodes, err := insertFn(anchor, content)
	if err != nil {
		return newError(ErrMalformedDirective, "processInsert", "insert failed", err)
	}
	p.doc.RunScripts(nodes, false)
	p.recordOutcome(nodes, ctx)
	return nil
}

func (p *Processor) applyDelete(d Delete, ctx *ProcessingContext) error {
	if d.TargetID == "" {
		return newErrorf(ErrMalformedDirective, "processDelete", "delete requires an id")
	}
	target := p.doc.ByIDOrName(d.TargetID)
	if target == nil {
		return newErrorf(ErrUnknownTarget, "processDelete", "delete target %q not found", d.TargetID)
	}
	if form := dom.ParentForm(target.Parent); form != nil {
		ctx.addForm(form)
	}
	p.doc.Delete(target)
	return nil
}

func (p *Processor) applyAttributes(a Attributes) error {
	switch a.TargetID {
	case "":
		return newErrorf(ErrMalformedDirective, "processAttributes", "attributes requires an id")
	case p.ids.root, p.ids.head:
		return newErrorf(ErrUnsupportedOperation, "processAttributes", "attributes cannot target %q", a.TargetID)
	}

	target := p.doc.Body()
	if a.TargetID != p.ids.body {
		target = p.doc.ByID(a.TargetID)
	}
	if target == nil {
		p.logger.Debug("Attributes target not found.", zap.String("id", a.TargetID))
	}
	for _, pair := range a.Pairs {
		p.doc.SetAttribute(target, pair.Name, pair.Value)
	}
	return nil
}

// recordOutcome files each node under its nearest form (self included), or
// under the affected elements when it has none.
func (p *Processor) recordOutcome(nodes []*html.Node, ctx *ProcessingContext) {
	for _, n := range nodes {
		if form := dom.ParentForm(n); form != nil {
			ctx.addForm(form)
		} else {
			ctx.addElement(n)
		}
	}
}

func (p *Processor) sanitize(markup string) string {
	if p.sanitizer == nil {
		return markup
	}
	return p.sanitizer.Sanitize(markup)
}

// isTokenID reports whether id carries a view-state or client-window token.
// The marker may be surrounded by naming-container segments.
func (p *Processor) isTokenID(id string) bool {
	return strings.Contains(id, p.ids.viewState) || strings.Contains(id, p.ids.clientWindow)
}
