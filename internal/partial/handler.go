// internal/partial/handler.go
package partial

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/channel"
	"github.com/xkilldash9x/facespatch/internal/config"
)

// Handler runs complete responses against one document: parse, apply,
// reconcile, notify. Calls are serialised.
type Handler struct {
	mu        sync.Mutex
	doc       *dom.Document
	processor *Processor
	sink      EventSink
	logger    *zap.Logger
}

// NewHandler wires a Processor for doc. A nil sink logs events.
func NewHandler(doc *dom.Document, eval dom.ScriptEvaluator, cfg config.PartialConfig, sink EventSink, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NewLoggingSink(logger)
	}
	return &Handler{
		doc:       doc,
		processor: NewProcessor(doc, eval, cfg, logger),
		sink:      sink,
		logger:    logger.Named("handler"),
	}
}

// Process applies one response.
//
// An error directive is reported to the sink and a redirect navigates the
// document; both end processing without error. Client-side failures are
// reported to the sink and returned. Errors from evaluated scripts skip the
// sink and are returned unchanged.
func (h *Handler) Process(resp channel.Response, req RequestContext) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	directives, err := ParseAll(resp)
	if err != nil {
		return h.fail(err)
	}

	ctx := NewProcessingContext(req)
	for _, d := range directives {
		switch d := d.(type) {
		case ErrorDirective:
			h.logger.Debug("Server declared an error.", zap.String("name", d.ErrorName))
			h.sink.ServerError(d.ErrorName, d.ErrorMessage)
			return nil
		case Redirect:
			h.doc.Navigate(d.URL)
			return nil
		case Changes:
			if err := h.processor.Apply(d, ctx); err != nil {
				return h.fail(err)
			}
		}
	}

	h.processor.Reconcile(ctx)
	h.sink.Success()
	return nil
}

func (h *Handler) fail(err error) error {
	var perr *Error
	if errors.As(err, &perr) {
		h.sink.Error(perr)
	}
	return err
}
