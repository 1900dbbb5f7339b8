// internal/channel/channel.go
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/browser/network"
	"github.com/xkilldash9x/facespatch/internal/config"
)

// FacesRequestHeader marks a request as a partial request.
const (
	FacesRequestHeader = "Faces-Request"
	PartialAjax        = "partial/ajax"
	RequestIDHeader    = "X-Request-ID"
)

// ErrNoForm is returned when a request cannot be tied to a form.
var ErrNoForm = errors.New("partial request needs a form")

// StatusError reports a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Location   string
}

func (e *StatusError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("server answered %d (location %s)", e.StatusCode, e.Location)
	}
	return fmt.Sprintf("server answered %d", e.StatusCode)
}

// Request describes one partial round trip.
type Request struct {
	// Form is the form whose fields are submitted.
	Form *html.Node
	// Source is the id of the component that triggered the request.
	Source string
	// Event is the client behavior event name, e.g. "click" or "change".
	Event   string
	Execute []string
	Render  []string
	// Params are added after the serialised form fields.
	Params map[string]string
}

// Channel issues partial requests against the server that produced a document.
type Channel struct {
	client    *http.Client
	doc       *dom.Document
	namespace string
	logger    *zap.Logger
}

// New creates a Channel for doc. The document location is used to resolve
// form actions. doc may be nil when the page is fetched with LoadDocument.
func New(doc *dom.Document, cfg config.Interface, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		client:    network.NewClient(cfg.Network()),
		doc:       doc,
		namespace: cfg.Partial().Namespace,
		logger:    logger.Named("channel"),
	}
}

// Send submits req and returns the raw response. Transport failures and
// non-2xx answers are returned as errors; the body is not interpreted here.
func (c *Channel) Send(ctx context.Context, req Request) (Response, error) {
	if req.Form == nil {
		return nil, ErrNoForm
	}
	if c.doc == nil {
		return nil, errors.New("channel has no document")
	}
	target, err := c.actionURL(req.Form)
	if err != nil {
		return nil, err
	}
	body := c.encode(req)
	requestID := uuid.NewString()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build partial request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	httpReq.Header.Set(FacesRequestHeader, PartialAjax)
	httpReq.Header.Set(RequestIDHeader, requestID)

	log := c.logger.With(zap.String("request_id", requestID), zap.String("url", target))
	log.Debug("Sending partial request.", zap.String("source", req.Source), zap.Int("bytes", len(body)))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("partial request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read partial response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("Partial request rejected.", zap.Int("status", resp.StatusCode))
		return nil, &StatusError{StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	log.Debug("Received partial response.", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(data)))
	return NewResponse(data), nil
}

// LoadDocument fetches the page at pageURL and makes it the channel's
// document. The same client, and so the same cookie jar, is used for the
// partial requests that follow.
func (c *Channel) LoadDocument(ctx context.Context, pageURL string) (*dom.Document, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build page request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	doc, err := dom.Parse(resp.Body, c.logger)
	if err != nil {
		return nil, err
	}
	doc.SetLocation(resp.Request.URL.String())
	c.doc = doc
	c.logger.Debug("Loaded page.", zap.String("url", doc.Location()))
	return doc, nil
}

// Close releases idle connections held by the channel.
func (c *Channel) Close() {
	c.client.CloseIdleConnections()
}

func (c *Channel) actionURL(form *html.Node) (string, error) {
	action := dom.Attr(form, "action")
	base := c.doc.Location()
	if base == "" {
		if action == "" {
			return "", fmt.Errorf("form has no action and the document has no location")
		}
		return action, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid document location %q: %w", base, err)
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("invalid form action %q: %w", action, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func (c *Channel) encode(req Request) string {
	values := SerializeForm(req.Form)
	ns := c.namespace
	values.Set(ns+".partial.ajax", "true")
	if req.Source != "" {
		values.Set(ns+".source", req.Source)
	}
	if req.Event != "" {
		values.Set(ns+".partial.event", req.Event)
		values.Set(ns+".behavior.event", req.Event)
	}
	execute := req.Execute
	if len(execute) == 0 && req.Source != "" {
		execute = []string{req.Source}
	}
	if len(execute) > 0 {
		values.Set(ns+".partial.execute", strings.Join(execute, " "))
	}
	if len(req.Render) > 0 {
		values.Set(ns+".partial.render", strings.Join(req.Render, " "))
	}
	for k, v := range req.Params {
		values.Set(k, v)
	}
	return values.Encode()
}
