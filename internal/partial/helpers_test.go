package partial

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/channel"
	"github.com/xkilldash9x/facespatch/internal/config"
)

// recordingEvaluator collects evaluated scripts and fails on demand.
type recordingEvaluator struct {
	scripts []string
	failOn  string
}

func (r *recordingEvaluator) Evaluate(script string) error {
	r.scripts = append(r.scripts, script)
	if r.failOn != "" && script == r.failOn {
		return errScript
	}
	return nil
}

var errScript = errors.New("script exploded")

func testConfig() config.PartialConfig {
	return config.NewDefaultConfig().Partial()
}

func loadPage(t *testing.T, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(markup, zaptest.NewLogger(t))
	require.NoError(t, err)
	return doc
}

func newTestProcessor(t *testing.T, markup string, mutate ...func(*config.PartialConfig)) (*Processor, *dom.Document, *recordingEvaluator) {
	t.Helper()
	doc := loadPage(t, markup)
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	eval := &recordingEvaluator{}
	doc.SetScriptEvaluator(eval)
	return NewProcessor(doc, eval, cfg, zaptest.NewLogger(t)), doc, eval
}

// changesOf parses an envelope and returns its single changes directive.
func changesOf(t *testing.T, envelope string) Changes {
	t.Helper()
	d, err := Parse(channel.NewResponse([]byte(envelope)))
	require.NoError(t, err)
	changes, ok := d.(Changes)
	require.True(t, ok, "expected changes, got %T", d)
	return changes
}

func envelope(changes string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><partial-response><changes>` + changes + `</changes></partial-response>`
}

func valueOf(doc *dom.Document, id string) string {
	return dom.Attr(doc.ByID(id), "value")
}

// prevElement returns the closest preceding element sibling of n.
func prevElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}
