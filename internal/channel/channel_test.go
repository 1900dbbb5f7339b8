package channel_test

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/channel"
	"github.com/xkilldash9x/facespatch/internal/config"
	"github.com/xkilldash9x/facespatch/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const formPage = `<html><body>
<form id="f" action="/app/page.xhtml">
  <input type="hidden" name="f" value="f">
  <input type="text" name="f:name" value="Ada">
  <input type="checkbox" name="f:agree" checked>
  <input type="checkbox" name="f:skip" value="x">
  <input type="submit" name="f:go" value="Go">
  <input type="text" name="f:off" value="no" disabled>
  <select name="f:color"><option value="r">Red</option><option value="g" selected>Green</option></select>
  <select name="f:size"><option>Small</option><option>Large</option></select>
  <textarea name="f:notes">hello</textarea>
  <input type="hidden" name="javax.faces.ViewState" id="j_id1:javax.faces.ViewState:0" value="vs1">
</form></body></html>`

func loadDoc(t *testing.T, location string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(formPage, zaptest.NewLogger(t))
	require.NoError(t, err)
	doc.SetLocation(location)
	return doc
}

func TestSerializeForm(t *testing.T) {
	doc := loadDoc(t, "")
	values := channel.SerializeForm(doc.FormByID("f"))

	assert.Equal(t, "Ada", values.Get("f:name"))
	assert.Equal(t, "on", values.Get("f:agree"))
	assert.Equal(t, "g", values.Get("f:color"))
	assert.Equal(t, "Small", values.Get("f:size"))
	assert.Equal(t, "hello", values.Get("f:notes"))
	assert.Equal(t, "vs1", values.Get("javax.faces.ViewState"))

	for _, absent := range []string{"f:skip", "f:go", "f:off"} {
		_, ok := values[absent]
		assert.False(t, ok, "%s should not be submitted", absent)
	}
}

func TestChannel_Send(t *testing.T) {
	var got url.Values
	var headers http.Header
	var path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		headers = r.Header.Clone()
		require.NoError(t, r.ParseForm())
		got = r.PostForm

		w.Header().Set("Content-Type", "text/xml")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, `<?xml version="1.0"?><partial-response><changes/></partial-response>`)
		_ = gz.Close()
	}))
	defer server.Close()

	doc := loadDoc(t, server.URL+"/app/start.xhtml")
	ch := channel.New(doc, config.NewDefaultConfig(), zaptest.NewLogger(t))
	defer ch.Close()

	resp, err := ch.Send(context.Background(), channel.Request{
		Form:   doc.FormByID("f"),
		Source: "f:go",
		Event:  "click",
		Render: []string{"f", "out"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/app/page.xhtml", path)
	assert.Equal(t, channel.PartialAjax, headers.Get(channel.FacesRequestHeader))
	assert.NotEmpty(t, headers.Get(channel.RequestIDHeader))
	assert.Equal(t, "true", got.Get("javax.faces.partial.ajax"))
	assert.Equal(t, "f:go", got.Get("javax.faces.source"))
	assert.Equal(t, "f:go", got.Get("javax.faces.partial.execute"))
	assert.Equal(t, "f out", got.Get("javax.faces.partial.render"))
	assert.Equal(t, "click", got.Get("javax.faces.partial.event"))
	assert.Equal(t, "Ada", got.Get("f:name"))

	xml, err := resp.XML()
	require.NoError(t, err)
	require.NotNil(t, xml)
	assert.Equal(t, "partial-response", xml.Root().Tag)
}

func TestChannel_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	doc := loadDoc(t, server.URL+"/")
	ch := channel.New(doc, config.NewDefaultConfig(), zaptest.NewLogger(t))
	defer ch.Close()

	_, err := ch.Send(context.Background(), channel.Request{Form: doc.FormByID("f")})
	var statusErr *channel.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestChannel_RequiresForm(t *testing.T) {
	doc := loadDoc(t, "http://localhost/")
	ch := channel.New(doc, config.NewDefaultConfig(), zaptest.NewLogger(t))
	defer ch.Close()

	_, err := ch.Send(context.Background(), channel.Request{})
	assert.ErrorIs(t, err, channel.ErrNoForm)
}

func TestNewResponse(t *testing.T) {
	doc, err := channel.NewResponse(nil).XML()
	assert.NoError(t, err)
	assert.Nil(t, doc)

	_, err = channel.NewResponse([]byte("<partial-response><changes>")).XML()
	assert.Error(t, err)

	resp := channel.NewResponse([]byte("<partial-response/>"))
	doc, err = resp.XML()
	require.NoError(t, err)
	assert.Equal(t, "partial-response", doc.Root().Tag)
	assert.Equal(t, "<partial-response/>", resp.Text())
}

func TestChannel_LoadDocumentSharesCookies(t *testing.T) {
	var postCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s1", Path: "/"})
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, formPage)
		case http.MethodPost:
			if c, err := r.Cookie("JSESSIONID"); err == nil {
				postCookie = c.Value
			}
			_, _ = io.WriteString(w, `<partial-response><changes/></partial-response>`)
		}
	}))
	defer server.Close()

	ch := channel.New(nil, config.NewDefaultConfig(), zaptest.NewLogger(t))
	defer ch.Close()

	doc, err := ch.LoadDocument(context.Background(), server.URL+"/app/start.xhtml")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/app/start.xhtml", doc.Location())
	require.NotNil(t, doc.FormByID("f"))

	_, err = ch.Send(context.Background(), channel.Request{Form: doc.FormByID("f"), Source: "f:go"})
	require.NoError(t, err)
	assert.Equal(t, "s1", postCookie)
}

func TestChannel_LoadDocumentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer server.Close()

	ch := channel.New(nil, config.NewDefaultConfig(), zaptest.NewLogger(t))
	defer ch.Close()

	_, err := ch.LoadDocument(context.Background(), server.URL+"/secure")
	var statusErr *channel.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusFound, statusErr.StatusCode)
	assert.Equal(t, "/login", statusErr.Location)

	form := &html.Node{Type: html.ElementNode, Data: "form"}
	_, err = ch.Send(context.Background(), channel.Request{Form: form})
	assert.Error(t, err)
}

func TestChannel_UsesConfiguredNamespaceAndHeaders(t *testing.T) {
	var got url.Values
	var agent, custom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		agent = r.Header.Get("User-Agent")
		custom = r.Header.Get("X-Tenant")
		_, _ = io.WriteString(w, `<partial-response/>`)
	}))
	defer server.Close()

	cfg := new(mocks.MockConfig)
	cfg.On("Network").Return(config.NetworkConfig{
		Timeout:   time.Second,
		UserAgent: "facespatch-test",
		Headers:   map[string]string{"X-Tenant": "acme"},
	})
	cfg.On("Partial").Return(config.PartialConfig{Namespace: "jakarta.faces", SeparatorChar: ":"})

	doc := loadDoc(t, server.URL+"/")
	ch := channel.New(doc, cfg, zaptest.NewLogger(t))
	defer ch.Close()

	_, err := ch.Send(context.Background(), channel.Request{Form: doc.FormByID("f"), Source: "f:go"})
	require.NoError(t, err)

	assert.Equal(t, "true", got.Get("jakarta.faces.partial.ajax"))
	assert.Empty(t, got.Get("javax.faces.partial.ajax"))
	assert.Equal(t, "facespatch-test", agent)
	assert.Equal(t, "acme", custom)
	cfg.AssertExpectations(t)
}
