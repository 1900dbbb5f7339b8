package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXML(t *testing.T) {
	doc, err := ParseXML(`<?xml version="1.0"?><partial-response><changes/></partial-response>`)
	require.NoError(t, err)
	assert.Equal(t, "partial-response", doc.Root().Tag)

	_, err = ParseXML(`<html><head><br></head></html>`)
	assert.Error(t, err, "unclosed void elements are not XML")

	_, err = ParseXML(``)
	assert.Error(t, err)
}

func TestIsParseError(t *testing.T) {
	assert.True(t, IsParseError(nil, nil))

	doc, err := ParseXMLBytes([]byte(`<root><ok/></root>`))
	require.NoError(t, err)
	assert.False(t, IsParseError(doc, nil))

	// Some engines return a document describing the failure instead of an error.
	_, err = ParseXML(`<html><parsererror>line 1</parsererror></html>`)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestRepair(t *testing.T) {
	in := `<head><!-- <!-- x --> --><script>a()</script>  </SCRIPT></head>`
	assert.Equal(t, `<head><!-- x --><script>a()</script></head>`, Repair(in))
}

func TestExtractFragment(t *testing.T) {
	page := `<html><HEAD><title>a</title><script>if (a < b) { x = "</div>"; }</script></HEAD>` +
		`<body id="b" class="c"><div><body-ish/></div>X</body></html>`

	head := ExtractFragment(page, "head")
	assert.Equal(t, `<HEAD><title>a</title><script>if (a < b) { x = "</div>"; }</script></HEAD>`, head)

	body := ExtractFragment(page, "body")
	assert.Equal(t, `<body id="b" class="c"><div><body-ish/></div>X</body>`, body)

	assert.Equal(t, `<div><body-ish/></div>X`, InnerMarkup(body, "body"))
	assert.Equal(t, "", ExtractFragment(page, "footer"))

	// Unterminated spans run to the end of input.
	assert.Equal(t, `<body>X`, ExtractFragment(`<html><body>X`, "body"))
}

func TestStartTagAttributes(t *testing.T) {
	attrs := StartTagAttributes(`<body id="b" class="c">x</body>`)
	require.Len(t, attrs, 2)
	assert.Equal(t, "id", attrs[0].Key)
	assert.Equal(t, "c", attrs[1].Val)
}

func TestWriteElementChildren(t *testing.T) {
	doc, err := ParseXML(`<head><title>T &amp; U</title><![CDATA[raw<]]></head>`)
	require.NoError(t, err)
	assert.Equal(t, `<title>T &amp; U</title>raw<`, WriteElementChildren(doc.Root()))

	doc, err = ParseXML(`<head><meta charset="utf-8"/><script>if (a &amp;&amp; b) go()</script><style><![CDATA[p>a{}]]></style></head>`)
	require.NoError(t, err)
	assert.Equal(t, `<meta charset="utf-8"><script>if (a && b) go()</script><style>p>a{}</style>`, WriteElementChildren(doc.Root()))
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize(`<form id="f"><input type="hidden" name="n" value="v"><script>alert(1)</script><a href="javascript:x()">l</a></form>`)
	assert.Contains(t, out, `<form id="f">`)
	assert.Contains(t, out, `name="n"`)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
}
