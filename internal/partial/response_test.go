package partial

import (
	"errors"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/channel"
)

func parseAllString(s string) ([]Directive, error) {
	return ParseAll(channel.NewResponse([]byte(s)))
}

func TestParseAll_Directives(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?>
<partial-response id="j_id1">
  <changes>
    <update id="out"><![CDATA[<div id="out">]]><![CDATA[hi</div>]]></update>
    <insert id="n1" before="anchor"><![CDATA[<p>b</p>]]></insert>
    <insert><after id="anchor"><![CDATA[<p>a</p>]]></after></insert>
    <delete id="gone"/>
    <attributes id="out"><attribute name="class" value="x"/><attribute name="title"/></attributes>
    <eval><![CDATA[window.done = true;]]></eval>
    <extension ln="vendor"><anything/></extension>
  </changes>
  <unknown/>
  <redirect url="https://x/y"/>
  <error><error-name>java.lang.IllegalStateException</error-name><error-message><![CDATA[bad state]]></error-message></error>
</partial-response>`

	got, err := parseAllString(input)
	require.NoError(t, err)

	want := []Directive{
		Changes{Items: []ChangeItem{
			Update{TargetID: "out", Content: `<div id="out">hi</div>`},
			Insert{Mode: InsertBefore, AnchorID: "anchor", Content: "<p>b</p>"},
			Insert{Mode: InsertAfter, AnchorID: "anchor", Content: "<p>a</p>"},
			Delete{TargetID: "gone"},
			Attributes{TargetID: "out", Pairs: []AttributePair{{Name: "class", Value: "x"}, {Name: "title", Value: ""}}},
			Eval{Script: "window.done = true;"},
			Extension{},
		}},
		Redirect{URL: "https://x/y"},
		ErrorDirective{ErrorName: "java.lang.IllegalStateException", ErrorMessage: "bad state"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseAll mismatch (-want +got):\n%s", diff)
	}

	first, err := Parse(channel.NewResponse([]byte(input)))
	require.NoError(t, err)
	assert.IsType(t, Changes{}, first)
}

func TestParse_InsertVariants(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want ChangeItem
	}{
		{"id and after", `<insert id="n" after="a"><![CDATA[x]]></insert>`,
			Insert{Mode: InsertAfter, AnchorID: "a", Content: "x"}},
		{"nested before", `<insert><before id="a"><![CDATA[x]]></before></insert>`,
			Insert{Mode: InsertBefore, AnchorID: "a", Content: "x"}},
		{"both attributes", `<insert id="n" before="a" after="b"><![CDATA[x]]></insert>`,
			Malformed{Tag: "insert", Reason: "insert needs exactly one of before or after"}},
		{"id without position", `<insert id="n"><before id="a"/></insert>`,
			Malformed{Tag: "insert", Reason: "insert needs exactly one of before or after"}},
		{"no id and no child", `<insert><![CDATA[x]]></insert>`,
			Malformed{Tag: "insert", Reason: "insert has neither an id nor a before/after child"}},
		{"nested without id", `<insert><after><![CDATA[x]]></after></insert>`,
			Malformed{Tag: "insert", Reason: "nested insert position has no id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := changesOf(t, envelope(tt.xml))
			require.Len(t, changes.Items, 1)
			if diff := cmp.Diff(tt.want, changes.Items[0]); diff != "" {
				t.Errorf("insert mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
	}{
		{"empty body", "", ErrTransport},
		{"whitespace body", "  \n", ErrTransport},
		{"not xml", "<partial-response><changes>", ErrMalformedResponse},
		{"html error page", "<html><body>500</body></html>", ErrMalformedResponse},
		{"root too late", "<a/><b/><partial-response/>", ErrMalformedResponse},
		{"no directive", "<partial-response/>", ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(channel.NewResponse([]byte(tt.body)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "want %s, got %v", tt.kind, err)

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, TitleClientError, perr.Title)
			assert.Equal(t, errorNamespace, perr.Namespace)
			assert.NotEmpty(t, perr.Caller)
		})
	}

	_, err := ParseAll(nil)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestParse_ToleratesLeadingSibling(t *testing.T) {
	d, err := Parse(channel.NewResponse([]byte(`<stray/><partial-response><redirect url="/next"/></partial-response>`)))
	require.NoError(t, err)
	assert.Equal(t, Redirect{URL: "/next"}, d)
}

func TestParse_DoesNotMutateDocument(t *testing.T) {
	doc := loadPage(t, `<html><body><div id="out">x</div></body></html>`)
	before := doc.String()
	_, err := parseAllString(envelope(`<update id="out"><![CDATA[<div id="out">y</div>]]></update>`))
	require.NoError(t, err)
	assert.Equal(t, before, doc.String())
}

// envelopeParts is filled by the fuzzer to build structurally plausible envelopes.
type envelopeParts struct {
	ID       string
	Content  string
	Before   string
	After    string
	Name     string
	Value    string
	Redirect string
	Kind     uint8
}

func FuzzParseAndApply(f *testing.F) {
	f.Add([]byte("seed-update"))
	f.Add([]byte{0x01, 0x02, 0x03, 0x04, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var parts envelopeParts
		if err := consumer.GenerateStruct(&parts); err != nil {
			return
		}

		var item string
		switch parts.Kind % 5 {
		case 0:
			item = `<update id="` + xmlAttr(parts.ID) + `"><![CDATA[` + parts.Content + `]]></update>`
		case 1:
			item = `<insert id="` + xmlAttr(parts.ID) + `" before="` + xmlAttr(parts.Before) + `" after="` + xmlAttr(parts.After) + `"><![CDATA[` + parts.Content + `]]></insert>`
		case 2:
			item = `<delete id="` + xmlAttr(parts.ID) + `"/>`
		case 3:
			item = `<attributes id="` + xmlAttr(parts.ID) + `"><attribute name="` + xmlAttr(parts.Name) + `" value="` + xmlAttr(parts.Value) + `"/></attributes>`
		default:
			item = `<redirect url="` + xmlAttr(parts.Redirect) + `"/>`
		}

		directives, err := parseAllString(`<partial-response><changes>` + item + `</changes></partial-response>`)
		if err != nil {
			return
		}

		doc, err := dom.ParseString(`<html><head></head><body><form id="f"><div id="a">x</div></form></body></html>`, zap.NewNop())
		require.NoError(t, err)
		p := NewProcessor(doc, nil, testConfig(), zap.NewNop())
		ctx := NewProcessingContext(RequestContext{Source: "a"})
		for _, d := range directives {
			if c, ok := d.(Changes); ok {
				_ = p.Apply(c, ctx)
			}
		}
		p.Reconcile(ctx)
	})
}

func xmlAttr(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '"', '<', '>', '&':
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
