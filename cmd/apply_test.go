// File: cmd/apply_test.go
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/facespatch/internal/partial"
)

func decodeReport(t *testing.T, stderr string) result {
	t.Helper()
	start := strings.Index(stderr, "{")
	require.GreaterOrEqual(t, start, 0, "no report in %q", stderr)
	var res result
	require.NoError(t, json.Unmarshal([]byte(stderr[start:]), &res))
	return res
}

func TestApply_Success(t *testing.T) {
	page := writeFile(t, "page.html", testPage)
	resp := writeFile(t, "resp.xml", envelope(
		`<update id="out"><![CDATA[<div id="out">new</div>]]></update>`+
			`<update id="j_id1:javax.faces.ViewState:0"><![CDATA[vs2]]></update>`+
			`<eval><![CDATA[document.getElementById("out").setAttribute("data-eval", "ran")]]></eval>`))

	out, stderr, err := executeCommand(t, nil, "apply", "--page", page, "--response", resp, "--source-form", "f", "--report", "json")
	require.NoError(t, err)

	assert.Contains(t, out, `<div id="out" data-eval="ran">new</div>`)
	assert.Contains(t, out, `value="vs2"`)
	assert.NotContains(t, out, `value="vs1"`)

	res := decodeReport(t, stderr)
	assert.Equal(t, []partial.Event{{Type: partial.EventSuccess}}, res.Events)
	assert.False(t, res.Redirected)
}

func TestApply_ResponseFromStdin(t *testing.T) {
	page := writeFile(t, "page.html", testPage)
	stdin := strings.NewReader(envelope(`<delete id="out"/>`))

	out, _, err := executeCommand(t, stdin, "apply", "-p", page, "-r", "-")
	require.NoError(t, err)
	assert.NotContains(t, out, `id="out"`)
}

func TestApply_WritesOutFile(t *testing.T) {
	page := writeFile(t, "page.html", testPage)
	resp := writeFile(t, "resp.xml", envelope(`<attributes id="out"><attribute name="class" value="hot"/></attributes>`))
	target := filepath.Join(t.TempDir(), "patched.html")

	out, _, err := executeCommand(t, nil, "apply", "--page", page, "--response", resp, "--out", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<div id="out" class="hot">old</div>`)
}

func TestApply_ClientError(t *testing.T) {
	page := writeFile(t, "page.html", testPage)
	resp := writeFile(t, "resp.xml", envelope(`<update id="missing"><![CDATA[<p/>]]></update>`))

	out, stderr, err := executeCommand(t, nil, "apply", "--page", page, "--response", resp, "--report", "json")
	require.Error(t, err)
	assert.ErrorIs(t, err, partial.ErrUnknownTarget)
	assert.Empty(t, out)

	res := decodeReport(t, stderr)
	require.Len(t, res.Events, 1)
	assert.Equal(t, partial.EventError, res.Events[0].Type)
	assert.Equal(t, string(partial.ErrUnknownTarget), res.Events[0].Name)
	assert.NotEmpty(t, res.Error)
}

func TestApply_ServerErrorAndRedirect(t *testing.T) {
	page := writeFile(t, "page.html", testPage)

	serverErr := writeFile(t, "err.xml", `<partial-response><error><error-name>ViewExpiredException</error-name><error-message>expired</error-message></error></partial-response>`)
	_, stderr, err := executeCommand(t, nil, "apply", "--page", page, "--response", serverErr, "--report", "text")
	require.NoError(t, err)
	assert.Contains(t, stderr, "serverError: Server error ViewExpiredException: expired")

	redirect := writeFile(t, "redirect.xml", `<partial-response><redirect url="https://host/login"/></partial-response>`)
	out, stderr, err := executeCommand(t, nil, "apply", "--page", page, "--response", redirect, "--location", "https://host/app", "--report", "text")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "redirect: https://host/login")
}

func TestApply_PartialFlags(t *testing.T) {
	page := writeFile(t, "page.html", `<html><body><form id="a"></form><form id="b"></form></body></html>`)
	resp := writeFile(t, "resp.xml", envelope(`<update id="jakarta.faces.ViewState"><![CDATA[tok]]></update>`))

	out, _, err := executeCommand(t, nil, "apply", "--page", page, "--response", resp,
		"--namespace", "jakarta.faces", "--no-portlet-env")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, `name="jakarta.faces.ViewState"`))
}

func TestApply_FlagValidation(t *testing.T) {
	page := writeFile(t, "page.html", testPage)

	_, _, err := executeCommand(t, nil, "apply", "--page", page)
	assert.Error(t, err)

	_, _, err = executeCommand(t, nil, "apply", "--page", page, "--response", "x.xml", "--report", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported report format")

	_, _, err = executeCommand(t, nil, "apply", "--page", filepath.Join(t.TempDir(), "nope.html"), "--response", page)
	assert.Error(t, err)
}
