// File: cmd/session.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/browser/jsexec"
	"github.com/xkilldash9x/facespatch/internal/config"
	"github.com/xkilldash9x/facespatch/internal/partial"
)

// partialFlags are the per-invocation overrides of the partial.* settings.
type partialFlags struct {
	namespace     string
	noPortletEnv  bool
	preserveFocus bool
}

func (f *partialFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.namespace, "namespace", "", "reserved id namespace, e.g. jakarta.faces")
	flags.BoolVar(&f.noPortletEnv, "no-portlet-env", false, "broadcast new view state to every form")
	flags.BoolVar(&f.preserveFocus, "preserve-focus", true, "keep focus across replaced elements")
}

// apply copies the flags the user actually set onto cfg.
func (f *partialFlags) apply(cmd *cobra.Command, cfg config.Interface) {
	if cmd.Flags().Changed("namespace") {
		cfg.SetPartialNamespace(f.namespace)
	}
	if cmd.Flags().Changed("no-portlet-env") {
		cfg.SetPartialNoPortletEnv(f.noPortletEnv)
	}
	if cmd.Flags().Changed("preserve-focus") {
		cfg.SetPartialPreserveFocus(f.preserveFocus)
	}
}

// outputFlags select where the patched document and the event report go.
type outputFlags struct {
	out    string
	report string
}

func (f *outputFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.out, "out", "o", "", "write the patched document to this file (default stdout)")
	flags.StringVar(&f.report, "report", "", "print an event report to stderr: text or json")
}

// session is one document with its script runtime and response handler.
type session struct {
	doc      *dom.Document
	handler  *partial.Handler
	recorder *partial.Recorder
}

func newSession(doc *dom.Document, cfg config.Interface, logger *zap.Logger) *session {
	pcfg := cfg.Partial()
	rt := jsexec.NewRuntime(doc, pcfg.ScriptTimeout, logger)
	rec := &partial.Recorder{Next: partial.NewLoggingSink(logger)}
	return &session{
		doc:      doc,
		handler:  partial.NewHandler(doc, rt, pcfg, rec, logger),
		recorder: rec,
	}
}

// finish reports the outcome and writes the document. The processing error,
// if any, wins over output errors.
func (s *session) finish(cmd *cobra.Command, out outputFlags, startLocation string, procErr error) error {
	res := result{
		Events:   s.recorder.Events(),
		Location: s.doc.Location(),
	}
	res.Redirected = res.Location != startLocation
	if procErr != nil {
		res.Error = procErr.Error()
	}

	if out.report != "" {
		if err := writeReport(cmd.ErrOrStderr(), out.report, res); err != nil {
			return err
		}
	}
	if procErr != nil {
		return fmt.Errorf("failed to apply partial response: %w", procErr)
	}
	if res.Redirected {
		// The page is gone; there is nothing meaningful to write.
		return nil
	}
	return writeDocument(s.doc, out.out, cmd.OutOrStdout())
}

func loadDocumentFile(path string, logger *zap.Logger) (*dom.Document, error) {
	f, err := openInput(path, nil)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dom.Parse(f, logger)
}

// openInput opens path, or stdin for "-".
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		if stdin == nil {
			return nil, fmt.Errorf("stdin is not available for this input")
		}
		return io.NopCloser(stdin), nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("could not expand path %q: %w", path, err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func writeDocument(doc *dom.Document, path string, stdout io.Writer) error {
	if path == "" || path == "-" {
		return doc.Render(stdout)
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("could not expand path %q: %w", path, err)
	}
	f, err := os.Create(expanded)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := doc.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	return f.Close()
}

func splitIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		out = append(out, strings.Fields(id)...)
	}
	return out
}
