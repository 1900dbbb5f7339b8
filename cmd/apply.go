// File: cmd/apply.go
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/facespatch/internal/channel"
	"github.com/xkilldash9x/facespatch/internal/config"
	"github.com/xkilldash9x/facespatch/internal/observability"
	"github.com/xkilldash9x/facespatch/internal/partial"
)

type applyOptions struct {
	page          string
	response      string
	location      string
	source        string
	sourceForm    string
	sourceControl string

	partial partialFlags
	output  outputFlags
}

// newApplyCmd creates the `apply` command, which runs a saved partial
// response against a saved page.
func newApplyCmd() *cobra.Command {
	opts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a partial response to an HTML page and print the result",
		Example: `  facespatch apply --page page.html --response resp.xml --source-form f
  curl -s ... | facespatch apply --page page.html --response - --report json`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateReportFormat(opts.output.report)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			opts.partial.apply(cmd, cfg)
			if err := cfg.PartialCfg.Validate(); err != nil {
				return fmt.Errorf("invalid partial settings: %w", err)
			}
			return runApply(cmd, cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.page, "page", "p", "", "HTML page to patch")
	flags.StringVarP(&opts.response, "response", "r", "", "partial response XML, or - for stdin")
	flags.StringVar(&opts.location, "location", "", "URL the page was served from")
	flags.StringVar(&opts.source, "source", "", "id of the element that triggered the request")
	flags.StringVar(&opts.sourceForm, "source-form", "", "id of the form that issued the request")
	flags.StringVar(&opts.sourceControl, "source-control", "", "explicit source control id")
	opts.partial.register(flags)
	opts.output.register(flags)
	_ = cmd.MarkFlagRequired("page")
	_ = cmd.MarkFlagRequired("response")
	return cmd
}

func runApply(cmd *cobra.Command, cfg config.Interface, opts *applyOptions) error {
	logger := observability.GetLogger().With(zap.String("command", "apply"))

	doc, err := loadDocumentFile(opts.page, logger)
	if err != nil {
		return err
	}
	doc.SetLocation(opts.location)

	in, err := openInput(opts.response, cmd.InOrStdin())
	if err != nil {
		return err
	}
	body, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	s := newSession(doc, cfg, logger)
	procErr := s.handler.Process(channel.NewResponse(body), partial.RequestContext{
		Source:        opts.source,
		SourceForm:    opts.sourceForm,
		SourceControl: opts.sourceControl,
	})
	return s.finish(cmd, opts.output, opts.location, procErr)
}

func validateReportFormat(format string) error {
	switch format {
	case "", "text", "json":
		return nil
	}
	return fmt.Errorf("unsupported report format %q (use text or json)", format)
}
