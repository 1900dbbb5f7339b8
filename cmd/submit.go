// File: cmd/submit.go
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
	"github.com/xkilldash9x/facespatch/internal/channel"
	"github.com/xkilldash9x/facespatch/internal/config"
	"github.com/xkilldash9x/facespatch/internal/observability"
	"github.com/xkilldash9x/facespatch/internal/partial"
)

type submitOptions struct {
	url      string
	page     string
	location string
	form     string
	source   string
	event    string
	execute  []string
	render   []string
	params   map[string]string
	timeout  time.Duration

	partial partialFlags
	output  outputFlags
}

// newSubmitCmd creates the `submit` command: one full partial round trip
// against a live server.
func newSubmitCmd() *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a form as a partial request and apply the server's response",
		Example: `  facespatch submit --url https://host/app/page.xhtml --form f --source f:save --render "f msgs"
  facespatch submit --page saved.html --location https://host/app/page.xhtml --form f --source f:save`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if (opts.url == "") == (opts.page == "") {
				return errors.New("exactly one of --url or --page is required")
			}
			if opts.page != "" && opts.location == "" {
				return errors.New("--location is required with --page")
			}
			return validateReportFormat(opts.output.report)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			opts.partial.apply(cmd, cfg)
			if cmd.Flags().Changed("timeout") {
				cfg.SetNetworkTimeout(opts.timeout)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runSubmit(cmd, cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "", "fetch the page from this URL")
	flags.StringVarP(&opts.page, "page", "p", "", "use a saved page instead of fetching one")
	flags.StringVar(&opts.location, "location", "", "URL the saved page was served from")
	flags.StringVarP(&opts.form, "form", "f", "", "id or name of the form to submit")
	flags.StringVarP(&opts.source, "source", "s", "", "id of the triggering component")
	flags.StringVar(&opts.event, "event", "", "behavior event name, e.g. click")
	flags.StringSliceVar(&opts.execute, "execute", nil, "component ids to execute (default the source)")
	flags.StringSliceVar(&opts.render, "render", nil, "component ids to render")
	flags.StringToStringVar(&opts.params, "param", nil, "extra request parameters, key=value")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	opts.partial.register(flags)
	opts.output.register(flags)
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func runSubmit(cmd *cobra.Command, cfg config.Interface, opts *submitOptions) error {
	ctx := cmd.Context()
	logger := observability.GetLogger().With(zap.String("command", "submit"))

	var (
		doc *dom.Document
		err error
	)
	if opts.page != "" {
		if doc, err = loadDocumentFile(opts.page, logger); err != nil {
			return err
		}
		doc.SetLocation(opts.location)
	}

	ch := channel.New(doc, cfg, logger)
	defer ch.Close()

	if doc == nil {
		if doc, err = ch.LoadDocument(ctx, opts.url); err != nil {
			return fmt.Errorf("failed to load page: %w", err)
		}
	}

	form := doc.FormByID(opts.form)
	if form == nil {
		return fmt.Errorf("form %q not found in page", opts.form)
	}

	startLocation := doc.Location()
	resp, err := ch.Send(ctx, channel.Request{
		Form:    form,
		Source:  opts.source,
		Event:   opts.event,
		Execute: splitIDs(opts.execute),
		Render:  splitIDs(opts.render),
		Params:  opts.params,
	})
	if err != nil {
		return err
	}

	s := newSession(doc, cfg, logger)
	procErr := s.handler.Process(resp, partial.RequestContext{
		Source:     opts.source,
		SourceForm: opts.form,
	})
	return s.finish(cmd, opts.output, startLocation, procErr)
}
