// File: cmd/report.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/facespatch/internal/partial"
)

// result is what a single apply or submit run reports.
type result struct {
	Events     []partial.Event `json:"events"`
	Location   string          `json:"location,omitempty"`
	Redirected bool            `json:"redirected"`
	Error      string          `json:"error,omitempty"`
}

func writeReport(w io.Writer, format string, res result) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		for _, e := range res.Events {
			switch e.Type {
			case partial.EventSuccess:
				fmt.Fprintln(w, "success")
			default:
				fmt.Fprintf(w, "%s: %s %s: %s\n", e.Type, e.Title, e.Name, e.Message)
			}
		}
		if res.Redirected {
			fmt.Fprintf(w, "redirect: %s\n", res.Location)
		}
		if res.Error != "" {
			fmt.Fprintf(w, "error: %s\n", res.Error)
		}
		return nil
	default:
		return fmt.Errorf("unsupported report format %q (use text or json)", format)
	}
}
