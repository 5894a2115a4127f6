package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type fallbackResult struct {
	TabID       int    `json:"tab_id"`
	RequestID   string `json:"request_id,omitempty"`
	OriginalURL string `json:"original_url,omitempty"`
}

func newFallbackCommand(ctx *commandContext) *cobra.Command {
	var tabID int
	var requestID string

	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Stop redirecting PDFs in a tab and print the original URL",
		Long: `Stop redirecting PDFs in a tab to the viewer.

The tab is recorded in the disabled-tab cache. When --request-id names a
recorded request, its original URL is printed so the caller can navigate
back to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			original, err := s.tracker.Fallback(tabID, requestID)
			if err != nil {
				return err
			}
			result := fallbackResult{TabID: tabID, RequestID: requestID}
			if original != nil {
				result.OriginalURL = original.String()
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Redirects disabled for tab %d\n", tabID)
			if result.OriginalURL != "" {
				fmt.Fprintln(out, result.OriginalURL)
			} else if requestID != "" {
				fmt.Fprintf(out, "No original URL recorded for request %s\n", requestID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tabID, "tab", -1, "Tab ID to stop redirecting")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Request whose original URL should be returned")
	_ = cmd.MarkFlagRequired("tab")
	return cmd
}
