package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"purpleify/internal/correlation"
	"purpleify/internal/textutil"
	"purpleify/internal/transform"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir    string
		requestID string
		method    string
		headers   []string
		quality   string
		pageStart int
		pageCount int
		nameFlag  string
	)

	cmd := &cobra.Command{
		Use:   "fetch [url-or-path]",
		Short: "Transform a document through the remote endpoint",
		Long: `Transform a document through the remote endpoint and write its pages.

The document is recorded in the request cache under a new request ID before
it is downloaded, so "purpleify fetch --request-id <id>" can replay the same
request later with its original method and headers. Local paths are read
directly from disk.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if (len(args) == 0) == (requestID == "") {
				return fmt.Errorf("give either a url or --request-id")
			}

			params, err := transformParams(cfg)
			if err != nil {
				return err
			}
			if quality != "" {
				if params.Quality, err = transform.ParseQuality(quality); err != nil {
					return err
				}
			}
			if pageCount > 0 {
				params.PageRange = &transform.PageRange{StartingIndex: pageStart, Count: pageCount}
			}

			s, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if requestID == "" {
				source, err := normalizeSource(args[0])
				if err != nil {
					return err
				}
				parsedHeaders, err := parseHeaders(headers)
				if err != nil {
					return err
				}
				requestID = correlation.NewKey()
				event := transform.Event{
					RequestID:      requestID,
					TabID:          transform.NoTab,
					Method:         strings.ToUpper(method),
					URL:            source,
					RequestHeaders: parsedHeaders,
				}
				// BeforeRequest records local PDFs; everything else is
				// recorded with its outgoing headers.
				if !s.tracker.BeforeRequest(event).Redirect() {
					s.tracker.BeforeSendHeaders(event)
				}
			}

			data, ok := s.tracker.Lookup(requestID)
			if !ok {
				return &transform.Error{Kind: transform.KindRequestNotFound, Err: fmt.Errorf("request %q", requestID)}
			}

			client, err := ctx.newClient(cmd.Context(), s)
			if err != nil {
				return err
			}

			name := nameFlag
			if name == "" {
				name = textutil.DocumentDirName("", data.URL)
			}
			if outDir == "" {
				outDir = cfg.Paths.OutputDir
			}
			dir := filepath.Join(outDir, textutil.SanitizeFileName(name))

			summary, err := writePages(client.Transform(cmd.Context(), requestID, params), dir, data.URL)
			if err != nil {
				return fmt.Errorf("fetch %s after %d pages: %w", requestID, len(summary.Pages), err)
			}
			summary.RequestID = requestID
			return printSummary(cmd, ctx, summary)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: paths.output_dir)")
	cmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Document directory name (default: derived from the URL)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Replay a recorded request instead of a new URL")
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method used to download the original")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `Request header for the original download ("Name: value"), repeatable`)
	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Render quality (default: transform.quality)")
	cmd.Flags().IntVar(&pageStart, "page-start", 0, "First page to transform (zero-based)")
	cmd.Flags().IntVar(&pageCount, "page-count", 0, "Number of pages to transform (default: all)")
	return cmd
}

// normalizeSource turns local paths into file:// URLs.
func normalizeSource(arg string) (string, error) {
	if u, err := url.Parse(arg); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", arg, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("open %s: %w", arg, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func parseHeaders(raw []string) ([]transform.Header, error) {
	headers := make([]transform.Header, 0, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want \"Name: value\")", h)
		}
		headers = append(headers, transform.Header{Name: name, Value: strings.TrimSpace(value)})
	}
	return headers, nil
}
