package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"purpleify/internal/decoder"
	"purpleify/internal/textutil"
)

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var name string
	var chunkSize int
	var truncation string

	cmd := &cobra.Command{
		Use:   "decode <stream-file|->",
		Short: "Decode a PPDF stream into page images and metadata",
		Long: `Decode a PPDF stream into page images and metadata.

Pages are written as page-NNN.png into <output_dir>/<name>, together with
metadata.json when the stream carries a metadata frame. Use "-" to read the
stream from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := ctx.decoderOptions(cfg)
			if err != nil {
				return err
			}
			if truncation != "" {
				if opts.Truncation, err = decoder.ParseTruncation(strings.ToLower(truncation)); err != nil {
					return err
				}
			}
			if chunkSize <= 0 {
				chunkSize = cfg.Decoder.ChunkBytes
			}

			source := args[0]
			var input io.Reader
			if source == "-" {
				input = cmd.InOrStdin()
			} else {
				f, err := os.Open(source)
				if err != nil {
					return fmt.Errorf("open stream: %w", err)
				}
				defer f.Close()
				input = f
			}

			if name == "" {
				base := source
				if source == "-" {
					base = "stdin"
				}
				name = textutil.DocumentDirName("", base)
			}
			if outDir == "" {
				outDir = cfg.Paths.OutputDir
			}
			dir := filepath.Join(outDir, textutil.SanitizeFileName(name))

			frames := decoder.Frames(cmd.Context(), decoder.ReaderSource(input, chunkSize), opts)
			summary, err := writePages(frames, dir, source)
			if err != nil {
				return fmt.Errorf("decode %s after %d pages: %w", source, len(summary.Pages), err)
			}
			return printSummary(cmd, ctx, summary)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: paths.output_dir)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Document directory name (default: derived from the stream file name)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Read size in bytes (default: decoder.chunk_bytes)")
	cmd.Flags().StringVar(&truncation, "truncation", "", `Override decoder.truncation ("error" or "discard")`)
	return cmd
}

func printSummary(cmd *cobra.Command, ctx *commandContext, summary documentSummary) error {
	if ctx.JSONMode() {
		return writeJSON(cmd, summary)
	}
	out := cmd.OutOrStdout()
	title := summary.Title
	if title == "" {
		title = "(no metadata)"
	}
	fmt.Fprintf(out, "Title: %s\n", title)
	if summary.RequestID != "" {
		fmt.Fprintf(out, "Request: %s\n", summary.RequestID)
	}
	fmt.Fprintf(out, "Pages: %d written to %s\n", len(summary.Pages), summary.Dir)
	if summary.PageCount > 0 && summary.PageCount != len(summary.Pages) {
		fmt.Fprintf(out, "Note: metadata reports %d pages\n", summary.PageCount)
	}
	if len(summary.Pages) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(out,
			[]string{"Index", "File", "Bytes", "SHA256"},
			summaryRows(summary),
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
	}
	return nil
}
