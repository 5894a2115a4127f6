package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"purpleify/internal/fileutil"
	"purpleify/internal/wire"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var title string
	var metadataFirst bool
	var noMetadata bool

	cmd := &cobra.Command{
		Use:   "encode <image>...",
		Short: "Encode images into a PPDF stream",
		Long: `Encode images into a PPDF stream, as the transform service would.

Each argument becomes one IMG frame in order. A MET frame carrying the title
and page count follows the images unless --no-metadata is given.`,
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				title = filepath.Base(args[0])
			}
			meta := map[string]any{"title": title, "pageCount": len(args)}

			var w io.Writer = cmd.OutOrStdout()
			var file *os.File
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				file = f
				w = f
			}
			buffered := bufio.NewWriter(w)
			enc := wire.NewEncoder(buffered)

			if metadataFirst && !noMetadata {
				if err := enc.WriteMetadata(meta); err != nil {
					return err
				}
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				if err := enc.WriteImage(data); err != nil {
					return fmt.Errorf("encode %s: %w", path, err)
				}
			}
			if !metadataFirst && !noMetadata {
				if err := enc.WriteMetadata(meta); err != nil {
					return err
				}
			}
			if err := buffered.Flush(); err != nil {
				return fmt.Errorf("flush stream: %w", err)
			}
			if file == nil {
				return nil
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close %s: %w", outPath, err)
			}

			data, err := os.ReadFile(outPath)
			if err != nil {
				return err
			}
			summary := struct {
				Path   string `json:"path"`
				Frames int    `json:"frames"`
				Bytes  int64  `json:"bytes"`
				SHA256 string `json:"sha256"`
			}{outPath, enc.Frames(), enc.BytesWritten(), fileutil.Digest(data)}
			if ctx.JSONMode() {
				return writeJSON(cmd, summary)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d frames (%d bytes) to %s\n", summary.Frames, summary.Bytes, summary.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title stored in the metadata frame (default: first image name)")
	cmd.Flags().BoolVar(&metadataFirst, "metadata-first", false, "Write the metadata frame before the images")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "Omit the metadata frame")
	return cmd
}
