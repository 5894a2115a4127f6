package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"

	"purpleify/internal/decoder"
	"purpleify/internal/fileutil"
	"purpleify/internal/preflight"
	"purpleify/internal/textutil"
)

type pageRecord struct {
	Index  int    `json:"index"`
	File   string `json:"file"`
	Bytes  int    `json:"bytes"`
	SHA256 string `json:"sha256"`
}

type documentSummary struct {
	RequestID string         `json:"request_id,omitempty"`
	Source    string         `json:"source"`
	Dir       string         `json:"dir"`
	Title     string         `json:"title,omitempty"`
	PageCount int            `json:"page_count,omitempty"`
	Pages     []pageRecord   `json:"pages"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// writePages drains frames into dir: one PNG per image frame and
// metadata.json for the metadata frame. The summary is returned even on
// error so callers can report partial output.
func writePages(frames iter.Seq2[decoder.Frame, error], dir, source string) (documentSummary, error) {
	summary := documentSummary{Source: source, Dir: dir, Pages: []pageRecord{}}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return summary, fmt.Errorf("create output directory: %w", err)
	}
	if check := preflight.CheckDirectoryAccess("Output directory", dir); !check.Passed {
		return summary, fmt.Errorf("output directory not writable: %s", check.Detail)
	}

	for frame, err := range frames {
		if err != nil {
			return summary, err
		}
		if frame.IsMetadata() {
			summary.Title = frame.Metadata.Title()
			summary.PageCount = frame.Metadata.PageCount()
			summary.Metadata = frame.Metadata.Fields
			if err := fileutil.WriteFileAtomic(filepath.Join(dir, "metadata.json"), indentJSON(frame.Metadata.Raw), 0o644); err != nil {
				return summary, fmt.Errorf("write metadata: %w", err)
			}
			continue
		}
		name := textutil.PageFileName(len(summary.Pages), summary.PageCount)
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, name), frame.Image, 0o644); err != nil {
			return summary, fmt.Errorf("write page %d: %w", frame.Index, err)
		}
		summary.Pages = append(summary.Pages, pageRecord{
			Index:  frame.Index,
			File:   name,
			Bytes:  len(frame.Image),
			SHA256: fileutil.Digest(frame.Image),
		})
	}
	return summary, nil
}

func indentJSON(raw []byte) []byte {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return raw
	}
	out.WriteByte('\n')
	return out.Bytes()
}

func summaryRows(summary documentSummary) [][]string {
	rows := make([][]string, 0, len(summary.Pages))
	for _, page := range summary.Pages {
		rows = append(rows, []string{
			strconv.Itoa(page.Index),
			page.File,
			strconv.Itoa(page.Bytes),
			page.SHA256[:12],
		})
	}
	return rows
}
