package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"purpleify/internal/correlation"
	"purpleify/internal/transform"
)

type requestRow struct {
	RequestID string                `json:"request_id"`
	Seq       int64                 `json:"seq"`
	Request   transform.RequestData `json:"request"`
}

type disabledRow struct {
	TabID int   `json:"tab_id"`
	Seq   int64 `json:"seq"`
}

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the persisted correlation caches",
	}
	cmd.AddCommand(newCacheListCommand(ctx))
	cmd.AddCommand(newCacheGetCommand(ctx))
	return cmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			switch strings.ToLower(namespace) {
			case "requests", "":
				records, err := s.store.Load(cmd.Context(), correlation.StoragePrefix(cfg.Correlation.RequestNamespace))
				if err != nil {
					return err
				}
				rows := make([]requestRow, 0, len(records))
				for _, record := range records {
					id, data, err := correlation.DecodeEntry[string, transform.RequestData](record.Value)
					if err != nil {
						ctx.loggerFor().Warn("skipping unreadable cache record", "key", record.Key, "error", err)
						continue
					}
					rows = append(rows, requestRow{RequestID: id, Seq: record.Seq, Request: data})
				}
				return printRequestRows(cmd, ctx, rows)
			case "disabled":
				records, err := s.store.Load(cmd.Context(), correlation.StoragePrefix(cfg.Correlation.DisabledNamespace))
				if err != nil {
					return err
				}
				rows := make([]disabledRow, 0, len(records))
				for _, record := range records {
					tab, _, err := correlation.DecodeEntry[int, bool](record.Value)
					if err != nil {
						ctx.loggerFor().Warn("skipping unreadable cache record", "key", record.Key, "error", err)
						continue
					}
					rows = append(rows, disabledRow{TabID: tab, Seq: record.Seq})
				}
				return printDisabledRows(cmd, ctx, rows)
			default:
				return fmt.Errorf("unknown namespace %q (want requests or disabled)", namespace)
			}
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "requests", `Cache to list ("requests" or "disabled")`)
	return cmd
}

func newCacheGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <request-id>",
		Short: "Show the request data recorded for a request ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			data, ok := s.tracker.Lookup(args[0])
			if !ok {
				return &transform.Error{Kind: transform.KindRequestNotFound, Err: fmt.Errorf("request %q", args[0])}
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, requestRow{RequestID: args[0], Request: data})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Request: %s\n", args[0])
			fmt.Fprintf(out, "Method:  %s\n", data.Method)
			fmt.Fprintf(out, "URL:     %s\n", data.URL)
			if len(data.Headers) > 0 {
				rows := make([][]string, 0, len(data.Headers))
				for _, h := range data.Headers {
					rows = append(rows, []string{h.Name, h.Value})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(out, []string{"Header", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			}
			return nil
		},
	}
}

func printRequestRows(cmd *cobra.Command, ctx *commandContext, rows []requestRow) error {
	if ctx.JSONMode() {
		return writeJSON(cmd, rows)
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No cached requests")
		return nil
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			row.RequestID,
			row.Request.Method,
			row.Request.URL,
			strconv.Itoa(len(row.Request.Headers)),
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Request", "Method", "URL", "Headers"},
		table,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
	return nil
}

func printDisabledRows(cmd *cobra.Command, ctx *commandContext, rows []disabledRow) error {
	if ctx.JSONMode() {
		return writeJSON(cmd, rows)
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No tabs with redirects disabled")
		return nil
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{strconv.Itoa(row.TabID)})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Tab"}, table, []columnAlignment{alignRight}))
	return nil
}
