package preflight

import (
	"context"

	"purpleify/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	// The output directory is created on first decode.
	if ensureDir(cfg.Paths.OutputDir) == nil {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	} else {
		results = append(results, Result{Name: "Output directory", Detail: cfg.Paths.OutputDir + " (error: cannot create)"})
	}
	results = append(results, CheckStore(ctx, cfg.Correlation.Backend, cfg.Correlation.Path))
	results = append(results, CheckEndpoint(ctx, cfg.Transform.Endpoint))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
