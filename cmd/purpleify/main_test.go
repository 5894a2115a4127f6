package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"purpleify/internal/config"
	"purpleify/internal/testsupport"
	"purpleify/internal/wire"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("PURPLEIFY_ENDPOINT", "")
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func decodeJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode json output %q: %v", out, err)
	}
	return v
}

// newTransformServer serves /docs/report.pdf and a /transform endpoint that
// answers with two pages followed by a metadata frame.
func newTransformServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.7 fake")
	})
	mux.HandleFunc("/transform", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.HasPrefix(body, []byte("%PDF")) {
			http.Error(w, "not a pdf", http.StatusBadRequest)
			return
		}
		enc := wire.NewEncoder(w)
		_ = enc.WriteImage([]byte("page-one"))
		_ = enc.WriteImage([]byte("page-two"))
		_ = enc.WriteMetadata(map[string]any{"title": "Quarterly Report", "pageCount": 2})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[correlation]")
	requireContains(t, out, env.cfg.Paths.OutputDir)
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[correlation]\ncapacity = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "capacity") {
		t.Fatalf("expected capacity error, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)

	dir := t.TempDir()
	images := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	for i, path := range images {
		if err := os.WriteFile(path, bytes.Repeat([]byte{byte('a' + i)}, 100+i), 0o644); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	stream := filepath.Join(dir, "doc.ppdf")

	if _, _, err := runCLI(t, append([]string{"encode", "--out", stream, "--title", "Round Trip", "--metadata-first"}, images...), ""); err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, _, err := runCLI(t, []string{"--json", "decode", stream, "--chunk-size", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	summary := decodeJSON[documentSummary](t, out)
	if summary.Title != "Round Trip" || summary.PageCount != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %+v", summary.Pages)
	}
	if summary.Pages[0].Index != 1 || summary.Pages[1].Index != 2 {
		t.Fatalf("metadata frame should take index 0: %+v", summary.Pages)
	}
	for i, page := range summary.Pages {
		got, err := os.ReadFile(filepath.Join(summary.Dir, page.File))
		if err != nil {
			t.Fatalf("read page %d: %v", i, err)
		}
		want, _ := os.ReadFile(images[i])
		if !bytes.Equal(got, want) {
			t.Fatalf("page %d differs from its source image", i)
		}
	}
	if _, err := os.Stat(filepath.Join(summary.Dir, "metadata.json")); err != nil {
		t.Fatalf("expected metadata.json: %v", err)
	}
	if filepath.Dir(summary.Dir) != env.cfg.Paths.OutputDir {
		t.Fatalf("expected pages under %s, got %s", env.cfg.Paths.OutputDir, summary.Dir)
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	env := setupCLITestEnv(t)

	data := testsupport.EncodeStream(t, map[string]any{"title": "Cut"}, testsupport.Page("page-one"), testsupport.Page("page-two"))
	stream := filepath.Join(t.TempDir(), "cut.ppdf")
	if err := os.WriteFile(stream, data[:len(data)-4], 0o644); err != nil {
		t.Fatalf("write stream: %v", err)
	}

	_, _, err := runCLI(t, []string{"decode", stream, "--out", t.TempDir()}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "ended inside a frame") {
		t.Fatalf("expected truncation error, got %v", err)
	}

	out, _, err := runCLI(t, []string{"--json", "decode", stream, "--truncation", "discard", "--out", t.TempDir()}, env.configPath)
	if err != nil {
		t.Fatalf("decode with discard: %v", err)
	}
	if summary := decodeJSON[documentSummary](t, out); len(summary.Pages) != 2 || summary.Title != "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestFetchRecordsRequestAndCache(t *testing.T) {
	server := newTransformServer(t)
	env := setupCLITestEnv(t, testsupport.WithEndpoint(server.URL+"/transform"))
	source := server.URL + "/docs/report.pdf"

	out, _, err := runCLI(t, []string{"--json", "fetch", source, "-H", "X-Token: secret", "--quality", "high"}, env.configPath)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	summary := decodeJSON[documentSummary](t, out)
	if summary.RequestID == "" || summary.Title != "Quarterly Report" || len(summary.Pages) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	page, err := os.ReadFile(filepath.Join(summary.Dir, summary.Pages[1].File))
	if err != nil || string(page) != "page-two" {
		t.Fatalf("unexpected second page %q: %v", page, err)
	}

	out, _, err = runCLI(t, []string{"--json", "cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	rows := decodeJSON[[]requestRow](t, out)
	if len(rows) != 1 || rows[0].RequestID != summary.RequestID || rows[0].Request.URL != source {
		t.Fatalf("unexpected cache rows: %+v", rows)
	}
	if len(rows[0].Request.Headers) != 1 || rows[0].Request.Headers[0].Value != "secret" {
		t.Fatalf("headers not recorded: %+v", rows[0].Request.Headers)
	}

	out, _, err = runCLI(t, []string{"cache", "get", summary.RequestID}, env.configPath)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	requireContains(t, out, source)
	requireContains(t, out, "X-Token")

	// A replay reuses the recorded headers.
	out, _, err = runCLI(t, []string{"--json", "fetch", "--request-id", summary.RequestID, "--name", "replay"}, env.configPath)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay := decodeJSON[documentSummary](t, out); replay.RequestID != summary.RequestID || filepath.Base(replay.Dir) != "replay" {
		t.Fatalf("unexpected replay summary: %+v", replay)
	}

	_, _, err = runCLI(t, []string{"fetch", "--request-id", "missing"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown request id to fail")
	}
	requireContains(t, formatError(err), "Original request not found")
}

func TestFetchDownloadFailure(t *testing.T) {
	server := newTransformServer(t)
	env := setupCLITestEnv(t, testsupport.WithEndpoint(server.URL+"/transform"))

	_, _, err := runCLI(t, []string{"fetch", server.URL + "/docs/report.pdf"}, env.configPath)
	if err == nil {
		t.Fatal("expected download without the token to fail")
	}
	requireContains(t, formatError(err), "403")
}

func TestFallbackDisablesTab(t *testing.T) {
	server := newTransformServer(t)
	env := setupCLITestEnv(t, testsupport.WithEndpoint(server.URL+"/transform"))
	source := server.URL + "/docs/report.pdf"

	out, _, err := runCLI(t, []string{"--json", "fetch", source, "-H", "X-Token: secret"}, env.configPath)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	requestID := decodeJSON[documentSummary](t, out).RequestID

	out, _, err = runCLI(t, []string{"--json", "fallback", "--tab", "7", "--request-id", requestID}, env.configPath)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if result := decodeJSON[fallbackResult](t, out); result.OriginalURL != source || result.TabID != 7 {
		t.Fatalf("unexpected fallback result: %+v", result)
	}

	out, _, err = runCLI(t, []string{"--json", "cache", "list", "--namespace", "disabled"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list disabled: %v", err)
	}
	if rows := decodeJSON[[]disabledRow](t, out); len(rows) != 1 || rows[0].TabID != 7 {
		t.Fatalf("unexpected disabled rows: %+v", rows)
	}

	if _, _, err := runCLI(t, []string{"fallback"}, env.configPath); err == nil {
		t.Fatal("expected fallback without --tab to fail")
	}
}

func TestCheck(t *testing.T) {
	server := newTransformServer(t)
	env := setupCLITestEnv(t, testsupport.WithEndpoint(server.URL+"/transform"))

	out, _, err := runCLI(t, []string{"--json", "check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v (%s)", err, out)
	}
	results := decodeJSON[[]struct {
		Name   string `json:"name"`
		Passed bool   `json:"passed"`
	}](t, out)
	if len(results) == 0 {
		t.Fatal("expected check results")
	}

	down := setupCLITestEnv(t)
	out, _, err = runCLI(t, []string{"check"}, down.configPath)
	if err == nil {
		t.Fatal("expected check to fail with an unreachable endpoint")
	}
	requireContains(t, out, "FAIL")
}

func TestFetchEvictsWithFileBackend(t *testing.T) {
	server := newTransformServer(t)
	env := setupCLITestEnv(t,
		testsupport.WithEndpoint(server.URL+"/transform"),
		testsupport.WithBackend(config.BackendFile),
		testsupport.WithCapacity(1))
	source := server.URL + "/docs/report.pdf"

	var ids []string
	for range 2 {
		out, _, err := runCLI(t, []string{"--json", "fetch", source, "-H", "X-Token: secret", "--out", t.TempDir()}, env.configPath)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		ids = append(ids, decodeJSON[documentSummary](t, out).RequestID)
	}

	out, _, err := runCLI(t, []string{"--json", "cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	rows := decodeJSON[[]requestRow](t, out)
	if len(rows) != 1 || rows[0].RequestID != ids[1] {
		t.Fatalf("expected only the newest request to survive, got %+v", rows)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	records, err := store.Load(t.Context(), "client_uid")
	if err != nil {
		t.Fatalf("load client uid: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one persisted client uid, got %d", len(records))
	}
}

func TestDecodeDiscardPolicyFromConfig(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithTruncation(config.TruncationDiscard))

	stream := filepath.Join(t.TempDir(), "doc.ppdf")
	data := testsupport.WriteStream(t, stream, map[string]any{"title": "Kept"}, testsupport.Page("only-page"))
	if err := os.WriteFile(stream, data[:len(data)-1], 0o644); err != nil {
		t.Fatalf("truncate stream: %v", err)
	}

	out, _, err := runCLI(t, []string{"decode", stream, "--name", "kept"}, env.configPath)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	requireContains(t, out, "Pages: 1 written to")
	requireContains(t, out, "(no metadata)")
}
