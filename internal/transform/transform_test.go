package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"purpleify/internal/correlation"
	"purpleify/internal/decoder"
	"purpleify/internal/kvstore"
	"purpleify/internal/wire"
)

func newCaches(t *testing.T) (*correlation.Cache[string, RequestData], *correlation.Cache[int, bool]) {
	t.Helper()
	ctx := context.Background()
	requests, err := correlation.New[string, RequestData](ctx, correlation.Options{Capacity: 10})
	if err != nil {
		t.Fatalf("requests cache: %v", err)
	}
	disabled, err := correlation.New[int, bool](ctx, correlation.Options{Capacity: 10})
	if err != nil {
		t.Fatalf("disabled cache: %v", err)
	}
	return requests, disabled
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		headers []Header
		want    bool
	}{
		{"pdf content type", "https://x.test/download", []Header{{"Content-Type", "application/pdf"}}, true},
		{"pdf content type with charset", "https://x.test/a", []Header{{"content-type", "application/pdf; charset=binary"}}, true},
		{"octet stream pdf url", "https://x.test/a.pdf", []Header{{"Content-Type", "application/octet-stream"}}, true},
		{"missing content type pdf url", "https://x.test/a.pdf", nil, true},
		{"empty content type pdf url", "https://x.test/a.pdf", []Header{{"Content-Type", ""}}, true},
		{"html at pdf url", "https://x.test/a.pdf", []Header{{"Content-Type", "text/html"}}, false},
		{"octet stream other url", "https://x.test/a.zip", []Header{{"Content-Type", "application/octet-stream"}}, false},
		{"no headers other url", "https://x.test/", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.url, tt.headers); got != tt.want {
				t.Fatalf("IsPDF(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestTrackerKeepsFirstRequestData(t *testing.T) {
	requests, disabled := newCaches(t)
	tracker := NewTracker(requests, disabled, "viewer/index.html", nil)

	tracker.BeforeSendHeaders(Event{RequestID: "1", Method: "POST", URL: "https://x.test/report.pdf",
		RequestHeaders: []Header{{"Cookie", "session=abc"}}})
	tracker.BeforeSendHeaders(Event{RequestID: "1", Method: "GET", URL: "https://x.test/redirected.pdf"})

	data, ok := tracker.Lookup("1")
	if !ok {
		t.Fatal("expected request data")
	}
	if data.Method != "POST" || data.URL != "https://x.test/report.pdf" || len(data.Headers) != 1 {
		t.Fatalf("request data was overwritten: %+v", data)
	}
}

func TestTrackerConcurrentFirstObservationWins(t *testing.T) {
	requests, disabled := newCaches(t)
	tracker := NewTracker(requests, disabled, "viewer/index.html", nil)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.BeforeSendHeaders(Event{RequestID: "1", Method: "GET", URL: fmt.Sprintf("https://x.test/%d.pdf", i)})
		}()
	}
	wg.Wait()

	data, ok := tracker.Lookup("1")
	if !ok {
		t.Fatal("expected request data")
	}
	// Every later observation must leave the recorded URL alone.
	tracker.BeforeSendHeaders(Event{RequestID: "1", Method: "GET", URL: "https://x.test/late.pdf"})
	if again, _ := tracker.Lookup("1"); again.URL != data.URL {
		t.Fatalf("request data changed from %q to %q", data.URL, again.URL)
	}
	if requests.Len() != 1 {
		t.Fatalf("expected one recorded request, got %d", requests.Len())
	}
}

func TestTrackerRedirects(t *testing.T) {
	requests, disabled := newCaches(t)
	tracker := NewTracker(requests, disabled, "viewer/index.html", nil)

	decision := tracker.HeadersReceived(Event{RequestID: "7", TabID: 3, Method: "GET", URL: "https://x.test/a",
		ResponseHeaders: []Header{{"Content-Type", "application/pdf"}}})
	if decision.RedirectURL != "viewer/index.html?request_id=7" {
		t.Fatalf("unexpected redirect: %+v", decision)
	}

	if tracker.HeadersReceived(Event{RequestID: "8", TabID: 3, Method: "OPTIONS", URL: "https://x.test/a.pdf"}).Redirect() {
		t.Fatal("OPTIONS requests must not redirect")
	}

	local := tracker.BeforeRequest(Event{RequestID: "9", TabID: 3, URL: "file:///home/u/paper.pdf"})
	if !local.Redirect() {
		t.Fatal("expected local pdf to redirect")
	}
	data, ok := tracker.Lookup("9")
	if !ok || data.Method != http.MethodGet || data.URL != "file:///home/u/paper.pdf" {
		t.Fatalf("unexpected local request data: %+v", data)
	}
	if tracker.BeforeRequest(Event{RequestID: "10", URL: "https://x.test/a.pdf"}).Redirect() {
		t.Fatal("remote urls are handled on headers received")
	}
}

func TestFallbackDisablesTab(t *testing.T) {
	requests, disabled := newCaches(t)
	tracker := NewTracker(requests, disabled, "viewer/index.html", nil)
	tracker.BeforeSendHeaders(Event{RequestID: "r", Method: "GET", URL: "https://x.test/a.pdf"})

	u, err := tracker.Fallback(4, "r")
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if u == nil || u.String() != "https://x.test/a.pdf" {
		t.Fatalf("unexpected fallback url: %v", u)
	}

	pdf := Event{RequestID: "s", TabID: 4, Method: "GET", URL: "https://x.test/b.pdf"}
	if tracker.HeadersReceived(pdf).Redirect() {
		t.Fatal("expected redirects to be disabled for tab 4")
	}
	pdf.TabID = 5
	if !tracker.HeadersReceived(pdf).Redirect() {
		t.Fatal("expected other tabs to keep redirecting")
	}

	if u, err := tracker.Fallback(4, "unknown"); err != nil || u != nil {
		t.Fatalf("expected no url for unknown request, got %v %v", u, err)
	}
	if _, err := tracker.Fallback(NoTab, ""); err == nil {
		t.Fatal("expected error without a tab")
	}
}

func encodedResponse(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	for _, page := range []string{"page-one", "page-two"} {
		if err := enc.WriteImage([]byte(page)); err != nil {
			t.Fatalf("encode image: %v", err)
		}
	}
	if err := enc.WriteMetadata(map[string]any{"originalTitle": "Report", "pageCount": 2}); err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	return buf.Bytes()
}

func TestClientTransformEndToEnd(t *testing.T) {
	const original = "%PDF-1.7 original document"
	stream := encodedResponse(t)

	var gotMeta Meta
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "session=abc" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, original)
	})
	mux.HandleFunc("/transform", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if err := json.Unmarshal([]byte(r.URL.Query().Get("meta")), &gotMeta); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != original {
			http.Error(w, "unexpected body", http.StatusBadRequest)
			return
		}
		// Dribble the stream out in small writes.
		flusher, _ := w.(http.Flusher)
		for i := 0; i < len(stream); i += 5 {
			_, _ = w.Write(stream[i:min(i+5, len(stream))])
			if flusher != nil {
				flusher.Flush()
			}
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	requests, disabled := newCaches(t)
	tracker := NewTracker(requests, disabled, "viewer", nil)
	tracker.BeforeSendHeaders(Event{RequestID: "req-1", Method: "GET", URL: server.URL + "/docs/report.pdf",
		RequestHeaders: []Header{{"Cookie", "session=abc"}}})

	client := NewClient(requests, ClientOptions{
		Endpoint:   server.URL + "/transform",
		ClientUID:  "uid-123",
		HTTPClient: server.Client(),
		ChunkSize:  3,
	})
	params := Params{Quality: QualityHigh, BackgroundColor: Color{R: 0x2b, G: 0x1b, B: 0x3d}, PageRange: &PageRange{StartingIndex: 0, Count: 2}}

	var frames []decoder.Frame
	for frame, err := range client.Transform(context.Background(), "req-1", params) {
		if err != nil {
			t.Fatalf("transform: %v", err)
		}
		frames = append(frames, frame)
	}

	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if string(frames[0].Image) != "page-one" || string(frames[1].Image) != "page-two" {
		t.Fatalf("unexpected images: %q %q", frames[0].Image, frames[1].Image)
	}
	if frames[2].Metadata.Title() != "Report" || frames[2].Metadata.PageCount() != 2 {
		t.Fatalf("unexpected metadata: %v", frames[2].Metadata.Fields)
	}

	wantMeta := Meta{ClientUID: "uid-123", Source: server.URL + "/docs/report.pdf", PageRange: params.PageRange,
		Quality: QualityHigh, BackgroundColor: params.BackgroundColor}
	if gotMeta.ClientUID != wantMeta.ClientUID || gotMeta.Source != wantMeta.Source ||
		gotMeta.Quality != wantMeta.Quality || gotMeta.BackgroundColor != wantMeta.BackgroundColor ||
		gotMeta.PageRange == nil || *gotMeta.PageRange != *wantMeta.PageRange {
		t.Fatalf("unexpected meta: %+v", gotMeta)
	}
}

func collectErr(t *testing.T, seq func(func(decoder.Frame, error) bool)) error {
	t.Helper()
	var last error
	for _, err := range seq {
		if err != nil {
			last = err
		}
	}
	return last
}

func TestClientErrorKinds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gone.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "%PDF")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer crashed", http.StatusInternalServerError)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>definitely not a frame stream</html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	requests, _ := newCaches(t)
	requests.Set("gone", RequestData{Method: "GET", URL: server.URL + "/gone.pdf"})
	requests.Set("doc", RequestData{Method: "GET", URL: server.URL + "/doc.pdf"})
	requests.Set("local", RequestData{Method: "GET", URL: "file://" + filepath.Join(t.TempDir(), "missing.pdf")})

	tests := []struct {
		name      string
		endpoint  string
		requestID string
		kind      Kind
		marker    error
	}{
		{"unknown request", "/broken", "nope", KindRequestNotFound, ErrRequestNotFound},
		{"original 404", "/broken", "gone", KindDownloadError, ErrDownload},
		{"missing local file", "/broken", "local", KindLocalDownloadError, ErrLocalDownload},
		{"server 500", "/broken", "doc", KindServerError, ErrServer},
		{"corrupt stream", "/garbage", "doc", KindServerError, ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(requests, ClientOptions{Endpoint: server.URL + tt.endpoint, HTTPClient: server.Client()})
			err := collectErr(t, client.Transform(context.Background(), tt.requestID, Params{Quality: QualityNormal}))
			var terr *Error
			if !errors.As(err, &terr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if terr.Kind != tt.kind || terr.ErrorKind() != string(tt.kind) {
				t.Fatalf("expected kind %s, got %s", tt.kind, terr.Kind)
			}
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected errors.Is(%v)", tt.marker)
			}
			if terr.Title() == "" || len(terr.Hints()) == 0 {
				t.Fatalf("expected title and hints for %s", tt.kind)
			}
		})
	}

	t.Run("corrupt stream keeps decoder cause", func(t *testing.T) {
		client := NewClient(requests, ClientOptions{Endpoint: server.URL + "/garbage", HTTPClient: server.Client()})
		err := collectErr(t, client.Transform(context.Background(), "doc", Params{}))
		if !errors.Is(err, decoder.ErrCorruptHeader) {
			t.Fatalf("expected decoder.ErrCorruptHeader in chain, got %v", err)
		}
	})
}

func TestClientReadsFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.pdf")
	if err := os.WriteFile(path, []byte("%PDF local"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stream := encodedResponse(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF local" {
			http.Error(w, "unexpected body", http.StatusBadRequest)
			return
		}
		_, _ = w.Write(stream)
	}))
	defer server.Close()

	requests, _ := newCaches(t)
	client := NewClient(requests, ClientOptions{Endpoint: server.URL, HTTPClient: server.Client()})
	_, frames := client.TransformURL(context.Background(), "file://"+path, Params{Quality: QualityLow})
	count := 0
	for _, err := range frames {
		if err != nil {
			t.Fatalf("transform: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 frames, got %d", count)
	}
}

func TestClientUIDIsStable(t *testing.T) {
	store := kvstore.NewMemory()
	ctx := context.Background()
	first, err := ClientUID(ctx, store)
	if err != nil {
		t.Fatalf("first uid: %v", err)
	}
	second, err := ClientUID(ctx, store)
	if err != nil {
		t.Fatalf("second uid: %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("expected stable uid, got %q then %q", first, second)
	}
}

func TestParseQuality(t *testing.T) {
	for in, want := range map[string]Quality{"extreme": QualityExtreme, "HIGH": QualityHigh, " Normal ": QualityNormal, "low": QualityLow, "ExtraLow": QualityExtraLow} {
		got, err := ParseQuality(in)
		if err != nil || got != want {
			t.Fatalf("ParseQuality(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseQuality("ultra"); err == nil {
		t.Fatal("expected error")
	}
}
