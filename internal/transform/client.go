package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"purpleify/internal/correlation"
	"purpleify/internal/decoder"
	"purpleify/internal/logging"
)

// DefaultTimeout bounds one whole transform, including the response stream.
const DefaultTimeout = 120 * time.Second

// ClientOptions configures a Client.
type ClientOptions struct {
	Endpoint   string
	ClientUID  string
	HTTPClient *http.Client
	Decoder    decoder.Options
	// ChunkSize is the read size used on the response body.
	ChunkSize int
	Logger    *slog.Logger
}

// Client runs transforms for requests recorded by a Tracker.
type Client struct {
	requests *correlation.Cache[string, RequestData]
	opts     ClientOptions
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a client reading request data from requests.
func NewClient(requests *correlation.Cache[string, RequestData], opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := logging.NewComponentLogger(opts.Logger, "transform")
	if opts.Decoder.Logger == nil {
		opts.Decoder.Logger = opts.Logger
	}
	return &Client{requests: requests, opts: opts, http: httpClient, logger: logger}
}

// Transform fetches the original document of requestID, sends it to the
// transform endpoint and yields the decoded frames. Any failure is yielded
// once as a *Error and ends the sequence.
func (c *Client) Transform(ctx context.Context, requestID string, params Params) iter.Seq2[decoder.Frame, error] {
	return func(yield func(decoder.Frame, error) bool) {
		ctx := logging.WithCorrelationID(ctx, requestID)
		data, ok := c.requests.Get(requestID)
		if !ok {
			yield(decoder.Frame{}, newError(KindRequestNotFound, fmt.Errorf("request %q", requestID)))
			return
		}
		meta := Meta{
			ClientUID:       c.opts.ClientUID,
			Source:          data.URL,
			PageRange:       params.PageRange,
			Quality:         params.Quality,
			BackgroundColor: params.BackgroundColor,
		}

		original, err := c.openOriginal(ctx, data)
		if err != nil {
			yield(decoder.Frame{}, err)
			return
		}
		defer original.Close()

		body, err := c.upload(ctx, meta, original)
		if err != nil {
			yield(decoder.Frame{}, newError(KindServerError, err))
			return
		}
		defer body.Close()

		start := time.Now()
		frames := 0
		for frame, err := range decoder.Frames(ctx, decoder.ReaderSource(body, c.opts.ChunkSize), c.opts.Decoder) {
			if err != nil {
				yield(decoder.Frame{}, newError(KindServerError, err))
				return
			}
			frames++
			if !yield(frame, nil) {
				return
			}
		}
		c.logger.InfoContext(ctx, "transform complete",
			logging.String(logging.FieldEventType, "transform_complete"),
			logging.String(logging.FieldCorrelationID, requestID),
			logging.Int("frames", frames),
			logging.Duration("elapsed", time.Since(start)))
	}
}

// TransformURL records rawURL under a fresh request ID and transforms it.
func (c *Client) TransformURL(ctx context.Context, rawURL string, params Params) (string, iter.Seq2[decoder.Frame, error]) {
	requestID := correlation.NewKey()
	c.requests.Set(requestID, RequestData{Method: http.MethodGet, URL: rawURL, Headers: []Header{}})
	return requestID, c.Transform(ctx, requestID, params)
}

func (c *Client) openOriginal(ctx context.Context, data RequestData) (io.ReadCloser, error) {
	if isFileURL(data.URL) {
		f, err := openFileURL(data.URL)
		if err != nil {
			return nil, newError(KindLocalDownloadError, err)
		}
		return f, nil
	}

	method := data.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, data.URL, nil)
	if err != nil {
		return nil, newError(KindDownloadError, err)
	}
	for _, h := range data.Headers {
		req.Header.Add(h.Name, h.Value)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(KindDownloadError, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, newError(KindDownloadError, fmt.Errorf("%w: %s from %s", errUnexpectedResponse, resp.Status, data.URL))
	}
	c.logger.DebugContext(ctx, "downloaded original headers",
		logging.String("url", data.URL),
		logging.Int64("content_length", resp.ContentLength))
	return resp.Body, nil
}

func (c *Client) upload(ctx context.Context, meta Meta, original io.Reader) (io.ReadCloser, error) {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	endpoint, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("meta", string(encoded))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), original)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: %s", errUnexpectedResponse, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return resp.Body, nil
}

func openFileURL(rawURL string) (*os.File, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse file url: %w", err)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
