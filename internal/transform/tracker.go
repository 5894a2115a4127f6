package transform

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"purpleify/internal/correlation"
	"purpleify/internal/logging"
)

// NoTab is the tab ID of requests not tied to a browser tab.
const NoTab = -1

// Event is a network event observed for a top-level request.
type Event struct {
	RequestID       string
	TabID           int
	Method          string
	URL             string
	RequestHeaders  []Header
	ResponseHeaders []Header
}

// Decision tells the event source whether to redirect the request to the
// viewer.
type Decision struct {
	RedirectURL string
}

// Redirect reports whether the request should be redirected.
func (d Decision) Redirect() bool { return d.RedirectURL != "" }

// Tracker records request data and decides redirects. It is safe for
// concurrent use; the caches provide the locking.
type Tracker struct {
	requests     *correlation.Cache[string, RequestData]
	disabled     *correlation.Cache[int, bool]
	redirectBase string
	logger       *slog.Logger
}

// NewTracker wires a tracker to its two caches. redirectBase is the viewer URL
// that receives the request_id query parameter.
func NewTracker(requests *correlation.Cache[string, RequestData], disabled *correlation.Cache[int, bool], redirectBase string, logger *slog.Logger) *Tracker {
	return &Tracker{
		requests:     requests,
		disabled:     disabled,
		redirectBase: redirectBase,
		logger:       logging.NewComponentLogger(logger, "tracker"),
	}
}

// BeforeRequest handles a request before it is sent. Only local PDFs are
// handled here since they never produce response headers.
func (t *Tracker) BeforeRequest(ev Event) Decision {
	if !isLocalPDF(ev.URL) {
		return Decision{}
	}
	t.requests.Set(ev.RequestID, RequestData{Method: http.MethodGet, URL: ev.URL, Headers: []Header{}})
	t.logger.Debug("recorded local pdf request",
		logging.String(logging.FieldCorrelationID, ev.RequestID),
		logging.String("url", ev.URL))
	return t.redirect(ev)
}

// BeforeSendHeaders records the outgoing request unless it is already known,
// so the first observation of a request wins.
func (t *Tracker) BeforeSendHeaders(ev Event) {
	headers := ev.RequestHeaders
	if headers == nil {
		headers = []Header{}
	}
	if !t.requests.SetIfAbsent(ev.RequestID, RequestData{Method: ev.Method, URL: ev.URL, Headers: headers}) {
		return
	}
	t.logger.Debug("recorded request data",
		logging.String(logging.FieldCorrelationID, ev.RequestID),
		logging.String("method", ev.Method),
		logging.String("url", ev.URL))
}

// HeadersReceived redirects responses that carry a PDF.
func (t *Tracker) HeadersReceived(ev Event) Decision {
	if ev.Method == http.MethodOptions || !IsPDF(ev.URL, ev.ResponseHeaders) {
		return Decision{}
	}
	return t.redirect(ev)
}

// Lookup returns the data recorded for requestID.
func (t *Tracker) Lookup(requestID string) (RequestData, bool) {
	return t.requests.Get(requestID)
}

// Fallback stops redirecting PDFs in tabID and returns the original URL of
// requestID, if known, so the caller can navigate back to it.
func (t *Tracker) Fallback(tabID int, requestID string) (*url.URL, error) {
	if tabID == NoTab {
		return nil, errors.New("fallback requires a tab id")
	}
	t.disabled.Set(tabID, true)

	if requestID == "" {
		t.logger.Debug("fallback without request id", logging.Int("tab_id", tabID))
		return nil, nil
	}
	data, ok := t.requests.Get(requestID)
	if !ok {
		logging.WarnWithContext(t.logger, "fallback request data not found", "fallback_request_missing",
			logging.String(logging.FieldCorrelationID, requestID),
			logging.String(logging.FieldImpact, "no original URL to return to"))
		return nil, nil
	}
	u, err := url.Parse(data.URL)
	if err != nil || u.Scheme == "" {
		logging.WarnWithContext(t.logger, "fallback request url invalid", "fallback_url_invalid",
			logging.String(logging.FieldCorrelationID, requestID),
			logging.String("url", data.URL),
			logging.String(logging.FieldImpact, "no original URL to return to"))
		return nil, nil
	}
	return u, nil
}

func (t *Tracker) redirect(ev Event) Decision {
	if ev.TabID != NoTab && t.disabled.Has(ev.TabID) {
		t.logger.Debug("redirect skipped; disabled for tab",
			logging.Int("tab_id", ev.TabID),
			logging.String(logging.FieldCorrelationID, ev.RequestID))
		return Decision{}
	}
	return Decision{RedirectURL: t.redirectBase + "?request_id=" + url.QueryEscape(ev.RequestID)}
}

// IsPDF reports whether a response looks like a PDF: an application/pdf
// content type, or a URL ending in .pdf served with no content type or as
// application/octet-stream.
func IsPDF(rawURL string, headers []Header) bool {
	contentType, ok := headerValue(headers, "Content-Type")
	if (!ok || strings.Contains(contentType, "application/octet-stream")) && strings.HasSuffix(rawURL, ".pdf") {
		return true
	}
	return ok && strings.Contains(contentType, "application/pdf")
}

func isLocalPDF(rawURL string) bool {
	return isFileURL(rawURL) && strings.HasSuffix(rawURL, ".pdf")
}

func isFileURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "file"
}
