package transform

import (
	"errors"
	"fmt"
)

// Kind classifies a transform failure.
type Kind string

const (
	KindRequestNotFound    Kind = "request_not_found"
	KindServerError        Kind = "server_error"
	KindDownloadError      Kind = "download_error"
	KindLocalDownloadError Kind = "local_download_error"
)

var (
	ErrRequestNotFound    = errors.New("original request not found")
	ErrServer             = errors.New("transform server error")
	ErrDownload           = errors.New("original download failed")
	ErrLocalDownload      = errors.New("local file read failed")
	errUnexpectedResponse = errors.New("unexpected response status")
)

type kindDetail struct {
	marker error
	title  string
	hints  []string
}

var kindDetails = map[Kind]kindDetail{
	KindRequestNotFound: {
		marker: ErrRequestNotFound,
		title:  "Original request not found",
		hints:  []string{"Try re-opening the PDF."},
	},
	KindServerError: {
		marker: ErrServer,
		title:  "Server error",
		hints:  []string{"A server error occurred while transforming the PDF."},
	},
	KindDownloadError: {
		marker: ErrDownload,
		title:  "Network error",
		hints: []string{
			"Network error downloading the PDF to transform.",
			"You may not be connected to the internet, or the website may be down.",
		},
	},
	KindLocalDownloadError: {
		marker: ErrLocalDownload,
		title:  "Error opening PDF",
		hints: []string{
			"An error occurred while attempting to open the PDF on your computer.",
			"Check that the file exists and is readable.",
		},
	},
}

// Error is a classified transform failure. errors.Is matches both the
// kind's sentinel and the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Title()
	}
	return fmt.Sprintf("%s: %v", e.Title(), e.Err)
}

func (e *Error) Unwrap() []error {
	var errs []error
	if marker := kindDetails[e.Kind].marker; marker != nil {
		errs = append(errs, marker)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrorKind returns the machine-readable kind.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// Title is the short user-facing summary.
func (e *Error) Title() string {
	if d, ok := kindDetails[e.Kind]; ok {
		return d.title
	}
	return "Transform failed"
}

// Hints are user-facing lines suggesting what to try next.
func (e *Error) Hints() []string {
	return append([]string(nil), kindDetails[e.Kind].hints...)
}
