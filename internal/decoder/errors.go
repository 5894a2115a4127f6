package decoder

import "errors"

var (
	// ErrCorruptHeader reports a header with a bad magic prefix, an unknown
	// type tag, or an end offset that cannot cover the header itself.
	ErrCorruptHeader = errors.New("decoder: corrupt frame header")
	// ErrMalformedMetadata reports a MET body that is not a UTF-8 JSON object.
	ErrMalformedMetadata = errors.New("decoder: malformed metadata body")
	// ErrFrameTooLarge reports a header announcing more than Options.MaxFrameSize bytes.
	ErrFrameTooLarge = errors.New("decoder: frame exceeds size limit")
	// ErrTruncated reports a stream that ended with a partial frame buffered.
	ErrTruncated = errors.New("decoder: stream ended inside a frame")
	// ErrClosed is returned by Feed after Close.
	ErrClosed = errors.New("decoder: feed after close")
)
