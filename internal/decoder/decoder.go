package decoder

import (
	"fmt"
	"log/slog"

	"purpleify/internal/logging"
	"purpleify/internal/wire"
)

// DefaultInitialBufferSize matches the half-megabyte buffer the extension
// allocated up front for a transform response.
const DefaultInitialBufferSize = 500000

// Truncation selects what Close does with a partially buffered frame.
type Truncation int

const (
	// TruncationError makes Close return ErrTruncated.
	TruncationError Truncation = iota
	// TruncationDiscard silently drops the partial frame.
	TruncationDiscard
)

// ParseTruncation maps the config spelling ("error", "discard") to a policy.
func ParseTruncation(value string) (Truncation, error) {
	switch value {
	case "", "error":
		return TruncationError, nil
	case "discard":
		return TruncationDiscard, nil
	default:
		return TruncationError, fmt.Errorf("decoder: unknown truncation policy %q", value)
	}
}

// Options configures a Decoder.
type Options struct {
	// InitialBufferSize is the starting buffer capacity. Zero selects
	// DefaultInitialBufferSize.
	InitialBufferSize int
	// MaxFrameSize bounds the end offset a header may announce. Zero means
	// unbounded, in which case a huge offset makes the decoder wait for bytes
	// that never come.
	MaxFrameSize uint32
	Truncation   Truncation
	Logger       *slog.Logger
}

// Stats is a snapshot of decoder progress.
type Stats struct {
	Frames   int
	Images   int
	Buffered int
	Capacity int
}

// Decoder turns a sequence of byte chunks into frames. It is created once per
// stream and is not safe for concurrent use.
type Decoder struct {
	opts   Options
	logger *slog.Logger

	// buf[:len(buf)] is every byte received so far; it is never compacted.
	buf         []byte
	headerStart int

	pending     bool
	pendingEnd  int
	pendingKind wire.Kind

	index  int
	images int

	err    error
	closed bool
}

// New constructs a decoder for a single stream.
func New(opts Options) *Decoder {
	if opts.InitialBufferSize <= 0 {
		opts.InitialBufferSize = DefaultInitialBufferSize
	}
	return &Decoder{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "decoder"),
		buf:    make([]byte, 0, opts.InitialBufferSize),
	}
}

// Feed appends chunk and returns every frame it completes, in stream order.
// A fatal error is returned together with the frames that completed before
// it; afterwards every call returns the same error.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.closed {
		return nil, ErrClosed
	}

	d.append(chunk)

	var frames []Frame
	for {
		progressed := false

		if d.pending && d.pendingEnd <= len(d.buf) {
			frame, err := d.completeBody()
			if err != nil {
				return frames, d.fail(err)
			}
			frames = append(frames, frame)
			progressed = true
		}

		if !d.pending && d.headerStart+wire.HeaderSize <= len(d.buf) {
			if err := d.parseHeader(); err != nil {
				return frames, d.fail(err)
			}
			progressed = true
		}

		if !progressed {
			return frames, nil
		}
	}
}

// Close marks the end of the stream. It reports ErrTruncated when bytes of an
// incomplete frame are still buffered, unless the policy is TruncationDiscard.
func (d *Decoder) Close() error {
	if d.err != nil {
		return d.err
	}
	if d.closed {
		return nil
	}
	d.closed = true

	leftover := len(d.buf) - d.headerStart
	if leftover == 0 {
		return nil
	}

	if d.opts.Truncation == TruncationDiscard {
		d.logger.Debug("discarding partial trailing frame",
			logging.String(logging.FieldEventType, "frame_truncated"),
			logging.Int("buffered_bytes", leftover),
			logging.Bool("header_parsed", d.pending))
		return nil
	}

	if d.pending {
		return d.fail(fmt.Errorf("%w: %s frame at offset %d has %d of %d bytes",
			ErrTruncated, d.pendingKind, d.headerStart, leftover, d.pendingEnd-d.headerStart))
	}
	return d.fail(fmt.Errorf("%w: %d header bytes at offset %d", ErrTruncated, leftover, d.headerStart))
}

// Err returns the fatal error recorded by Feed or Close, if any.
func (d *Decoder) Err() error { return d.err }

// Stats reports decoder progress.
func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:   d.index,
		Images:   d.images,
		Buffered: len(d.buf),
		Capacity: cap(d.buf),
	}
}

// append grows the buffer to at least len+needed+len(chunk) when the free
// capacity cannot hold chunk.
func (d *Decoder) append(chunk []byte) {
	free := cap(d.buf) - len(d.buf)
	if free < len(chunk) {
		necessary := len(chunk) - free
		grown := make([]byte, len(d.buf), cap(d.buf)+necessary+len(chunk))
		copy(grown, d.buf)
		d.buf = grown
	}
	d.buf = append(d.buf, chunk...)
}

func (d *Decoder) parseHeader() error {
	h, err := wire.DecodeHeader(d.buf[d.headerStart:])
	if err != nil {
		return fmt.Errorf("%w at offset %d: %w", ErrCorruptHeader, d.headerStart, err)
	}
	if d.opts.MaxFrameSize > 0 && h.End > d.opts.MaxFrameSize {
		return fmt.Errorf("%w: %s frame at offset %d announces %d bytes (limit %d)",
			ErrFrameTooLarge, h.Kind, d.headerStart, h.End, d.opts.MaxFrameSize)
	}

	d.pending = true
	d.pendingKind = h.Kind
	d.pendingEnd = d.headerStart + int(h.End)
	return nil
}

func (d *Decoder) completeBody() (Frame, error) {
	body := d.buf[d.headerStart+wire.HeaderSize : d.pendingEnd]
	frame := Frame{Kind: d.pendingKind, Index: d.index}

	if d.pendingKind == wire.KindMetadata {
		meta, err := parseMetadata(body)
		if err != nil {
			return Frame{}, fmt.Errorf("frame %d at offset %d: %w", d.index, d.headerStart, err)
		}
		frame.Metadata = meta
	} else {
		frame.Image = append([]byte(nil), body...)
		d.images++
	}

	d.logger.Debug("frame decoded",
		logging.String(logging.FieldEventType, "frame_decoded"),
		logging.String("kind", frame.Kind.String()),
		logging.Int("index", frame.Index),
		logging.Int("body_bytes", len(body)))

	d.headerStart = d.pendingEnd
	d.pending = false
	d.index++
	return frame, nil
}

func (d *Decoder) fail(err error) error {
	d.err = err
	d.logger.Debug("decode aborted",
		logging.String(logging.FieldEventType, "decode_failed"),
		logging.Error(err))
	return err
}
