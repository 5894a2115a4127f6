package decoder

import (
	"context"
	"errors"
	"io"
	"iter"

	"purpleify/internal/logging"
)

// DefaultChunkSize is the read size ReaderSource uses when none is given.
const DefaultChunkSize = 32 * 1024

// Source yields the chunks of one stream. Next returns io.EOF once the stream
// has ended; the returned slice is only valid until the following call.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) Next(ctx context.Context) ([]byte, error) { return f(ctx) }

type readerSource struct {
	r       io.Reader
	buf     []byte
	pending error
}

// ReaderSource pulls chunks of at most chunkSize bytes from r.
func ReaderSource(r io.Reader, chunkSize int) Source {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerSource{r: r, buf: make([]byte, chunkSize)}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.pending != nil {
			return nil, s.pending
		}
		n, err := s.r.Read(s.buf)
		if err != nil {
			s.pending = err
		}
		if n > 0 {
			return s.buf[:n], nil
		}
	}
}

// ChunkSource replays a fixed list of chunks; it is mostly useful for tests
// and for data that is already in memory.
func ChunkSource(chunks ...[]byte) Source {
	i := 0
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(chunks) {
			return nil, io.EOF
		}
		chunk := chunks[i]
		i++
		return chunk, nil
	})
}

// Frames decodes src with a fresh Decoder and yields every frame in stream
// order. The sequence ends without an error at a clean end of stream; any
// decode, truncation, source, or context error is yielded once as the final
// element.
func Frames(ctx context.Context, src Source, opts Options) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		d := New(opts)
		for {
			chunk, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				if err := d.Close(); err != nil {
					yield(Frame{}, err)
					return
				}
				stats := d.Stats()
				d.logger.Debug("stream decoded",
					logging.String(logging.FieldEventType, "stream_decoded"),
					logging.Int("frames", stats.Frames),
					logging.Int("images", stats.Images),
					logging.Int("buffered_bytes", stats.Buffered),
					logging.Int("buffer_capacity", stats.Capacity))
				return
			}
			if err != nil {
				yield(Frame{}, err)
				return
			}

			frames, feedErr := d.Feed(chunk)
			for _, frame := range frames {
				if !yield(frame, nil) {
					return
				}
			}
			if feedErr != nil {
				yield(Frame{}, feedErr)
				return
			}
		}
	}
}

// DecodeAll decodes a complete in-memory stream.
func DecodeAll(data []byte, opts Options) ([]Frame, error) {
	d := New(opts)
	frames, err := d.Feed(data)
	if err != nil {
		return frames, err
	}
	return frames, d.Close()
}
