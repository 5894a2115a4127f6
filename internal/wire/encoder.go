package wire

import (
	"encoding/json"
	"fmt"
	"io"
)

// Encoder writes PPDF frames to an underlying writer.
type Encoder struct {
	w      io.Writer
	buf    []byte
	frames int
	bytes  int64
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteFrame writes one header+body frame with a single Write call.
func (e *Encoder) WriteFrame(kind Kind, body []byte) error {
	frame, err := AppendFrame(e.buf[:0], kind, body)
	if err != nil {
		return err
	}
	e.buf = frame
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("wire: write %s frame: %w", kind, err)
	}
	e.frames++
	e.bytes += int64(len(frame))
	return nil
}

// WriteImage writes an IMG frame carrying an opaque image payload.
func (e *Encoder) WriteImage(body []byte) error {
	return e.WriteFrame(KindImage, body)
}

// WriteMetadata JSON-encodes v and writes it as a MET frame.
func (e *Encoder) WriteMetadata(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: encode metadata: %w", err)
	}
	return e.WriteFrame(KindMetadata, body)
}

// Frames returns the number of frames written so far.
func (e *Encoder) Frames() int { return e.frames }

// BytesWritten returns the number of stream bytes written so far.
func (e *Encoder) BytesWritten() int64 { return e.bytes }

// AppendFrame appends an encoded frame to dst.
func AppendFrame(dst []byte, kind Kind, body []byte) ([]byte, error) {
	header, err := EncodeHeader(kind, len(body))
	if err != nil {
		return dst, err
	}
	dst = append(dst, header...)
	return append(dst, body...), nil
}
