package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	MagicSize  = 4
	OffsetSize = 4
	TagSize    = 3
	HeaderSize = MagicSize + OffsetSize + TagSize
)

// Kind identifies the body type announced by a frame header.
type Kind uint8

const (
	KindImage Kind = iota + 1
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

var (
	magic       = []byte("PPDF")
	imageTag    = []byte("IMG")
	metadataTag = []byte("MET")
)

var (
	ErrBadMagic       = errors.New("wire: invalid magic prefix")
	ErrBadTag         = errors.New("wire: unknown frame type tag")
	ErrShortHeader    = errors.New("wire: short header")
	ErrBodyTooLarge   = errors.New("wire: body exceeds 32-bit frame offset")
	ErrUnknownKind    = errors.New("wire: unknown frame kind")
	ErrOffsetTooSmall = errors.New("wire: frame offset smaller than header")
)

// Header is a decoded frame header.
type Header struct {
	Kind Kind
	// End is the offset of the end of the body, relative to the header start.
	End uint32
}

// BodyLen returns the number of body bytes the header announces.
func (h Header) BodyLen() int {
	if h.End < HeaderSize {
		return 0
	}
	return int(h.End) - HeaderSize
}

// EncodeHeader renders a header for a body of bodyLen bytes.
func EncodeHeader(kind Kind, bodyLen int) ([]byte, error) {
	tag, err := tagFor(kind)
	if err != nil {
		return nil, err
	}
	if bodyLen < 0 || uint64(bodyLen)+HeaderSize > math.MaxUint32 {
		return nil, ErrBodyTooLarge
	}
	buf := make([]byte, HeaderSize)
	copy(buf[0:MagicSize], magic)
	binary.BigEndian.PutUint32(buf[MagicSize:MagicSize+OffsetSize], uint32(bodyLen+HeaderSize))
	copy(buf[MagicSize+OffsetSize:], tag)
	return buf, nil
}

// DecodeHeader parses the first HeaderSize bytes of b. Errors wrap
// ErrBadMagic or ErrBadTag and quote the offending header bytes.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	raw := b[:HeaderSize]
	if !bytes.Equal(raw[0:MagicSize], magic) {
		return Header{}, fmt.Errorf("%w: header %q", ErrBadMagic, raw)
	}
	end := binary.BigEndian.Uint32(raw[MagicSize : MagicSize+OffsetSize])
	tag := raw[MagicSize+OffsetSize:]

	var kind Kind
	switch {
	case bytes.Equal(tag, imageTag):
		kind = KindImage
	case bytes.Equal(tag, metadataTag):
		kind = KindMetadata
	default:
		return Header{}, fmt.Errorf("%w: header %q", ErrBadTag, raw)
	}
	if end < HeaderSize {
		return Header{}, fmt.Errorf("%w: offset %d", ErrOffsetTooSmall, end)
	}
	return Header{Kind: kind, End: end}, nil
}

func tagFor(kind Kind) ([]byte, error) {
	switch kind {
	case KindImage:
		return imageTag, nil
	case KindMetadata:
		return metadataTag, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}
