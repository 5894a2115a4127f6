// Package decoder incrementally decodes PPDF frame streams.
//
// A Decoder owns one growable buffer per stream. Chunks of any size are
// appended with Feed, and every frame whose body has fully arrived is returned
// in stream order. Image frames carry their opaque payload and a sequence
// index; the single metadata frame carries the decoded JSON object.
//
// Corrupt headers and malformed metadata are fatal: the decoder keeps
// returning the first error and emits nothing further. A stream that ends
// inside a frame is reported as ErrTruncated unless the decoder is configured
// with TruncationDiscard.
//
// Frames wraps a Decoder around a pull-based Source and exposes the decoded
// frames as an iterator, which is how transform responses are consumed.
package decoder
