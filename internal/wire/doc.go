// Package wire defines the PPDF frame layout shared by the stream encoder and
// the incremental decoder.
//
// Every frame is a fixed 10-byte header followed by a body:
//
//	[4 bytes] "PPDF"
//	[4 bytes] end offset of the frame, big-endian, relative to the header start
//	[3 bytes] "IMG" (opaque image body) or "MET" (UTF-8 JSON metadata body)
//
// The end offset covers the header and the body together, so a frame whose
// body is n bytes long carries the offset n+HeaderSize.
package wire
