// Package framer implements the two-mode streaming chunk parser described
// in SPEC_FULL.md §4.D: a line-oriented header reader that switches to a
// raw byte-counting mode bounded by a per-transaction end-line terminator.
package framer

import "firestige.xyz/msrp/pkg/msrp/chunk"

// Tag identifies one framer event kind.
type Tag int

const (
	// DataStart is emitted exactly once per chunk, carrying the parsed
	// chunk (first line + headers), as soon as the header block is
	// complete.
	DataStart Tag = iota
	// DataWrite carries a slice of payload bytes that is not yet known to
	// be the chunk's final slice.
	DataWrite
	// DataFinalWrite carries the last slice of payload bytes, immediately
	// preceding DataEnd. It is omitted when the final slice is empty.
	DataFinalWrite
	// DataEnd is emitted exactly once per chunk, carrying the
	// continuation flag parsed from the end-line.
	DataEnd
)

// Event is one item of the ordered event stream the framer produces.
// Exactly one DataStart, zero or more DataWrite, at most one
// DataFinalWrite, and exactly one DataEnd are emitted per chunk, in that
// order (SPEC_FULL.md §4.D invariants).
type Event struct {
	Tag          Tag
	Chunk        *chunk.Chunk
	Bytes        []byte
	Continuation byte
}
