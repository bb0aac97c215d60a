// Package header implements the typed header value codec described in
// SPEC_FULL.md §4.A: every header name maps to exactly one value kind, each
// with a decode(text) and encode(value) operation.
package header

// Kind identifies one of the closed set of header value grammars in
// SPEC_FULL.md §3. A static tagged union replaces the teacher's dynamic
// dispatch registry, per the design note in spec.md §9.
type Kind int

const (
	// KindOpaqueString carries Content-Type, Content-ID, Content-Description,
	// Message-ID, and any unrecognized header name.
	KindOpaqueString Kind = iota
	// KindUTF8String carries Use-Nickname.
	KindUTF8String
	// KindURIList carries To-Path, From-Path, Use-Path.
	KindURIList
	// KindInteger carries Expires, Min-Expires, Max-Expires.
	KindInteger
	// KindEnum carries Success-Report, Failure-Report.
	KindEnum
	// KindByteRange carries Byte-Range.
	KindByteRange
	// KindStatus carries Status.
	KindStatus
	// KindContentDisposition carries Content-Disposition.
	KindContentDisposition
	// KindParameterList carries Authentication-Info.
	KindParameterList
	// KindDigest carries WWW-Authenticate and Authorization.
	KindDigest
)
