// Package chunk implements the immutable-shaped MSRP chunk container and its
// wire encoding, per SPEC_FULL.md §4.B.
package chunk

import (
	"bytes"
	"fmt"
	"regexp"

	"firestige.xyz/msrp/pkg/msrp/header"
	"firestige.xyz/msrp/pkg/msrp/msrperr"
)

var transactionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.+%=-]{3,31}$`)

// methodPattern preserves the documented permissiveness of accepting '_' in
// method names, needed by embedders using custom methods such as
// FILE_OFFSET (spec.md §9, Open Question i).
var methodPattern = regexp.MustCompile(`^[A-Z_]+$`)

// Continuation flag values, per SPEC_FULL.md glossary.
const (
	ContinuationComplete = '$'
	ContinuationMore     = '+'
	ContinuationAborted  = '#'
)

// Chunk is one MSRP protocol unit: a first line, an ordered header
// collection, a payload, and a continuation flag. method/code/comment are
// fixed at construction; transaction ID, headers, data, and contflag remain
// mutable, per the immutability discipline in SPEC_FULL.md §9.
type Chunk struct {
	transactionID string
	method        string
	code          int
	comment       string
	isResponse    bool

	headers *HeaderList

	Data     []byte
	Contflag byte

	headerBlock      []byte
	headerBlockValid bool
}

// NewRequest constructs a request chunk. method must match `[A-Z_]+`.
func NewRequest(transactionID, method string) (*Chunk, error) {
	if err := validateTransactionID(transactionID); err != nil {
		return nil, err
	}
	if !methodPattern.MatchString(method) {
		return nil, fmt.Errorf("msrp: invalid method %q", method)
	}
	return &Chunk{
		transactionID: transactionID,
		method:        method,
		headers:       NewHeaderList(),
		Contflag:      ContinuationComplete,
	}, nil
}

// NewResponse constructs a response chunk with a three-digit code and an
// optional comment.
func NewResponse(transactionID string, code int, comment string) (*Chunk, error) {
	if err := validateTransactionID(transactionID); err != nil {
		return nil, err
	}
	if code < 100 || code > 999 {
		return nil, fmt.Errorf("msrp: invalid response code %d", code)
	}
	return &Chunk{
		transactionID: transactionID,
		code:          code,
		comment:       comment,
		isResponse:    true,
		headers:       NewHeaderList(),
		Contflag:      ContinuationComplete,
	}, nil
}

func validateTransactionID(id string) error {
	if !transactionIDPattern.MatchString(id) {
		return fmt.Errorf("msrp: invalid transaction id %q", id)
	}
	return nil
}

// TransactionID returns the current transaction id.
func (c *Chunk) TransactionID() string { return c.transactionID }

// SetTransactionID updates the transaction id. The chunk's first line is
// computed on demand, so it is always kept in sync.
func (c *Chunk) SetTransactionID(id string) error {
	if err := validateTransactionID(id); err != nil {
		return err
	}
	c.transactionID = id
	return nil
}

// IsRequest reports whether this chunk carries a method (request) rather
// than a response code.
func (c *Chunk) IsRequest() bool { return !c.isResponse }

// Method returns the method token; empty for response chunks.
func (c *Chunk) Method() string { return c.method }

// Code returns the response code; zero for request chunks.
func (c *Chunk) Code() int { return c.code }

// Comment returns the response comment, if any.
func (c *Chunk) Comment() string { return c.comment }

// Headers returns the chunk's ordered header collection.
func (c *Chunk) Headers() *HeaderList { return c.headers }

// FirstLine renders "MSRP <tid> <method>" or "MSRP <tid> <code>[ comment]".
func (c *Chunk) FirstLine() string {
	if c.isResponse {
		if c.comment != "" {
			return fmt.Sprintf("MSRP %s %03d %s", c.transactionID, c.code, c.comment)
		}
		return fmt.Sprintf("MSRP %s %03d", c.transactionID, c.code)
	}
	return fmt.Sprintf("MSRP %s %s", c.transactionID, c.method)
}

// invalidateHeaderBlock drops the cached encoded header block; call after
// any header mutation.
func (c *Chunk) invalidateHeaderBlock() {
	c.headerBlock = nil
	c.headerBlockValid = false
}

// AddHeader appends a header by its wire-format text, invalidating the
// cached header block.
func (c *Chunk) AddHeader(name, text string) {
	c.headers.Add(header.FromText(name, text))
	c.invalidateHeaderBlock()
}

// AddHeaderValue appends a header by its decoded value, invalidating the
// cached header block.
func (c *Chunk) AddHeaderValue(name string, value any) {
	c.headers.Add(header.FromValue(name, value))
	c.invalidateHeaderBlock()
}

// SetHeader replaces any existing header(s) of this name and sets a new one
// from its wire-format text.
func (c *Chunk) SetHeader(name, text string) {
	c.headers.Set(header.FromText(name, text))
	c.invalidateHeaderBlock()
}

// SetHeaderValue replaces any existing header(s) of this name with a new
// one from a decoded value.
func (c *Chunk) SetHeaderValue(name string, value any) {
	c.headers.Set(header.FromValue(name, value))
	c.invalidateHeaderBlock()
}

// EndLine renders the boundary that terminates a chunk: seven hyphens, the
// transaction id, and the continuation flag.
func (c *Chunk) EndLine() string {
	return fmt.Sprintf("-------%s%c", c.transactionID, c.Contflag)
}

// headerBlockBytes renders and caches the encoded header block (all header
// lines in canonical order, each "Name: value\r\n").
func (c *Chunk) headerBlockBytes() ([]byte, error) {
	if c.headerBlockValid {
		return c.headerBlock, nil
	}
	var buf bytes.Buffer
	for _, h := range c.headers.Ordered() {
		text, err := h.Text()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, text)
	}
	c.headerBlock = buf.Bytes()
	c.headerBlockValid = true
	return c.headerBlock, nil
}

// Encode renders the full wire form described in SPEC_FULL.md §4.B.
func (c *Chunk) Encode() ([]byte, error) {
	headerBlock, err := c.headerBlockBytes()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(c.FirstLine())
	buf.WriteString("\r\n")
	buf.Write(headerBlock)
	if _, ok := c.headers.Get(header.NameContentType); ok {
		buf.WriteString("\r\n")
	}
	buf.Write(c.Data)
	buf.WriteString("\r\n")
	buf.WriteString(c.EndLine())
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

// VerifyHeaders asserts presence of To-Path and From-Path and forces
// decoding of every header, surfacing any grammar violation as a
// *msrperr.HeaderParseError (or a *msrperr.BadRequestError for missing
// required headers).
func (c *Chunk) VerifyHeaders() error {
	if _, ok := c.headers.Get(header.NameToPath); !ok {
		return &msrperr.BadRequestError{Reason: "missing To-Path header"}
	}
	if _, ok := c.headers.Get(header.NameFromPath); !ok {
		return &msrperr.BadRequestError{Reason: "missing From-Path header"}
	}
	for _, h := range c.headers.Ordered() {
		if _, err := h.Value(); err != nil {
			return err
		}
	}
	return nil
}

// Equal is structural equality over first line, headers' encoded text,
// data, and contflag.
func (c *Chunk) Equal(other *Chunk) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.FirstLine() != other.FirstLine() || c.Contflag != other.Contflag {
		return false
	}
	if !bytes.Equal(c.Data, other.Data) {
		return false
	}
	cb, err1 := c.headerBlockBytes()
	ob, err2 := other.headerBlockBytes()
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(cb, ob)
}
