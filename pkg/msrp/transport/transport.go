// Package transport implements the blocking chunk read/write facade and
// path-binding handshake described in SPEC_FULL.md §4.E. It sits between the
// streaming framer and the session engine.
package transport

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"

	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/framer"
	"firestige.xyz/msrp/pkg/msrp/header"
	"firestige.xyz/msrp/pkg/msrp/msrperr"
	"firestige.xyz/msrp/pkg/msrp/uri"
)

// DefaultMaxChunkSize bounds an assembled chunk's payload before read_chunk
// fails with a ChunkParseError (SPEC_FULL.md §4.E).
const DefaultMaxChunkSize = 4 * 1024 * 1024

// largeMessageThreshold is the byte-range total above which the chunk's
// declared end is rendered "*" rather than a concrete number
// (SPEC_FULL.md §4.E, make_send_request).
const largeMessageThreshold = 2048

// TrafficLogger is the embedder-supplied sink described in SPEC_FULL.md §6:
// every chunk sent or received, illegal bytes, and free-form diagnostics.
type TrafficLogger interface {
	SentChunk(c *chunk.Chunk)
	ReceivedChunk(c *chunk.Chunk)
	ReceivedIllegalData(data []byte)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// Conn is the minimal underlying stream the transport needs: an ordered,
// reliable byte stream plus the ability to signal it is done with (SPEC_FULL
// §4.E's "transport contract", write(bytes)/connection_lost(reason)).
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

type incomingItem struct {
	chunk *chunk.Chunk
	err   error
}

// Transport owns the framer, the local/remote URI and path, and the
// underlying connection. All chunk-level I/O is blocking: WriteChunk sends
// synchronously, ReadChunk blocks until a full chunk (or a terminal error)
// is available.
type Transport struct {
	conn   Conn
	framer *framer.Framer
	logger TrafficLogger

	LocalURI     *uri.URI
	LocalPath    []*uri.URI
	RemoteURI    *uri.URI
	RemotePath   []*uri.URI
	Sessmatch    bool
	MaxChunkSize int

	incoming chan incomingItem

	// building/payload are only ever touched from the pump goroutine.
	building *chunk.Chunk
	payload  []byte
}

// New wraps conn and starts the background read pump. localURI is required;
// remoteURI/remotePath may be filled in later by Bind/AcceptBinding.
func New(conn Conn, localURI *uri.URI, localPath []*uri.URI, logger TrafficLogger) *Transport {
	t := &Transport{
		conn:         conn,
		framer:       framer.New(frameLoggerAdapter{logger}),
		logger:       logger,
		LocalURI:     localURI,
		LocalPath:    localPath,
		MaxChunkSize: DefaultMaxChunkSize,
		incoming:     make(chan incomingItem, 16),
	}
	go t.pump()
	return t
}

// frameLoggerAdapter adapts TrafficLogger to framer.Logger, tolerating a nil
// transport logger.
type frameLoggerAdapter struct{ l TrafficLogger }

func (a frameLoggerAdapter) Debugf(format string, args ...any) {
	if a.l != nil {
		a.l.Debugf(format, args...)
	}
}
func (a frameLoggerAdapter) Warnf(format string, args ...any) {
	if a.l != nil {
		a.l.Errorf(format, args...)
	}
}
func (a frameLoggerAdapter) IllegalData(data []byte) {
	if a.l != nil {
		a.l.ReceivedIllegalData(data)
	}
}

// pump reads raw bytes from the connection and turns framer events into
// assembled chunks on the incoming channel. It runs until the connection is
// closed or a ChunkParseError occurs, at which point it reports the error
// (or a clean close) and exits.
func (t *Transport) pump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			events, ferr := t.framer.Feed(buf[:n])
			if perr := t.dispatch(events); perr != nil {
				t.incoming <- incomingItem{err: perr}
				close(t.incoming)
				return
			}
			if ferr != nil {
				t.incoming <- incomingItem{err: &msrperr.ChunkParseError{Reason: "framer error", Cause: ferr}}
				close(t.incoming)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				t.incoming <- incomingItem{err: fmt.Errorf("msrp: connection lost: %w", err)}
			}
			close(t.incoming)
			return
		}
	}
}

// dispatch folds framer events into assembled chunks, enforcing
// MaxChunkSize. Returns a non-nil error (always a *msrperr.ChunkParseError)
// on an oversize chunk or an out-of-order event sequence.
func (t *Transport) dispatch(events []framer.Event) error {
	for _, e := range events {
		switch e.Tag {
		case framer.DataStart:
			if t.building != nil {
				return &msrperr.ChunkParseError{Reason: "DataStart while a chunk was already in progress"}
			}
			t.building = e.Chunk
			t.payload = nil
		case framer.DataWrite, framer.DataFinalWrite:
			if t.building == nil {
				return &msrperr.ChunkParseError{Reason: "data write with no chunk in progress"}
			}
			if len(t.payload)+len(e.Bytes) > t.MaxChunkSize {
				return &msrperr.ChunkParseError{Reason: fmt.Sprintf("chunk exceeds max size %d", t.MaxChunkSize)}
			}
			t.payload = append(t.payload, e.Bytes...)
		case framer.DataEnd:
			if t.building == nil {
				return &msrperr.ChunkParseError{Reason: "DataEnd with no chunk in progress"}
			}
			c := t.building
			c.Data = t.payload
			c.Contflag = e.Continuation
			t.building = nil
			t.payload = nil
			if t.logger != nil {
				t.logger.ReceivedChunk(c)
			}
			t.incoming <- incomingItem{chunk: c}
		}
	}
	return nil
}

// WriteChunk encodes c and writes it to the connection.
func (t *Transport) WriteChunk(c *chunk.Chunk) error {
	encoded, err := c.Encode()
	if err != nil {
		return err
	}
	if _, err = t.conn.Write(encoded); err != nil {
		return err
	}
	if t.logger != nil {
		t.logger.SentChunk(c)
	}
	return nil
}

// ReadChunk blocks until one fully-assembled chunk is available, ctx is
// cancelled, or the connection terminates.
func (t *Transport) ReadChunk(ctx context.Context) (*chunk.Chunk, error) {
	select {
	case item, ok := <-t.incoming:
		if !ok {
			return nil, io.EOF
		}
		if item.err != nil {
			return nil, item.err
		}
		return item.chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}

func randomTransactionID() (string, error) {
	b := make([]byte, 8) // 64 bits
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating transaction id: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}

// MakeRequest constructs a chunk with a fresh transaction id, To-Path set to
// the local path followed by the remote path and remote URI, and From-Path
// set to the local URI alone (SPEC_FULL.md §4.E).
func (t *Transport) MakeRequest(method string) (*chunk.Chunk, error) {
	tid, err := randomTransactionID()
	if err != nil {
		return nil, err
	}
	c, err := chunk.NewRequest(tid, method)
	if err != nil {
		return nil, err
	}
	toPath := make([]*uri.URI, 0, len(t.LocalPath)+len(t.RemotePath)+1)
	toPath = append(toPath, t.LocalPath...)
	toPath = append(toPath, t.RemotePath...)
	if t.RemoteURI != nil {
		toPath = append(toPath, t.RemoteURI)
	}
	c.AddHeaderValue(header.NameToPath, toPath)
	c.AddHeaderValue(header.NameFromPath, []*uri.URI{t.LocalURI})
	return c, nil
}

// MakeSendRequest builds a SEND chunk carrying data, per SPEC_FULL.md §4.E.
// end and length are optional declared boundaries; when neither is given,
// the chunk is treated as a non-final fragment (contflag '+') of a message
// whose total size is not yet known.
func (t *Transport) MakeSendRequest(messageID string, data []byte, start int, end *int, length *int) (*chunk.Chunk, error) {
	if start < 1 {
		start = 1
	}
	c, err := t.MakeRequest("SEND")
	if err != nil {
		return nil, err
	}
	if messageID == "" {
		messageID, err = randomTransactionID()
		if err != nil {
			return nil, err
		}
	}
	c.AddHeader(header.NameMessageID, messageID)

	actualEnd := start + len(data) - 1
	var total *int
	switch {
	case end != nil:
		total = end
	case length != nil:
		total = length
	}

	complete := total != nil && actualEnd == *total
	if complete {
		c.Contflag = chunk.ContinuationComplete
	} else {
		c.Contflag = chunk.ContinuationMore
	}

	endField := strconv.Itoa(actualEnd)
	totalField := "*"
	if total != nil {
		totalField = strconv.Itoa(*total)
		if *total > largeMessageThreshold {
			endField = "*"
		}
	}
	c.AddHeader(header.NameByteRange, fmt.Sprintf("%d-%s/%s", start, endField, totalField))
	c.Data = data
	return c, nil
}

// CheckIncomingSEND validates an inbound SEND's To-Path/From-Path against
// this transport's expectations. Returns nil when the paths are acceptable.
func (t *Transport) CheckIncomingSEND(c *chunk.Chunk) error {
	toHeader, ok := c.Headers().Get(header.NameToPath)
	if !ok {
		return &msrperr.BadRequestError{Reason: "missing To-Path"}
	}
	fromHeader, ok := c.Headers().Get(header.NameFromPath)
	if !ok {
		return &msrperr.BadRequestError{Reason: "missing From-Path"}
	}
	toPath, err := toHeader.URIs()
	if err != nil {
		return err
	}
	fromPath, err := fromHeader.URIs()
	if err != nil {
		return err
	}
	if len(toPath) == 0 || len(fromPath) == 0 {
		return &msrperr.BadRequestError{Reason: "empty path"}
	}

	// To-Path names the destination, i.e. this endpoint's own path, never
	// the remote peer's — sessmatch and strict mode both validate against
	// t.LocalURI/t.LocalPath (draft-ietf-simple-msrp-sessmatch, RFC 4975 §7.1).
	if t.Sessmatch {
		if toPath[0].SessionID != t.LocalURI.SessionID {
			return &msrperr.NoSuchSessionError{Reason: "session id of first To-Path hop does not match"}
		}
		return nil
	}

	expected := append(append([]*uri.URI{}, t.LocalPath...), t.LocalURI)
	if len(toPath) != len(expected) {
		return &msrperr.NoSuchSessionError{Reason: "To-Path length mismatch"}
	}
	for i, u := range toPath {
		if expected[i] == nil || !u.Equal(expected[i]) {
			return &msrperr.NoSuchSessionError{Reason: "To-Path does not match expected path"}
		}
	}
	return nil
}

// Bind performs the active-side path-binding handshake over fullRemotePath:
// send an empty SEND and wait for a 200 response, tolerating peer-sent
// empty SENDs in the interim (SPEC_FULL.md §4.E).
func (t *Transport) Bind(ctx context.Context, fullRemotePath []*uri.URI) error {
	if len(fullRemotePath) == 0 {
		return &msrperr.NoSuchSessionError{Reason: "empty remote path"}
	}
	t.RemoteURI = fullRemotePath[len(fullRemotePath)-1]
	t.RemotePath = fullRemotePath[:len(fullRemotePath)-1]

	req, err := t.MakeRequest("SEND")
	if err != nil {
		return err
	}
	if err := t.WriteChunk(req); err != nil {
		return err
	}

	for {
		c, err := t.ReadChunk(ctx)
		if err != nil {
			return err
		}
		if c.IsRequest() {
			if c.Method() != "SEND" || len(c.Data) != 0 {
				return &msrperr.NoSuchSessionError{Reason: "unexpected chunk during bind handshake"}
			}
			resp, err := t.makeOKResponse(c)
			if err != nil {
				return err
			}
			if err := t.WriteChunk(resp); err != nil {
				return err
			}
			continue
		}
		if c.TransactionID() != req.TransactionID() {
			continue
		}
		if c.Code() != 200 {
			return &msrperr.NoSuchSessionError{Reason: fmt.Sprintf("bind rejected: %03d %s", c.Code(), c.Comment())}
		}
		return nil
	}
}

// AcceptBinding is the passive side of the handshake: read one chunk,
// validate it, and respond 200/error. A chunk that carries a payload is
// returned to the caller (nil otherwise); it is not queued for the session
// reader, which never sees it.
func (t *Transport) AcceptBinding(ctx context.Context, fullRemotePath []*uri.URI) (*chunk.Chunk, error) {
	if len(fullRemotePath) > 0 {
		t.RemoteURI = fullRemotePath[len(fullRemotePath)-1]
		t.RemotePath = fullRemotePath[:len(fullRemotePath)-1]
	}
	c, err := t.ReadChunk(ctx)
	if err != nil {
		return nil, err
	}
	if !c.IsRequest() || c.Method() != "SEND" {
		return nil, &msrperr.NoSuchSessionError{Reason: "expected an initial SEND"}
	}
	if err := t.CheckIncomingSEND(c); err != nil {
		resp, rerr := t.makeErrorResponse(c, err)
		if rerr == nil {
			t.WriteChunk(resp)
		}
		return nil, err
	}
	resp, err := t.makeOKResponse(c)
	if err != nil {
		return nil, err
	}
	if err := t.WriteChunk(resp); err != nil {
		return nil, err
	}
	if len(c.Data) == 0 {
		return nil, nil
	}
	return c, nil
}

func (t *Transport) makeOKResponse(req *chunk.Chunk) (*chunk.Chunk, error) {
	return t.makeResponse(req, 200, "OK")
}

func (t *Transport) makeErrorResponse(req *chunk.Chunk, cause error) (*chunk.Chunk, error) {
	code, comment := 400, "Bad request"
	switch e := cause.(type) {
	case *msrperr.NoSuchSessionError:
		code, comment = 481, "No such session"
	case *msrperr.BadRequestError:
		code, comment = 400, e.Reason
	}
	return t.makeResponse(req, code, comment)
}

func (t *Transport) makeResponse(req *chunk.Chunk, code int, comment string) (*chunk.Chunk, error) {
	resp, err := chunk.NewResponse(req.TransactionID(), code, comment)
	if err != nil {
		return nil, err
	}
	fromHeader, ok := req.Headers().Get(header.NameFromPath)
	if !ok {
		return nil, &msrperr.BadRequestError{Reason: "missing From-Path on request being responded to"}
	}
	fromPath, err := fromHeader.URIs()
	if err != nil {
		return nil, err
	}
	toHeader, ok := req.Headers().Get(header.NameToPath)
	if !ok {
		return nil, &msrperr.BadRequestError{Reason: "missing To-Path on request being responded to"}
	}
	toPath, err := toHeader.URIs()
	if err != nil {
		return nil, err
	}
	if len(fromPath) == 0 || len(toPath) == 0 {
		return nil, &msrperr.BadRequestError{Reason: "empty path on request being responded to"}
	}
	resp.AddHeaderValue(header.NameToPath, []*uri.URI{fromPath[0]})
	resp.AddHeaderValue(header.NameFromPath, []*uri.URI{toPath[0]})
	return resp, nil
}
