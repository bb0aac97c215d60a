// Package session implements the session engine described in SPEC_FULL.md
// §4.F: a reader task, a writer task, and a keep-alive task cooperating over
// a transport.Transport, driving the CONNECTED -> FLUSHING -> CLOSING -> DONE
// state machine.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/tevino/abool"

	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/header"
	"firestige.xyz/msrp/pkg/msrp/msrperr"
	"firestige.xyz/msrp/pkg/msrp/transport"
	"firestige.xyz/msrp/pkg/msrp/uri"
)

// Default option values, per SPEC_FULL.md §6.
const (
	DefaultResponseTimeout   = 30 * time.Second
	DefaultShutdownTimeout   = time.Second
	DefaultKeepaliveInterval = 60 * time.Second
)

const outgoingQueueDepth = 256

// Options configures a Session's behavior. New replaces a nil AcceptTypes
// and zero durations with the DefaultOptions values; AutomaticReports is
// used as given.
type Options struct {
	AcceptTypes       []string
	AutomaticReports  bool
	ResponseTimeout   time.Duration
	ShutdownTimeout   time.Duration
	KeepaliveInterval time.Duration
}

// DefaultOptions returns the option set described in SPEC_FULL.md §6.
func DefaultOptions() Options {
	return Options{
		AcceptTypes:       []string{"*"},
		AutomaticReports:  true,
		ResponseTimeout:   DefaultResponseTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		KeepaliveInterval: DefaultKeepaliveInterval,
	}
}

// IncomingChunkFunc is invoked serially for every application-visible
// inbound chunk: successful SENDs, REPORTs, and well-formed NICKNAMEs.
type IncomingChunkFunc func(*chunk.Chunk)

// ErrorFunc is invoked at most once, when the session terminates
// abnormally.
type ErrorFunc func(error)

type outgoingItem struct {
	shutdown   bool
	chunk      *chunk.Chunk
	onResponse func(*chunk.Chunk, error)
}

type pendingResponse struct {
	onResponse func(*chunk.Chunk, error)
	timer      *time.Timer
}

// Session owns a transport and the two cooperating reader/writer tasks plus
// a keep-alive task described in SPEC_FULL.md §4.F.
type Session struct {
	transport  *transport.Transport
	opts       Options
	onIncoming IncomingChunkFunc
	onError    ErrorFunc

	mu    sync.Mutex
	state State

	outgoing chan outgoingItem
	expected sync.Map // transaction id -> *pendingResponse

	readerDone    chan struct{}
	keepaliveStop chan struct{}

	started  *abool.AtomicBool
	errOnce  sync.Once
	wg       conc.WaitGroup
	capturedErr error
}

// New constructs a Session around t. Call Start to begin the reader, writer,
// and keep-alive tasks.
func New(t *transport.Transport, onIncoming IncomingChunkFunc, onError ErrorFunc, opts Options) *Session {
	if opts.AcceptTypes == nil {
		opts.AcceptTypes = []string{"*"}
	}
	if opts.ResponseTimeout == 0 {
		opts.ResponseTimeout = DefaultResponseTimeout
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.KeepaliveInterval == 0 {
		opts.KeepaliveInterval = DefaultKeepaliveInterval
	}
	return &Session{
		transport:     t,
		opts:          opts,
		onIncoming:    onIncoming,
		onError:       onError,
		state:         StateConnected,
		outgoing:      make(chan outgoingItem, outgoingQueueDepth),
		readerDone:    make(chan struct{}),
		keepaliveStop: make(chan struct{}),
		started:       abool.New(),
	}
}

// Start launches the reader, writer, and keep-alive tasks. Calling Start
// more than once is a no-op.
func (s *Session) Start() {
	if !s.started.SetToIf(false, true) {
		return
	}
	s.wg.Go(s.writerLoop)
	s.wg.Go(s.readerLoop)
	s.wg.Go(s.keepaliveLoop)
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.getState()
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState never leaves DONE, so a late CLOSING from the writer or the
// keep-alive cannot undo the reader's final transition.
func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state != StateDone {
		s.state = st
	}
	s.mu.Unlock()
}

// SendChunk enqueues c for delivery. onResponse, if non-nil, fires exactly
// once for a chunk that is written: with the peer's response, or a
// synthesized 408 on timeout. It does not fire for a chunk that is never
// written (a write error, a transaction id already awaiting a response, or
// a writer that exits before reaching it). Returns an *msrperr.SessionError
// if the session is not CONNECTED.
func (s *Session) SendChunk(c *chunk.Chunk, onResponse func(*chunk.Chunk, error)) error {
	if s.getState() != StateConnected {
		return &msrperr.SessionError{State: s.getState().String()}
	}
	s.enqueue(c, onResponse)
	return nil
}

// Shutdown transitions the session to FLUSHING, stops the keep-alive task,
// and pushes the sentinel that drains the writer. When wait is true it
// blocks until the reader and writer tasks have both exited, bounded by
// ShutdownTimeout.
func (s *Session) Shutdown(wait bool) {
	s.setState(StateFlushing)
	select {
	case <-s.keepaliveStop:
	default:
		close(s.keepaliveStop)
	}
	s.outgoing <- outgoingItem{shutdown: true}
	if !wait {
		return
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.opts.ShutdownTimeout):
	}
}

func (s *Session) enqueue(c *chunk.Chunk, onResponse func(*chunk.Chunk, error)) {
	s.outgoing <- outgoingItem{chunk: c, onResponse: onResponse}
}

func (s *Session) reportError(err error) {
	s.errOnce.Do(func() {
		if s.onError != nil {
			s.onError(err)
		}
	})
}

func isCleanClose(err error) bool {
	return err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}

// writerLoop dequeues and sends outgoing items while CONNECTED, or while
// FLUSHING with a non-empty queue (the sentinel marks the end of the
// FLUSHING backlog). It exits on the sentinel or when the reader exits,
// closing the transport and transitioning to CLOSING either way.
func (s *Session) writerLoop() {
	defer func() {
		s.transport.Close()
		s.setState(StateClosing)
	}()
	for {
		select {
		case item, ok := <-s.outgoing:
			if !ok || item.shutdown {
				return
			}
			s.sendOne(item)
		case <-s.readerDone:
			return
		}
	}
}

func (s *Session) sendOne(item outgoingItem) {
	tid := item.chunk.TransactionID()
	if item.onResponse != nil {
		if _, exists := s.expected.Load(tid); exists {
			return
		}
	}
	if err := s.transport.WriteChunk(item.chunk); err != nil {
		s.reportError(err)
		return
	}
	if item.onResponse == nil {
		return
	}
	timer := time.AfterFunc(s.opts.ResponseTimeout, func() {
		if _, ok := s.expected.LoadAndDelete(tid); ok {
			item.onResponse(nil, &msrperr.TransactionError{Code: 408, Comment: "Timed out"})
		}
	})
	s.expected.Store(tid, &pendingResponse{onResponse: item.onResponse, timer: timer})
}

// readerLoop reads and dispatches inbound chunks while CONNECTED or
// FLUSHING. Once that main loop exits, it drains the expected-responses
// table (timers alone fire from here on, since the transport is closing),
// reports any captured error, and enters DONE.
func (s *Session) readerLoop() {
	defer close(s.readerDone)
	ctx := context.Background()
	for {
		st := s.getState()
		if st != StateConnected && st != StateFlushing {
			break
		}
		c, err := s.transport.ReadChunk(ctx)
		if err != nil {
			s.capturedErr = err
			break
		}
		s.dispatchInbound(c)
	}
	s.drainResponses()
	s.transport.Close()
	if !isCleanClose(s.capturedErr) {
		s.reportError(s.capturedErr)
	}
	s.setState(StateDone)
}

func (s *Session) drainResponses() {
	for {
		empty := true
		s.expected.Range(func(_, _ any) bool {
			empty = false
			return false
		})
		if empty {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *Session) dispatchInbound(c *chunk.Chunk) {
	if !c.IsRequest() {
		tid := c.TransactionID()
		if v, ok := s.expected.LoadAndDelete(tid); ok {
			pr := v.(*pendingResponse)
			pr.timer.Stop()
			pr.onResponse(c, nil)
		}
		return
	}

	switch c.Method() {
	case "SEND":
		s.handleSend(c)
	case "REPORT":
		if s.onIncoming != nil {
			s.onIncoming(c)
		}
	case "NICKNAME":
		s.handleNickname(c)
	default:
		if resp := s.makeResponse(c, 501, "Method unknown"); resp != nil {
			s.enqueue(resp, nil)
		}
	}
}

func (s *Session) handleSend(c *chunk.Chunk) {
	err := s.transport.CheckIncomingSEND(c)
	if err == nil {
		err = s.checkContentType(c)
	}

	code, comment := 200, "OK"
	if err != nil {
		code, comment = errorCodeComment(err)
	}
	if resp := s.makeResponse(c, code, comment); resp != nil {
		s.enqueue(resp, nil)
	}
	if err != nil {
		return
	}

	if s.onIncoming != nil {
		s.onIncoming(c)
	}
	if s.opts.AutomaticReports {
		if rep := s.makeReportIfNeeded(c, 200, "OK"); rep != nil {
			s.enqueue(rep, nil)
		}
	}
}

func (s *Session) handleNickname(c *chunk.Chunk) {
	_, hasNick := c.Headers().Get(header.NameUseNickname)
	_, hasSR := c.Headers().Get(header.NameSuccessReport)
	_, hasFR := c.Headers().Get(header.NameFailureReport)
	if !hasNick || hasSR || hasFR {
		if resp := s.makeResponse(c, 400, "Bad request"); resp != nil {
			s.enqueue(resp, nil)
		}
		return
	}
	if s.onIncoming != nil {
		s.onIncoming(c)
	}
}

func (s *Session) checkContentType(c *chunk.Chunk) error {
	if len(c.Data) == 0 {
		return nil
	}
	h, ok := c.Headers().Get(header.NameContentType)
	if !ok {
		return &msrperr.BadRequestError{Reason: "missing Content-Type"}
	}
	ct, err := h.String()
	if err != nil {
		return err
	}
	if matchesAnyType(ct, s.opts.AcceptTypes) {
		return nil
	}
	return &msrperr.BadRequestError{Reason: fmt.Sprintf("content type %q not accepted", ct)}
}

// matchesAnyType matches ct against a list of MIME patterns: "*", "type/*",
// or an exact match.
func matchesAnyType(ct string, patterns []string) bool {
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasSuffix(p, "/*"):
			if strings.HasPrefix(ct, strings.TrimSuffix(p, "*")) {
				return true
			}
		case strings.EqualFold(p, ct):
			return true
		}
	}
	return false
}

func errorCodeComment(err error) (int, string) {
	switch e := err.(type) {
	case *msrperr.NoSuchSessionError:
		return 481, "No such session"
	case *msrperr.BadRequestError:
		return 400, e.Reason
	default:
		return 400, "Bad request"
	}
}

// makeResponse builds a response chunk per SPEC_FULL.md §4.F, or nil when
// suppressed by the request's Failure-Report value.
func (s *Session) makeResponse(req *chunk.Chunk, code int, comment string) *chunk.Chunk {
	fr := failureReportOf(req)
	if fr == "no" || (fr == "partial" && code == 200) {
		return nil
	}
	resp, err := chunk.NewResponse(req.TransactionID(), code, comment)
	if err != nil {
		return nil
	}
	fromPath, toPath, ok := pathsOf(req)
	if !ok {
		return nil
	}
	if req.Method() == "SEND" {
		resp.AddHeaderValue(header.NameToPath, []*uri.URI{fromPath[0]})
	} else {
		resp.AddHeaderValue(header.NameToPath, fromPath)
	}
	resp.AddHeaderValue(header.NameFromPath, []*uri.URI{toPath[0]})
	return resp
}

// makeReportIfNeeded builds a REPORT chunk per SPEC_FULL.md §4.F, or nil
// when neither Success-Report nor Failure-Report call for one.
func (s *Session) makeReportIfNeeded(req *chunk.Chunk, code int, comment string) *chunk.Chunk {
	sr := successReportOf(req)
	fr := failureReportOf(req)
	need := sr == "yes" || ((fr == "yes" || fr == "partial") && code != 200)
	if !need {
		return nil
	}
	tid, err := randomTransactionID()
	if err != nil {
		return nil
	}
	rep, err := chunk.NewRequest(tid, "REPORT")
	if err != nil {
		return nil
	}
	fromPath, toPath, ok := pathsOf(req)
	if !ok {
		return nil
	}
	rep.AddHeaderValue(header.NameToPath, fromPath)
	rep.AddHeaderValue(header.NameFromPath, []*uri.URI{toPath[0]})
	rep.AddHeaderValue(header.NameStatus, header.Status{Code: code, Comment: comment})
	if mid, ok := req.Headers().Get(header.NameMessageID); ok {
		if text, err := mid.Text(); err == nil {
			rep.AddHeader(header.NameMessageID, text)
		}
	}
	start, end, total := byteRangeCoverage(req)
	rep.AddHeaderValue(header.NameByteRange, header.ByteRange{Start: start, End: &end, Total: &total})
	return rep
}

func byteRangeCoverage(req *chunk.Chunk) (start, end, total int) {
	size := len(req.Data)
	h, ok := req.Headers().Get(header.NameByteRange)
	if !ok {
		return 1, size, size
	}
	br, err := h.ByteRangeValue()
	if err != nil {
		return 1, size, size
	}
	start = br.Start
	end = start + size - 1
	if br.Total != nil {
		total = *br.Total
	} else {
		total = end
	}
	return start, end, total
}

func failureReportOf(c *chunk.Chunk) string {
	h, ok := c.Headers().Get(header.NameFailureReport)
	if !ok {
		return "yes"
	}
	v, err := h.String()
	if err != nil {
		return "yes"
	}
	return v
}

func successReportOf(c *chunk.Chunk) string {
	h, ok := c.Headers().Get(header.NameSuccessReport)
	if !ok {
		return "no"
	}
	v, err := h.String()
	if err != nil {
		return "no"
	}
	return v
}

func pathsOf(c *chunk.Chunk) (fromPath, toPath []*uri.URI, ok bool) {
	fh, has := c.Headers().Get(header.NameFromPath)
	if !has {
		return nil, nil, false
	}
	th, has := c.Headers().Get(header.NameToPath)
	if !has {
		return nil, nil, false
	}
	fp, err := fh.URIs()
	if err != nil || len(fp) == 0 {
		return nil, nil, false
	}
	tp, err := th.URIs()
	if err != nil || len(tp) == 0 {
		return nil, nil, false
	}
	return fp, tp, true
}

// keepaliveLoop sends an empty SEND carrying Keep-Alive: yes every
// KeepaliveInterval while CONNECTED; a 408 response closes the connection
// and transitions to CLOSING (SPEC_FULL.md §4.F).
func (s *Session) keepaliveLoop() {
	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.getState() != StateConnected {
				return
			}
			s.sendKeepalive()
		case <-s.keepaliveStop:
			return
		case <-s.readerDone:
			return
		}
	}
}

func (s *Session) sendKeepalive() {
	req, err := s.transport.MakeRequest("SEND")
	if err != nil {
		return
	}
	req.SetHeader(header.NameKeepAlive, "yes")
	if err := s.SendChunk(req, func(_ *chunk.Chunk, err error) {
		var te *msrperr.TransactionError
		if errors.As(err, &te) && te.Code == 408 {
			s.transport.Close()
			s.setState(StateClosing)
		}
	}); err != nil {
		return
	}
}

func randomTransactionID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating transaction id: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}
