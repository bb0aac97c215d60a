package framer

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/msrperr"
)

// MaxLineLength bounds a single header/first line; lines longer than this
// discard the current chunk (SPEC_FULL.md §4.D, boundary test in §8).
const MaxLineLength = 16384

// MaxHeaderLines bounds the number of header lines accumulated per chunk
// before the chunk is discarded (SPEC_FULL.md §4.D, boundary test in §8).
const MaxHeaderLines = 64

type state int

const (
	stateIdle state = iota
	stateHeaders
	statePayload
)

var firstLinePattern = regexp.MustCompile(
	`^MSRP ([A-Za-z0-9][A-Za-z0-9.+%=-]{3,31}) (?:([A-Z_]+)|(\d{3})(?: (.*))?)$`,
)

// Logger receives diagnostic hooks for malformed input, mirroring the
// embedder's traffic_logger sink (SPEC_FULL.md §6). A nil Logger is a valid
// no-op sink.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	IllegalData(data []byte)
}

// Framer is an incremental chunk parser. Feed bytes with Feed; it returns
// the events produced so far and retains any partial input internally.
type Framer struct {
	logger Logger

	st  state
	buf []byte // unconsumed input, interpretation depends on st

	current     *chunk.Chunk
	headerCount int

	terminatorPrefix   string         // "\r\n-------<tid>"
	terminatorRegex    *regexp.Regexp // ^(.*?)<prefix>([$#+])\r\n(.*)$ (DOTALL)
	terminatorVariants [][]byte       // the 3 full terminator strings, for carry-over suffix test
	bareEndLine        *regexp.Regexp // ^-------<tid>([$#+])$, for the no-blank-line zero body case
}

// New returns a Framer ready to parse a fresh byte stream.
func New(logger Logger) *Framer {
	return &Framer{logger: logger, st: stateIdle}
}

func (f *Framer) debugf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Debugf(format, args...)
	}
}

func (f *Framer) warnf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Warnf(format, args...)
	}
}

func (f *Framer) illegalData(data []byte) {
	if f.logger != nil {
		f.logger.IllegalData(data)
	}
}

// Feed appends data to the framer's internal buffer and parses as much as
// possible, returning the events produced. Feed may be called repeatedly
// with arbitrarily split chunks of the underlying byte stream, including
// splits in the middle of the end-line terminator.
func (f *Framer) Feed(data []byte) ([]Event, error) {
	f.buf = append(f.buf, data...)
	var events []Event

	for {
		switch f.st {
		case statePayload:
			done, newEvents, err := f.consumePayload()
			events = append(events, newEvents...)
			if err != nil {
				return events, err
			}
			if !done {
				return events, nil
			}
		default:
			line, ok := f.nextLine()
			if !ok {
				return events, nil
			}
			newEvents, err := f.consumeLine(line)
			events = append(events, newEvents...)
			if err != nil {
				return events, err
			}
		}
	}
}

// nextLine extracts the next \r\n-terminated line from f.buf, applying the
// per-line cap (SPEC_FULL.md §4.D: lines over MaxLineLength bytes discard
// the current chunk). Returns ok=false when more data is needed.
func (f *Framer) nextLine() (string, bool) {
	for {
		idx := bytes.Index(f.buf, []byte("\r\n"))
		if idx == -1 {
			if len(f.buf) > MaxLineLength {
				f.warnf("msrp: line exceeds %d bytes without CRLF, discarding chunk", MaxLineLength)
				f.buf = nil
				f.resetToIdle()
			}
			return "", false
		}
		if idx > MaxLineLength {
			f.warnf("msrp: line of %d bytes exceeds %d byte cap, discarding chunk", idx, MaxLineLength)
			f.buf = f.buf[idx+2:]
			f.resetToIdle()
			continue
		}
		line := string(f.buf[:idx])
		f.buf = f.buf[idx+2:]
		return line, true
	}
}

func (f *Framer) consumeLine(line string) ([]Event, error) {
	switch f.st {
	case stateIdle:
		return f.consumeIdleLine(line)
	case stateHeaders:
		return f.consumeHeaderLine(line)
	default:
		return nil, fmt.Errorf("msrp: framer in unexpected state %d while consuming line", f.st)
	}
}

func (f *Framer) consumeIdleLine(line string) ([]Event, error) {
	m := firstLinePattern.FindStringSubmatch(line)
	if m == nil {
		f.debugf("msrp: ignoring unrecognized line while idle: %q", line)
		f.illegalData([]byte(line))
		return nil, nil
	}
	tid, method, codeStr, comment := m[1], m[2], m[3], m[4]

	var c *chunk.Chunk
	var err error
	if method != "" {
		c, err = chunk.NewRequest(tid, method)
	} else {
		var code int
		code, err = strconv.Atoi(codeStr)
		if err == nil {
			c, err = chunk.NewResponse(tid, code, comment)
		}
	}
	if err != nil {
		f.debugf("msrp: malformed first line %q: %v", line, err)
		return nil, nil
	}

	f.current = c
	f.headerCount = 0
	f.terminatorPrefix = "\r\n-------" + tid
	f.terminatorRegex = regexp.MustCompile(`(?s)^(.*?)` + regexp.QuoteMeta(f.terminatorPrefix) + `([$#+])\r\n(.*)$`)
	f.terminatorVariants = [][]byte{
		[]byte(f.terminatorPrefix + "$\r\n"),
		[]byte(f.terminatorPrefix + "+\r\n"),
		[]byte(f.terminatorPrefix + "#\r\n"),
	}
	f.bareEndLine = regexp.MustCompile(`^-------` + regexp.QuoteMeta(tid) + `([$#+])$`)
	f.st = stateHeaders
	return nil, nil
}

func (f *Framer) consumeHeaderLine(line string) ([]Event, error) {
	if line == "" {
		events := []Event{{Tag: DataStart, Chunk: f.current}}
		// An end-line directly after the blank line closes an empty body.
		if idx := bytes.Index(f.buf, []byte("\r\n")); idx != -1 {
			if m := f.bareEndLine.FindSubmatch(f.buf[:idx]); m != nil {
				f.buf = f.buf[idx+2:]
				events = append(events, Event{Tag: DataEnd, Continuation: m[1][0]})
				f.resetToIdle()
				return events, nil
			}
		}
		f.st = statePayload
		return events, nil
	}

	if m := f.bareEndLine.FindStringSubmatch(line); m != nil {
		events := []Event{
			{Tag: DataStart, Chunk: f.current},
			{Tag: DataEnd, Continuation: m[1][0]},
		}
		f.resetToIdle()
		return events, nil
	}

	name, value, ok := splitHeaderLine(line)
	if !ok {
		f.debugf("msrp: dropping header line without separator: %q", line)
		return nil, nil
	}
	f.current.AddHeader(name, value)
	f.headerCount++
	if f.headerCount > MaxHeaderLines {
		f.warnf("msrp: chunk exceeds %d header lines, discarding", MaxHeaderLines)
		f.resetToIdle()
	}
	return nil, nil
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := indexSeparator(line)
	if idx == -1 {
		return "", "", false
	}
	return line[:idx], line[idx+2:], true
}

func indexSeparator(line string) int {
	const sep = ": "
	for i := 0; i+len(sep) <= len(line); i++ {
		if line[i:i+len(sep)] == sep {
			return i
		}
	}
	return -1
}

func (f *Framer) resetToIdle() {
	f.current = nil
	f.st = stateIdle
	f.terminatorRegex = nil
	f.terminatorPrefix = ""
	f.terminatorVariants = nil
	f.bareEndLine = nil
	f.headerCount = 0
}

// consumePayload attempts to match the end-line terminator in f.buf. It
// returns done=true once a DataEnd has been produced for the current
// chunk (leaving any trailing bytes in f.buf for the next chunk's first
// line), or done=false when more data is needed.
func (f *Framer) consumePayload() (bool, []Event, error) {
	if m := f.terminatorRegex.FindSubmatch(f.buf); m != nil {
		contents, continuation, extra := m[1], m[2][0], m[3]
		if continuation != chunk.ContinuationComplete && continuation != chunk.ContinuationMore && continuation != chunk.ContinuationAborted {
			return false, nil, &msrperr.ChunkParseError{Reason: fmt.Sprintf("invalid continuation flag %q", continuation)}
		}
		var events []Event
		if len(contents) > 0 {
			events = append(events, Event{Tag: DataFinalWrite, Bytes: contents})
		}
		events = append(events, Event{Tag: DataEnd, Continuation: continuation})
		f.buf = extra
		f.resetToIdle()
		return true, events, nil
	}

	holdBack := longestSuffixPrefixMatch(f.buf, f.terminatorVariants)
	flushLen := len(f.buf) - holdBack
	if flushLen <= 0 {
		return false, nil, nil
	}
	flush := f.buf[:flushLen]
	f.buf = f.buf[flushLen:]
	return false, []Event{{Tag: DataWrite, Bytes: flush}}, nil
}

// longestSuffixPrefixMatch returns the length of the longest suffix of buf
// that equals a prefix of any of the given same-shaped terminator
// candidates, i.e. how many trailing bytes of buf must be held back
// because they might be the start of a terminator split across reads.
func longestSuffixPrefixMatch(buf []byte, terminators [][]byte) int {
	maxK := 0
	for _, term := range terminators {
		upper := len(term)
		if upper > len(buf) {
			upper = len(buf)
		}
		for k := upper; k > maxK; k-- {
			if bytes.Equal(buf[len(buf)-k:], term[:k]) {
				if k > maxK {
					maxK = k
				}
				break
			}
		}
	}
	return maxK
}
