package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket/tcpassembly"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/msrp/pkg/msrp/framer"
)

type recordingObserver struct {
	mu        sync.Mutex
	chunkSeen []framer.Event
	malformed [][]byte
}

func (o *recordingObserver) ChunkSeen(_ string, ev framer.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chunkSeen = append(o.chunkSeen, ev)
}

func (o *recordingObserver) MalformedData(_ string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.malformed = append(o.malformed, data)
}

func (o *recordingObserver) events() []framer.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]framer.Event(nil), o.chunkSeen...)
}

func newTestStream(observer Observer) *msrpStream {
	f := &streamFactory{observer: observer}
	s := &msrpStream{key: "test", factory: f, observer: observer}
	s.framer = framer.New((*framerLogger)(s))
	f.active = map[string]*msrpStream{"test": s}
	return s
}

func TestStreamReassembledFeedsFramerAndReportsChunks(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStream(obs)

	raw := "MSRP abcd SEND\r\n" +
		"To-Path: msrp://b.example/s1;tcp\r\n" +
		"\r\n" +
		"hi" +
		"\r\n-------abcd$\r\n"

	s.Reassembled([]tcpassembly.Reassembly{
		{Bytes: []byte(raw), Seen: time.Now()},
	})

	events := obs.events()
	require.NotEmpty(t, events)

	var sawStart, sawEnd bool
	for _, ev := range events {
		if ev.Tag == framer.DataStart {
			sawStart = true
			assert.Equal(t, "SEND", ev.Chunk.Method())
		}
		if ev.Tag == framer.DataEnd {
			sawEnd = true
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawEnd)
}

func TestStreamReassembledReportsMalformedData(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStream(obs)

	s.Reassembled([]tcpassembly.Reassembly{
		{Bytes: []byte("not an msrp line\r\n"), Seen: time.Now()},
	})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.NotEmpty(t, obs.malformed)
}

func TestStreamReassembledResetsOnGap(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStream(obs)

	s.Reassembled([]tcpassembly.Reassembly{
		{Bytes: []byte("MSRP abcd SEND\r\nTo-Path: msrp://b.example/s1;tcp\r\n"), Seen: time.Now()},
	})
	before := s.framer

	s.Reassembled([]tcpassembly.Reassembly{
		{Skip: 5, Seen: time.Now()},
	})

	assert.NotSame(t, before, s.framer)
}

func TestReassemblyCompleteForgetsStream(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStream(obs)

	s.ReassemblyComplete()

	assert.Equal(t, 0, s.factory.activeCount())
}
