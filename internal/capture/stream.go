package capture

import (
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/tcpassembly"

	"firestige.xyz/msrp/internal/log"
	"firestige.xyz/msrp/pkg/msrp/framer"
)

// streamFactory builds one msrpStream per TCP half-connection that
// tcpassembly hands it, grounded on the teacher's streamFactory/readerStream
// split (internal/otus/capture/codec/assembly_tcp.go) but feeding a real
// framer.Framer instead of leaving decode unimplemented.
type streamFactory struct {
	port     layers.TCPPort
	observer Observer

	mu     sync.Mutex
	active map[string]*msrpStream
	errs   uint64
}

func (f *streamFactory) NewStream(net, transport gopacket.Flow) tcpassembly.Stream {
	key := net.String() + ":" + transport.String()
	s := &msrpStream{key: key, factory: f, observer: f.observer}
	s.framer = framer.New((*framerLogger)(s))

	f.mu.Lock()
	if f.active == nil {
		f.active = make(map[string]*msrpStream)
	}
	f.active[key] = s
	f.mu.Unlock()

	return s
}

func (f *streamFactory) forget(key string) {
	f.mu.Lock()
	delete(f.active, key)
	f.mu.Unlock()
}

func (f *streamFactory) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

// msrpStream feeds one TCP direction's reassembled bytes through a framer,
// reporting events to the sink's Observer. It never writes back, never
// tracks transaction state, and discards the chunk body.
type msrpStream struct {
	key      string
	factory  *streamFactory
	observer Observer
	framer   *framer.Framer
}

// Reassembled implements tcpassembly.Stream.
func (s *msrpStream) Reassembled(reassembly []tcpassembly.Reassembly) {
	for _, r := range reassembly {
		if r.Skip != 0 {
			// A gap means whatever framer state we held is no longer
			// trustworthy; drop it and start clean on the next chunk.
			s.framer = framer.New((*framerLogger)(s))
			continue
		}
		if len(r.Bytes) == 0 {
			continue
		}
		events, err := s.framer.Feed(r.Bytes)
		if err != nil {
			atomic.AddUint64(&s.factory.errs, 1)
			log.GetLogger().WithError(err).Debugf("capture: framer error on stream %s", s.key)
			s.framer = framer.New((*framerLogger)(s))
			continue
		}
		if s.observer == nil {
			continue
		}
		for _, ev := range events {
			s.observer.ChunkSeen(s.key, ev)
		}
	}
}

// ReassemblyComplete implements tcpassembly.Stream.
func (s *msrpStream) ReassemblyComplete() {
	s.factory.forget(s.key)
}

// framerLogger adapts a msrpStream to framer.Logger, routing malformed
// input to the sink's Observer instead of just logging it.
type framerLogger msrpStream

func (l *framerLogger) Debugf(format string, args ...any) {
	log.GetLogger().Debugf(format, args...)
}

func (l *framerLogger) Warnf(format string, args ...any) {
	log.GetLogger().Warnf(format, args...)
}

func (l *framerLogger) IllegalData(data []byte) {
	if l.observer != nil {
		l.observer.MalformedData(l.key, data)
	}
}
