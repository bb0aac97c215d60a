package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/tcpassembly"

	"firestige.xyz/msrp/internal/log"
	"firestige.xyz/msrp/pkg/msrp/framer"
)

// Observer receives diagnostic events from a Sink. All methods may be
// called concurrently from the Sink's internal goroutines.
type Observer interface {
	ChunkSeen(srcFlow string, ev framer.Event)
	MalformedData(srcFlow string, data []byte)
}

// Stats is a snapshot of a Sink's lifetime counters.
type Stats struct {
	PacketsReceived  uint64
	FramerErrors     uint64
	ActiveStreams    int
	HandleSocketLoss uint64
}

// Sink opens an AF_PACKET capture on Config.Interface and reassembles TCP
// streams addressed to Config.Port, feeding their payload through a
// framer.Framer per direction. It never writes to the wire and never
// participates in a session; it only observes.
type Sink struct {
	cfg      Config
	observer Observer

	mu      sync.Mutex
	handle  *handle
	asm     *tcpassembly.Assembler
	factory *streamFactory
}

// NewSink builds a Sink from cfg. It does not open the capture handle
// until Run is called.
func NewSink(cfg Config, observer Observer) (*Sink, error) {
	cfg = cfg.withDefaults()
	if !cfg.Enabled {
		return nil, fmt.Errorf("capture: sink is disabled")
	}
	if cfg.Interface == "" {
		return nil, fmt.Errorf("capture: interface is required")
	}
	return &Sink{cfg: cfg, observer: observer}, nil
}

// Run opens the capture handle and reads until ctx is cancelled. Packet
// read errors are logged at debug level and reading continues.
func (s *Sink) Run(ctx context.Context) error {
	h, err := openHandle(s.cfg)
	if err != nil {
		return err
	}
	defer h.close()

	factory := &streamFactory{port: layers.TCPPort(s.cfg.Port), observer: s.observer}
	pool := tcpassembly.NewStreamPool(factory)
	asm := tcpassembly.NewAssembler(pool)

	s.mu.Lock()
	s.handle, s.asm, s.factory = h, asm, factory
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.StreamIdle)
	defer ticker.Stop()

	var eth layers.Ethernet
	var ip4 layers.IPv4
	var tcp layers.TCP
	var payload gopacket.Payload
	decoded := make([]gopacket.LayerType, 0, 4)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &ip4, &tcp, &payload)

	for {
		select {
		case <-ctx.Done():
			asm.FlushAll()
			return ctx.Err()
		case now := <-ticker.C:
			asm.FlushOlderThan(now.Add(-s.cfg.StreamIdle))
		default:
		}

		data, ci, err := h.readPacket()
		if err != nil {
			log.GetLogger().WithError(err).Debugf("capture: read packet")
			continue
		}
		if err := parser.DecodeLayers(data, &decoded); err != nil {
			continue
		}
		hasTCP := false
		for _, lt := range decoded {
			if lt == layers.LayerTypeTCP {
				hasTCP = true
				break
			}
		}
		if !hasTCP || (tcp.SrcPort != factory.port && tcp.DstPort != factory.port) {
			continue
		}
		asm.AssembleWithTimestamp(ip4.NetworkFlow(), &tcp, ci.Timestamp)
	}
}

// Stats returns a snapshot of the sink's counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	if s.handle != nil {
		hs := s.handle.socketStats()
		st.PacketsReceived = hs.PacketsReceived
		st.HandleSocketLoss = hs.Errors
	}
	if s.factory != nil {
		st.ActiveStreams = s.factory.activeCount()
		st.FramerErrors = atomic.LoadUint64(&s.factory.errs)
	}
	return st
}
