package capture

import (
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// handleStats mirrors the upstream TPacket packet counter plus our own
// count of packet read errors.
type handleStats struct {
	PacketsReceived uint64
	Errors          uint64
}

// handle wraps a single AF_PACKET TPacket ring, opened for one interface.
type handle struct {
	tpacket *afpacket.TPacket
	stats   handleStats
}

func openHandle(cfg Config) (*handle, error) {
	frameSize, blockSize, numBlocks, err := computeRingSizes(cfg.BufferSizeMB*1024*1024, cfg.SnapLen)
	if err != nil {
		return nil, fmt.Errorf("capture: computing ring sizes: %w", err)
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("capture: opening AF_PACKET socket on %s: %w", cfg.Interface, err)
	}

	if cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, cfg.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("capture: setting fanout: %w", err)
		}
	}

	if cfg.BPFFilter != "" {
		if err := setBPF(tp, cfg.BPFFilter, cfg.SnapLen); err != nil {
			tp.Close()
			return nil, err
		}
	}

	return &handle{tpacket: tp}, nil
}

// computeRingSizes ports the page-aligned frame/block sizing otus-packet's
// capture handle and internal/source/afpacket both derive from snaplen and
// the requested ring buffer size.
func computeRingSizes(bufferSize, snapLen int) (frameSize, blockSize, numBlocks int, err error) {
	pageSize := os.Getpagesize()
	if snapLen < pageSize {
		frameSize = pageSize / (pageSize / snapLen)
	} else {
		frameSize = (snapLen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	numBlocks = bufferSize / blockSize
	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("buffer size too small for frame size %d", frameSize)
	}
	return frameSize, blockSize, numBlocks, nil
}

func setBPF(tp *afpacket.TPacket, filter string, snapLen int) error {
	instructions, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return fmt.Errorf("capture: compiling BPF filter %q: %w", filter, err)
	}
	raw := make([]bpf.RawInstruction, len(instructions))
	for i, inst := range instructions {
		raw[i] = bpf.RawInstruction{Op: inst.Code, Jt: inst.Jt, Jf: inst.Jf, K: inst.K}
	}
	return tp.SetBPF(raw)
}

func (h *handle) readPacket() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := h.tpacket.ReadPacketData()
	if err != nil {
		h.stats.Errors++
		return nil, ci, err
	}
	h.stats.PacketsReceived++
	return data, ci, nil
}

func (h *handle) close() {
	h.tpacket.Close()
}

func (h *handle) socketStats() handleStats {
	stats, err := h.tpacket.Stats()
	if err != nil {
		return h.stats
	}
	h.stats.PacketsReceived = uint64(stats.Packets)
	return h.stats
}
