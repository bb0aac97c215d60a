package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/msrp/internal/capture"
	"firestige.xyz/msrp/internal/log"
	"firestige.xyz/msrp/internal/relay"
	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/framer"
	"firestige.xyz/msrp/pkg/msrp/session"
	"firestige.xyz/msrp/pkg/msrp/transport"
)

var (
	serveListen string
	serveHost   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept inbound MSRP connections and run a session per connection",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address, overrides config listen.address")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host component advertised in this endpoint's MSRP URI")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Listen.Address
	if serveListen != "" {
		addr = serveListen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer ln.Close()
	log.GetLogger().WithField("address", ln.Addr().String()).Infof("msrp: serve listening")

	pool := relay.NewPool(cfg.Relay.Shards)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stopOnSignal(cancel)

	if cfg.Capture.Enabled {
		go runCaptureSink(ctx)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accepting connection: %w", err)
			}
		}
		go serveConn(ctx, conn, pool)
	}
}

func serveConn(ctx context.Context, conn net.Conn, pool *relay.Pool) {
	logger := log.GetLogger().WithField("remote", conn.RemoteAddr().String())

	host, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		host = serveHost
	}
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Capture.Port
	if p, err := parsePort(portStr); err == nil && p != 0 {
		port = p
	}
	local, err := localURI(host, port)
	if err != nil {
		logger.WithError(err).Errorf("msrp: building local URI")
		conn.Close()
		return
	}

	tl, closer, err := trafficLogger()
	if err != nil {
		logger.WithError(err).Errorf("msrp: building traffic logger")
		conn.Close()
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	t := transport.New(conn, local, nil, tl)
	if _, err := t.AcceptBinding(ctx, nil); err != nil {
		logger.WithError(err).Warnf("msrp: path-binding handshake failed")
		t.Close()
		return
	}
	logger.WithField("local_uri", local.String()).Infof("msrp: session bound")

	opts, err := sessionOptionsFromConfig()
	if err != nil {
		logger.WithError(err).Errorf("msrp: invalid session options")
		t.Close()
		return
	}

	onIncoming := func(c *chunk.Chunk) {
		logger.WithField("method_or_code", c.FirstLine()).Infof("msrp: inbound chunk")
	}
	onError := func(err error) {
		logger.WithError(err).Warnf("msrp: session terminated")
	}

	s := session.New(t, onIncoming, onError, opts)
	if err := pool.Assign(local.SessionID, s); err != nil {
		logger.WithError(err).Errorf("msrp: assigning session to relay pool")
		t.Close()
		return
	}
}

func parsePort(s string) (int, error) {
	var p int
	_, err := fmt.Sscanf(s, "%d", &p)
	return p, err
}

func stopOnSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}

func runCaptureSink(ctx context.Context) {
	sink, err := capture.NewSink(capture.Config{
		Enabled:      cfg.Capture.Enabled,
		Interface:    cfg.Capture.Interface,
		Port:         cfg.Capture.Port,
		SnapLen:      cfg.Capture.SnapLen,
		BufferSizeMB: cfg.Capture.BufferSizeMB,
		BPFFilter:    cfg.Capture.BPFFilter,
	}, captureSinkObserver{})
	if err != nil {
		log.GetLogger().WithError(err).Errorf("msrp: capture sink disabled")
		return
	}
	if err := sink.Run(ctx); err != nil && ctx.Err() == nil {
		log.GetLogger().WithError(err).Errorf("msrp: capture sink stopped")
	}
}

type captureSinkObserver struct{}

func (captureSinkObserver) ChunkSeen(srcFlow string, ev framer.Event) {
	log.GetLogger().WithField("flow", srcFlow).Debugf("msrp: capture saw chunk event %v", ev.Tag)
}

func (captureSinkObserver) MalformedData(srcFlow string, data []byte) {
	log.GetLogger().WithField("flow", srcFlow).WithField("len", len(data)).Warnf("msrp: capture saw malformed data")
}
