package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/msrp/internal/log"
	"firestige.xyz/msrp/internal/signaling"
	"firestige.xyz/msrp/internal/tracing"
	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/session"
	"firestige.xyz/msrp/pkg/msrp/transport"
	"firestige.xyz/msrp/pkg/msrp/uri"
)

var (
	dialRemotePath []string
	dialSDPFile    string
	dialMessage    string
)

var dialCmd = &cobra.Command{
	Use:   "dial <host:port>",
	Short: "Open an MSRP connection to a peer and bind a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDial,
}

func init() {
	dialCmd.Flags().StringSliceVar(&dialRemotePath, "remote-path", nil,
		"remote MSRP path URIs, nearest hop first (mutually exclusive with --sdp)")
	dialCmd.Flags().StringVar(&dialSDPFile, "sdp", "",
		"read the remote path and a=setup role from an SDP body file")
	dialCmd.Flags().StringVar(&dialMessage, "message", "",
		"send this text as a single SEND chunk once bound, then wait for its response")
}

func runDial(cmd *cobra.Command, args []string) error {
	remotePath, err := resolveRemotePath()
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", args[0])
	if err != nil {
		return fmt.Errorf("dialing %s: %w", args[0], err)
	}
	defer conn.Close()

	host, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		host = serveHost
	}
	port, _ := parsePort(portStr)
	local, err := localURI(host, port)
	if err != nil {
		return err
	}

	tl, closer, err := trafficLogger()
	if err != nil {
		return fmt.Errorf("building traffic logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t := transport.New(conn, local, nil, tl)
	if err := t.Bind(ctx, remotePath); err != nil {
		return fmt.Errorf("binding path: %w", err)
	}
	log.GetLogger().WithField("remote_uri", t.RemoteURI.String()).Infof("msrp: bound to peer")

	opts, err := sessionOptionsFromConfig()
	if err != nil {
		return err
	}

	transactions := tracing.NewTransactionManager()
	transactions.RegisterListener(tracing.NewSegmentReporter("msrp-dial", local.String(), nil))

	done := make(chan struct{})
	onIncoming := func(c *chunk.Chunk) {
		log.GetLogger().WithField("method_or_code", c.FirstLine()).Infof("msrp: inbound chunk")
	}
	onError := func(err error) {
		log.GetLogger().WithError(err).Warnf("msrp: session terminated")
		close(done)
	}

	s := session.New(t, onIncoming, onError, opts)
	s.Start()
	defer s.Shutdown(true)

	if dialMessage != "" {
		if err := sendMessage(t, s, transactions, dialMessage); err != nil {
			return err
		}
		return nil
	}

	return readStdinAsMessages(t, s, transactions, done)
}

// resolveRemotePath builds the remote path either from --remote-path or
// from the a=path line of an SDP body read via --sdp.
func resolveRemotePath() ([]*uri.URI, error) {
	if dialSDPFile != "" {
		data, err := os.ReadFile(dialSDPFile)
		if err != nil {
			return nil, fmt.Errorf("reading SDP file: %w", err)
		}
		ep, err := signaling.FromBody(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing SDP body: %w", err)
		}
		return ep.Path, nil
	}
	if len(dialRemotePath) == 0 {
		return nil, fmt.Errorf("one of --remote-path or --sdp is required")
	}
	path := make([]*uri.URI, 0, len(dialRemotePath))
	for _, raw := range dialRemotePath {
		u, err := uri.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing remote path URI %q: %w", raw, err)
		}
		path = append(path, u)
	}
	return path, nil
}

func sendMessage(t *transport.Transport, s *session.Session, transactions *tracing.TransactionManager, text string) error {
	result := make(chan error, 1)
	data := []byte(text)
	end := len(data)
	c, err := t.MakeSendRequest("", data, 1, &end, &end)
	if err != nil {
		return err
	}

	transactions.TrackRequest(c, t.RemoteURI.String())
	if err := s.SendChunk(c, func(resp *chunk.Chunk, err error) {
		if err != nil {
			result <- err
			return
		}
		transactions.HandleResponse(resp)
		log.GetLogger().WithField("status", resp.FirstLine()).Infof("msrp: send acknowledged")
		result <- nil
	}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-time.After(35 * time.Second):
		return fmt.Errorf("timed out waiting for response")
	}
}

// readStdinAsMessages sends each line of stdin as a SEND chunk until EOF or
// the session terminates.
func readStdinAsMessages(t *transport.Transport, s *session.Session, transactions *tracing.TransactionManager, done chan struct{}) error {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := sendMessage(t, s, transactions, line); err != nil {
				log.GetLogger().WithError(err).Warnf("msrp: send failed")
			}
		}
	}
}
