package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/uri"
)

func newPipe() (Conn, Conn) {
	a, b := net.Pipe()
	return a, b
}

type nopLogger struct{}

func (nopLogger) SentChunk(c *chunk.Chunk)       {}
func (nopLogger) ReceivedChunk(c *chunk.Chunk)   {}
func (nopLogger) ReceivedIllegalData(data []byte) {}
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}

func mustURI(t *testing.T, s string) *uri.URI {
	t.Helper()
	u, err := uri.Parse(s)
	require.NoError(t, err)
	return u
}

func TestWriteThenReadChunkRoundTrips(t *testing.T) {
	a, b := newPipe()
	localA := mustURI(t, "msrp://a.example:2855/s0;tcp")
	localB := mustURI(t, "msrp://b.example:2855/s1;tcp")

	tA := New(a, localA, nil, nopLogger{})
	tB := New(b, localB, nil, nopLogger{})
	defer tA.Close()
	defer tB.Close()

	tA.RemoteURI = localB
	req, err := tA.MakeSendRequest("msg1", []byte("hello"), 1, nil, nil)
	require.NoError(t, err)

	go func() {
		_ = tA.WriteChunk(req)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := tB.ReadChunk(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SEND", got.Method())
	assert.Equal(t, "hello", string(got.Data))
}

func TestBindAndAcceptBinding(t *testing.T) {
	a, b := newPipe()
	localA := mustURI(t, "msrp://a.example:2855/s0;tcp")
	localB := mustURI(t, "msrp://b.example:2855/s1;tcp")

	tA := New(a, localA, nil, nopLogger{})
	tB := New(b, localB, nil, nopLogger{})
	defer tA.Close()
	defer tB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tA.Bind(ctx, []*uri.URI{localB})
	}()

	extra, err := tB.AcceptBinding(ctx, []*uri.URI{localA})
	require.NoError(t, err)
	assert.Nil(t, extra)

	require.NoError(t, <-errCh)
	assert.True(t, localB.Equal(tA.RemoteURI))
}

func TestReadChunkReturnsEOFOnConnectionClose(t *testing.T) {
	a, b := newPipe()
	localA := mustURI(t, "msrp://a.example:2855/s0;tcp")

	tB := New(b, mustURI(t, "msrp://b.example:2855/s1;tcp"), nil, nopLogger{})
	defer tB.Close()

	_ = a.Close()
	_ = localA

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := tB.ReadChunk(ctx)
	require.Error(t, err)
}

func TestMakeSendRequestLargeMessageUsesStarEnd(t *testing.T) {
	a, b := newPipe()
	defer a.Close()
	defer b.Close()
	localA := mustURI(t, "msrp://a.example:2855/s0;tcp")
	tA := New(a, localA, nil, nopLogger{})
	defer tA.Close()
	tA.RemoteURI = mustURI(t, "msrp://b.example:2855/s1;tcp")

	total := 4096
	data := make([]byte, 1024)
	req, err := tA.MakeSendRequest("m1", data, 1, nil, &total)
	require.NoError(t, err)

	h, ok := req.Headers().Get("Byte-Range")
	require.True(t, ok)
	br, err := h.ByteRangeValue()
	require.NoError(t, err)
	assert.Nil(t, br.End)
	require.NotNil(t, br.Total)
	assert.Equal(t, total, *br.Total)
	assert.Equal(t, byte(chunk.ContinuationMore), req.Contflag)
}

func TestMakeSendRequestCompleteMessage(t *testing.T) {
	a, b := newPipe()
	defer a.Close()
	defer b.Close()
	localA := mustURI(t, "msrp://a.example:2855/s0;tcp")
	tA := New(a, localA, nil, nopLogger{})
	defer tA.Close()
	tA.RemoteURI = mustURI(t, "msrp://b.example:2855/s1;tcp")

	data := []byte("hello")
	total := len(data)
	req, err := tA.MakeSendRequest("m1", data, 1, nil, &total)
	require.NoError(t, err)
	assert.Equal(t, byte(chunk.ContinuationComplete), req.Contflag)
}
