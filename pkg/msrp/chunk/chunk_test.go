package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/msrp/pkg/msrp/header"
)

func TestNewRequestRejectsBadTransactionID(t *testing.T) {
	_, err := NewRequest("ab", "SEND")
	require.Error(t, err)
}

func TestNewRequestAcceptsUnderscoreMethod(t *testing.T) {
	// FILE_OFFSET is not RFC-legal but must be accepted (spec.md §9, i).
	c, err := NewRequest("abcd1234", "FILE_OFFSET")
	require.NoError(t, err)
	assert.Equal(t, "FILE_OFFSET", c.Method())
}

func TestFirstLineRequest(t *testing.T) {
	c, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	assert.Equal(t, "MSRP abcd SEND", c.FirstLine())
}

func TestFirstLineResponseWithComment(t *testing.T) {
	c, err := NewResponse("abcd", 200, "OK")
	require.NoError(t, err)
	assert.Equal(t, "MSRP abcd 200 OK", c.FirstLine())
}

func TestFirstLineResponseNoComment(t *testing.T) {
	c, err := NewResponse("abcd", 408, "")
	require.NoError(t, err)
	assert.Equal(t, "MSRP abcd 408", c.FirstLine())
}

func TestEncodeIncludesBlankLineOnlyWithContentType(t *testing.T) {
	c, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	c.AddHeader(header.NameToPath, "msrp://b.example/s1;tcp")
	c.AddHeader(header.NameFromPath, "msrp://a.example/s0;tcp")
	c.Data = []byte("hello")
	c.Contflag = ContinuationComplete
	encoded, err := c.Encode()
	require.NoError(t, err)
	s := string(encoded)
	assert.NotContains(t, s, "\r\n\r\nhello")

	c.AddHeader(header.NameContentType, "text/plain")
	encoded, err = c.Encode()
	require.NoError(t, err)
	s = string(encoded)
	assert.Contains(t, s, "\r\n\r\nhello")
}

func TestEncodeEndLine(t *testing.T) {
	c, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	c.Contflag = ContinuationComplete
	encoded, err := c.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "\r\n-------abcd$\r\n")
}

func TestVerifyHeadersRequiresPaths(t *testing.T) {
	c, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	require.Error(t, c.VerifyHeaders())

	c.AddHeader(header.NameToPath, "msrp://b.example/s1;tcp")
	c.AddHeader(header.NameFromPath, "msrp://a.example/s0;tcp")
	require.NoError(t, c.VerifyHeaders())
}

func TestVerifyHeadersSurfacesGrammarViolation(t *testing.T) {
	c, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	c.AddHeader(header.NameToPath, "msrp://b.example/s1;tcp")
	c.AddHeader(header.NameFromPath, "msrp://a.example/s0;tcp")
	c.AddHeader(header.NameByteRange, "not-a-byte-range")
	require.Error(t, c.VerifyHeaders())
}

func TestHeaderOrderingCanonical(t *testing.T) {
	c, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	c.AddHeader(header.NameContentType, "text/plain")
	c.AddHeader(header.NameFromPath, "msrp://a.example/s0;tcp")
	c.AddHeader(header.NameToPath, "msrp://b.example/s1;tcp")
	c.AddHeader(header.NameMessageID, "m1")

	ordered := c.Headers().Ordered()
	names := make([]string, len(ordered))
	for i, h := range ordered {
		names[i] = h.Name
	}
	assert.Equal(t, []string{
		header.NameToPath, header.NameFromPath, header.NameMessageID, header.NameContentType,
	}, names)
}

func TestSetHeaderReplacesExisting(t *testing.T) {
	c, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	c.AddHeader(header.NameMessageID, "m1")
	c.SetHeader(header.NameMessageID, "m2")
	h, ok := c.Headers().Get(header.NameMessageID)
	require.True(t, ok)
	text, err := h.Text()
	require.NoError(t, err)
	assert.Equal(t, "m2", text)
	assert.Equal(t, 1, c.Headers().Len())
}

func TestChunkEquality(t *testing.T) {
	a, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	a.AddHeader(header.NameMessageID, "m1")
	a.Data = []byte("x")

	b, err := NewRequest("abcd", "SEND")
	require.NoError(t, err)
	b.AddHeader(header.NameMessageID, "m1")
	b.Data = []byte("x")

	assert.True(t, a.Equal(b))

	b.Data = []byte("y")
	assert.False(t, a.Equal(b))
}
