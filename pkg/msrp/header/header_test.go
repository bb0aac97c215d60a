package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/msrp/pkg/msrp/uri"
)

func TestByteRangeRoundTrip(t *testing.T) {
	end := 5
	total := 10
	cases := []ByteRange{
		{Start: 1, End: &end, Total: &total},
		{Start: 1, End: nil, Total: nil},
	}
	for _, br := range cases {
		text := EncodeByteRange(br)
		got, err := DecodeByteRange(text)
		require.NoError(t, err)
		assert.Equal(t, br.Start, got.Start)
		if br.End == nil {
			assert.Nil(t, got.End)
		} else {
			require.NotNil(t, got.End)
			assert.Equal(t, *br.End, *got.End)
		}
	}
}

func TestByteRangeUnknownWireForm(t *testing.T) {
	br, err := DecodeByteRange("1-*/*")
	require.NoError(t, err)
	assert.Nil(t, br.End)
	assert.Nil(t, br.Total)
	assert.Equal(t, "1-*/*", EncodeByteRange(br))
}

func TestStatusRoundTripNoComment(t *testing.T) {
	s, err := DecodeStatus("000 999")
	require.NoError(t, err)
	assert.Equal(t, 999, s.Code)
	assert.Equal(t, "", s.Comment)
	assert.Equal(t, "000 999", EncodeStatus(s))
}

func TestStatusRejectsBadNamespace(t *testing.T) {
	_, err := DecodeStatus("001 200")
	require.Error(t, err)
}

func TestStatusWithComment(t *testing.T) {
	s, err := DecodeStatus("000 200 OK")
	require.NoError(t, err)
	assert.Equal(t, 200, s.Code)
	assert.Equal(t, "OK", s.Comment)
}

func TestContentDispositionRoundTrip(t *testing.T) {
	cd := ContentDisposition{Disposition: "render", Parameters: map[string]string{"k": "v"}}
	text := EncodeContentDisposition(cd)
	got, err := DecodeContentDisposition(text)
	require.NoError(t, err)
	assert.Equal(t, cd.Disposition, got.Disposition)
	assert.Equal(t, cd.Parameters, got.Parameters)
}

func TestDigestRequiresPrefix(t *testing.T) {
	_, err := DecodeDigest(`realm="example"`)
	require.Error(t, err)
}

func TestDigestRoundTrip(t *testing.T) {
	d := Digest{Parameters: map[string]string{"realm": "example.com", "nonce": "abc"}}
	text := EncodeDigest(d)
	got, err := DecodeDigest(text)
	require.NoError(t, err)
	assert.Equal(t, d.Parameters, got.Parameters)
}

func TestEnumRejectsOutOfSet(t *testing.T) {
	_, err := DecodeEnum(NameFailureReport, "maybe")
	require.Error(t, err)
}

func TestEnumAcceptsAllowedValues(t *testing.T) {
	for _, v := range []string{"yes", "no", "partial"} {
		got, err := DecodeEnum(NameFailureReport, v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestURIListDecodeEncode(t *testing.T) {
	text := "msrp://alice@a.example:2855/s0;tcp msrp://bob@b.example:2855/s1;tcp"
	list, err := DecodeURIList(text)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, text, EncodeURIList(list))
}

func TestHeaderLazyDecodeFromText(t *testing.T) {
	h := FromText(NameByteRange, "1-5/10")
	br, err := h.ByteRangeValue()
	require.NoError(t, err)
	assert.Equal(t, 1, br.Start)
}

func TestHeaderLazyEncodeFromValue(t *testing.T) {
	u, err := uri.Parse("msrp://a.example/s0;tcp")
	require.NoError(t, err)
	h := FromValue(NameToPath, []*uri.URI{u})
	text, err := h.Text()
	require.NoError(t, err)
	assert.Contains(t, text, "msrp://a.example")
}

func TestHeaderRoundTripDecodeEncode(t *testing.T) {
	h := FromText(NameStatus, "000 200 OK")
	_, err := h.Value() // force decode
	require.NoError(t, err)
	text, err := h.Text()
	require.NoError(t, err)
	assert.Equal(t, "000 200 OK", text)
}

func TestUnknownHeaderDefaultsToOpaque(t *testing.T) {
	assert.Equal(t, KindOpaqueString, KindOf("X-Custom-Header"))
}
