package features

import (
	"encoding/binary"
	"testing"

	"prep_server/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	in := []domain.EncodedFeature{
		{InputIDs: []int{101, 2023, 102, 0}, AttentionMask: []int{1, 1, 1, 0}},
		{InputIDs: []int{101, 30521, 1999, 102}, AttentionMask: []int{1, 1, 1, 1}},
	}
	digest := TextDigest([]string{"this", "tokenizer"})

	data, err := EncodeFeatures(in, digest)
	require.NoError(t, err)

	out, gotDigest, err := DecodeFeatures(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, digest, gotDigest)

	again, err := EncodeFeatures(out, gotDigest)
	require.NoError(t, err)
	assert.Equal(t, data, again, "re-encoding must be bit-for-bit identical")
}

func TestCodecEmpty(t *testing.T) {
	data, err := EncodeFeatures(nil, TextDigest(nil))
	require.NoError(t, err)

	out, _, err := DecodeFeatures(data)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCodecRejectsRaggedInput(t *testing.T) {
	_, err := EncodeFeatures([]domain.EncodedFeature{
		{InputIDs: []int{1, 2}, AttentionMask: []int{1, 1}},
		{InputIDs: []int{1}, AttentionMask: []int{1}},
	}, Digest{})
	assert.Error(t, err)
}

func TestTextDigest(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		same bool
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, true},
		{"reordered", []string{"a", "b"}, []string{"b", "a"}, false},
		{"split boundary", []string{"ab", "c"}, []string{"a", "bc"}, false},
		{"extra empty row", []string{"a"}, []string{"a", ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, TextDigest(tt.a) == TextDigest(tt.b))
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	good, err := EncodeFeatures([]domain.EncodedFeature{{InputIDs: []int{1, 2}, AttentionMask: []int{1, 0}}}, Digest{})
	require.NoError(t, err)

	withHeader := func(version, count, seqLen uint32) []byte {
		out := append([]byte(nil), good[:codecHeaderSize]...)
		binary.LittleEndian.PutUint32(out[4:8], version)
		binary.LittleEndian.PutUint32(out[8:12], count)
		binary.LittleEndian.PutUint32(out[12:16], seqLen)
		return out
	}
	badMask := append([]byte(nil), good...)
	badMask[len(badMask)-1] = 7

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("NOPE"), good[4:]...)},
		{"truncated", good[:len(good)-1]},
		{"old version", append(withHeader(1, 1, 2), good[codecHeaderSize:]...)},
		{"bad version", append(withHeader(9, 1, 2), good[codecHeaderSize:]...)},
		{"bad mask", badMask},
		{"zero seq len with rows", withHeader(codecVersion, 1<<31, 0)},
		{"oversized header counts", withHeader(codecVersion, 1<<31, 1<<31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFeatures(tt.data)
			assert.ErrorIs(t, err, ErrCorruptEntry)
		})
	}
}
