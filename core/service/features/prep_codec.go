package features

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"prep_server/core/domain"
)

// Cache entry layout, little-endian:
//
//	magic   [4]byte "PFCE"
//	version uint32
//	count   uint32
//	seqLen  uint32
//	digest  [32]byte sha256 of the encoded texts, see TextDigest
//	ids     count*seqLen int32
//	masks   count*seqLen uint8
var codecMagic = [4]byte{'P', 'F', 'C', 'E'}

const (
	codecVersion    uint32 = 2
	codecHeaderSize        = 16 + sha256.Size
	bytesPerPos            = 5
)

// ErrCorruptEntry is returned when cached bytes cannot be decoded.
var ErrCorruptEntry = errors.New("corrupt feature cache entry")

// Digest identifies the ordered texts a cache entry was encoded from.
type Digest [sha256.Size]byte

// TextDigest hashes texts in order. Each text is length-prefixed so that
// ["ab", "c"] and ["a", "bc"] differ.
func TextDigest(texts []string) Digest {
	h := sha256.New()
	var n [8]byte
	for _, t := range texts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(t)))
		h.Write(n[:])
		h.Write([]byte(t))
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// EncodeFeatures serializes features together with the digest of their source
// texts. All features must share one length.
func EncodeFeatures(features []domain.EncodedFeature, digest Digest) ([]byte, error) {
	seqLen := 0
	if len(features) > 0 {
		seqLen = features[0].Len()
	}
	for i, f := range features {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if f.Len() != seqLen {
			return nil, fmt.Errorf("feature %d has length %d, want %d", i, f.Len(), seqLen)
		}
	}

	n := len(features) * seqLen
	buf := bytes.NewBuffer(make([]byte, 0, codecHeaderSize+n*bytesPerPos))
	buf.Write(codecMagic[:])
	_ = binary.Write(buf, binary.LittleEndian, [3]uint32{codecVersion, uint32(len(features)), uint32(seqLen)})
	buf.Write(digest[:])

	ids := make([]int32, 0, n)
	masks := make([]uint8, 0, n)
	for _, f := range features {
		for i := range f.InputIDs {
			ids = append(ids, int32(f.InputIDs[i]))
			masks = append(masks, uint8(f.AttentionMask[i]))
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, ids); err != nil {
		return nil, err
	}
	buf.Write(masks)
	return buf.Bytes(), nil
}

// DecodeFeatures is the inverse of EncodeFeatures.
func DecodeFeatures(data []byte) ([]domain.EncodedFeature, Digest, error) {
	var digest Digest
	if len(data) < codecHeaderSize || !bytes.Equal(data[:4], codecMagic[:]) {
		return nil, digest, fmt.Errorf("%w: bad header", ErrCorruptEntry)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != codecVersion {
		return nil, digest, fmt.Errorf("%w: unsupported version %d", ErrCorruptEntry, version)
	}
	count := binary.LittleEndian.Uint32(data[8:12])
	seqLen := binary.LittleEndian.Uint32(data[12:16])
	copy(digest[:], data[16:codecHeaderSize])
	body := data[codecHeaderSize:]

	if seqLen == 0 && count > 0 {
		return nil, digest, fmt.Errorf("%w: %d rows with zero sequence length", ErrCorruptEntry, count)
	}
	// count*seqLen fits in uint64 and is checked against the body before anything
	// is allocated from the header.
	positions := uint64(count) * uint64(seqLen)
	if len(body)%bytesPerPos != 0 || positions != uint64(len(body)/bytesPerPos) {
		return nil, digest, fmt.Errorf("%w: body is %d bytes for %d positions", ErrCorruptEntry, len(body), positions)
	}
	n := int(count) * int(seqLen)

	ids := make([]int32, n)
	if err := binary.Read(bytes.NewReader(body[:n*4]), binary.LittleEndian, ids); err != nil {
		return nil, digest, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	masks := body[n*4:]

	width := int(seqLen)
	out := make([]domain.EncodedFeature, count)
	for i := range out {
		f := domain.EncodedFeature{
			InputIDs:      make([]int, width),
			AttentionMask: make([]int, width),
		}
		for j := 0; j < width; j++ {
			f.InputIDs[j] = int(ids[i*width+j])
			f.AttentionMask[j] = int(masks[i*width+j])
		}
		if err := f.Validate(); err != nil {
			return nil, digest, fmt.Errorf("%w: feature %d: %v", ErrCorruptEntry, i, err)
		}
		out[i] = f
	}
	return out, digest, nil
}
