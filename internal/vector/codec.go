package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes an embedding vector as consecutive little-endian
// float32 words. The blob length is always 4*len(v).
func Encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode parses a blob produced by Encode. dim is the expected vector
// dimension; blobs of any other length are rejected so a corrupted or
// foreign-dimension record can never enter the matching path.
func Decode(blob []byte, dim int) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	if len(blob) != 4*dim {
		return nil, fmt.Errorf("embedding blob is %d bytes, want %d (dim %d)", len(blob), 4*dim, dim)
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
