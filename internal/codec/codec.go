// Package codec implements the little-endian fixed-width binary
// packing used to serialize representation vectors for storage, plus
// the content-hash function the catalog keys records on.
package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/omertheroot/correlf/internal/apperr"
)

const (
	float64Width = 8
	int32Width   = 4
)

// PackDoubles writes each value as 8 little-endian bytes (IEEE-754).
func PackDoubles(values []float64) []byte {
	out := make([]byte, len(values)*float64Width)
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*float64Width:], math.Float64bits(v))
	}
	return out
}

// UnpackDoubles is the inverse of PackDoubles. It fails with
// apperr.InvalidEncoding if the byte length is not a multiple of 8.
func UnpackDoubles(data []byte) ([]float64, error) {
	if len(data)%float64Width != 0 {
		return nil, apperr.New(apperr.InvalidEncoding, "double blob length is not a multiple of 8 bytes")
	}
	n := len(data) / float64Width
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint64(data[i*float64Width:])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}

// PackInt32 writes each value as 4 little-endian bytes.
func PackInt32(values []int32) []byte {
	out := make([]byte, len(values)*int32Width)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*int32Width:], uint32(v))
	}
	return out
}

// UnpackInt32 is the inverse of PackInt32. It fails with
// apperr.InvalidEncoding if the byte length is not a multiple of 4.
func UnpackInt32(data []byte) ([]int32, error) {
	if len(data)%int32Width != 0 {
		return nil, apperr.New(apperr.InvalidEncoding, "int32 blob length is not a multiple of 4 bytes")
	}
	n := len(data) / int32Width
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*int32Width:]))
	}
	return out, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data, 64
// characters wide.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
