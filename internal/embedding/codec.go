// Package embedding converts between text embeddings, their fixed-width
// binary storage form, and cosine similarity scores. Vectors are handled as
// float64 in memory and packed as IEEE-754 float32 little-endian on disk,
// matching the precision the embedding APIs deliver.
package embedding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const bytesPerFloat32 = 4

// ErrDimensionMismatch indicates two vectors of different lengths were
// compared, typically after switching embedding models. Callers treat the
// offending stored vector as corrupt and skip it.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ToBytes packs a vector as float32 little-endian. FromBytes(ToBytes(v))
// reproduces v exactly, modulo the precision already lost by storing as
// single precision. An empty vector packs to an empty slice.
func ToBytes(vec []float64) []byte {
	buf := make([]byte, len(vec)*bytesPerFloat32)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], math.Float32bits(float32(f)))
	}
	return buf
}

// FromBytes unpacks a vector previously produced by ToBytes.
func FromBytes(buf []byte) ([]float64, error) {
	if len(buf)%bytesPerFloat32 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of %d: %w",
			len(buf), bytesPerFloat32, ErrDimensionMismatch)
	}
	vec := make([]float64, len(buf)/bytesPerFloat32)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(buf[i*bytesPerFloat32:])
		vec[i] = float64(math.Float32frombits(bits))
	}
	return vec, nil
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|) in [-1, 1]. Vectors of
// different lengths yield ErrDimensionMismatch. A zero-norm operand yields
// exactly 0 rather than NaN.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
