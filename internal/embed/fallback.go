package embed

import "math"

// DeterministicVector expands the text's bytes into a fixed-dimension,
// L2-normalized vector. It is stable across processes, so a degraded
// embedding service still yields consistent (if meaningless) neighbors.
func DeterministicVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for i := 0; i < len(text); i++ {
		vec[i%dims] += float32(text[i]%23) / 23.0
	}
	return Normalize(vec)
}

// Normalize scales a vector to unit length. Zero vectors pass through.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	inv := float32(1 / norm)
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
