package cache

import "math"

// simEpsilon is the float tolerance for similarity tie-breaking: entries
// within it of the maximum are considered tied and the most recently
// created one wins.
const simEpsilon = 1e-6

// normalize returns a unit-length copy of v. Vectors are normalized once
// at insertion so the runtime comparison is a plain dot product.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// dot returns the dot product of equal-length vectors, which for unit
// vectors is their cosine similarity.
func dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
