package storage

import (
	"cmp"
	"math"
	"slices"
)

// RankMatches orders matches by score descending. Equal scores are ordered by
// chunk ordinal ascending so retrieval is deterministic.
func RankMatches(matches []VectorMatch) {
	slices.SortStableFunc(matches, func(a, b VectorMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.Ordinal, b.Record.Ordinal)
	})
}

// TopK ranks matches and truncates them to at most k entries.
func TopK(matches []VectorMatch, k int) []VectorMatch {
	RankMatches(matches)
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Zero vectors and vectors of different length score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
