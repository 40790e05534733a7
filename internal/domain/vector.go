package domain

import (
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine similarity of two embeddings in
// [-1, 1]. Accumulation runs in float64 to keep long vectors stable.
// A zero-magnitude vector has no direction, so similarity against it
// is 0 rather than an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, NewDomainErrorWithCause(ErrCodeDimensionMismatch,
			"embedding dimensions do not match",
			fmt.Errorf("%d != %d", len(a), len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Float error can push the ratio slightly past the unit interval.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}

	return sim, nil
}
