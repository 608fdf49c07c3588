package storage

import (
	"cmp"
	"math"
	"slices"

	"github.com/poiesic/groundwork/core"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is zero or their lengths differ.
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

// RankMatches sorts matches by score descending, breaking ties by id, and
// truncates to topK.
func RankMatches(matches []*core.Match, topK int) []*core.Match {
	slices.SortFunc(matches, func(a, b *core.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
