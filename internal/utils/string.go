package utils

import (
	"context"
)

// FindClosestString returns the candidate with the smallest edit distance to s, candidates differing
// by more than maxDifferences are ignored.
func FindClosestString(ctx context.Context, candidates []string, s string, maxDifferences int) (closest string, distance int, found bool) {
	target := []rune(s)
	distance = maxDifferences + 1

	for _, candidate := range candidates {
		if IsContextDone(ctx) {
			break
		}
		d := levenshtein([]rune(candidate), target)
		if d < distance {
			closest, distance, found = candidate, d, true
		}
	}

	if !found {
		distance = 0
	}
	return
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
