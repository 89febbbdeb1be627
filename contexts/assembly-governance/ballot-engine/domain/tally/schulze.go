// Package tally implements the pairwise-preference ranking used to close a
// ballot. Given the full set of anonymized rankings it produces a strict
// order of candidate tiers (ties inside a tier) via the Schulze method:
// pairwise counts, strongest-path closure, then peeling off the undominated
// candidates tier by tier.
package tally

import (
	"sort"

	"agora/contexts/assembly-governance/ballot-engine/domain/entities"
)

// Compute ranks candidates from ballots. The candidates slice fixes the
// matrix axis order; the returned tiers contain lexicographically sorted
// tokens so the outcome is independent of ballot iteration order.
func Compute(candidates []string, ballots []entities.Ranking) ([][]string, [][]int) {
	n := len(candidates)
	index := make(map[string]int, n)
	for i, token := range candidates {
		index[token] = i
	}

	d := newMatrix(n)
	for _, ballot := range ballots {
		tierOf := ballot.TierOf()
		for a := 0; a < n; a++ {
			ra, okA := tierOf[candidates[a]]
			for b := a + 1; b < n; b++ {
				rb, okB := tierOf[candidates[b]]
				switch {
				case !okA || !okB:
					// Defensive: validation guarantees completeness.
				case ra < rb:
					d[a][b]++
				case rb < ra:
					d[b][a]++
				}
			}
		}
	}

	p := strongestPaths(d)

	remaining := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		remaining[i] = struct{}{}
	}

	tiers := make([][]string, 0, n)
	for len(remaining) > 0 {
		top := make([]int, 0, len(remaining))
		for a := range remaining {
			undominated := true
			for b := range remaining {
				if b != a && p[b][a] > p[a][b] {
					undominated = false
					break
				}
			}
			if undominated {
				top = append(top, a)
			}
		}
		if len(top) == 0 {
			// The Schulze beats relation is acyclic, so this cannot happen;
			// fold everything left into one tier rather than loop forever.
			for a := range remaining {
				top = append(top, a)
			}
		}
		tier := make([]string, 0, len(top))
		for _, a := range top {
			tier = append(tier, candidates[a])
			delete(remaining, a)
		}
		sort.Strings(tier)
		tiers = append(tiers, tier)
	}
	return tiers, d
}

// strongestPaths computes the widest-path closure p over the pairwise matrix:
// p[a][b] starts at d[a][b] where a pairwise-beats b, then is relaxed through
// every intermediate candidate with max(min(...)).
func strongestPaths(d [][]int) [][]int {
	n := len(d)
	p := newMatrix(n)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			if a != b && d[a][b] > d[b][a] {
				p[a][b] = d[a][b]
			}
		}
	}
	for c := 0; c < n; c++ {
		for a := 0; a < n; a++ {
			if a == c {
				continue
			}
			for b := 0; b < n; b++ {
				if b == a || b == c {
					continue
				}
				through := p[a][c]
				if p[c][b] < through {
					through = p[c][b]
				}
				if through > p[a][b] {
					p[a][b] = through
				}
			}
		}
	}
	return p
}

func newMatrix(n int) [][]int {
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	return m
}
