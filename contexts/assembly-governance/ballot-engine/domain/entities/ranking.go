package entities

import (
	"sort"
	"strings"

	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
)

// BarToken is the reserved token of the rejection pseudo-candidate. It is
// never stored as a candidate row but is addressable in rankings whenever the
// ballot enables the bar.
const BarToken = "_bar_"

// Ranking is an ordered list of preference tiers over candidate tokens.
// Earlier tiers are strictly preferred to later ones; tokens sharing a tier
// are tied. The wire format is tiers joined by ">" with "=" inside a tier,
// e.g. "2>3>_bar_>1=4".
type Ranking [][]string

// ParseRanking decodes the wire expression. Shape errors (empty tiers, empty
// tokens, duplicates) fail with ErrInvalidRanking; completeness against a
// candidate set is a separate concern, see ValidateAgainst.
func ParseRanking(expr string) (Ranking, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, domainerrors.ErrInvalidRanking
	}
	seen := make(map[string]struct{})
	tiers := strings.Split(expr, ">")
	ranking := make(Ranking, 0, len(tiers))
	for _, tier := range tiers {
		parts := strings.Split(tier, "=")
		tokens := make([]string, 0, len(parts))
		for _, part := range parts {
			token := strings.TrimSpace(part)
			if token == "" {
				return nil, domainerrors.ErrInvalidRanking
			}
			if _, dup := seen[token]; dup {
				return nil, domainerrors.ErrInvalidRanking
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
		ranking = append(ranking, tokens)
	}
	return ranking, nil
}

// ValidateAgainst checks completeness: every candidate token appears exactly
// once across all tiers, the bar token exactly once iff the ballot uses it,
// and nothing else appears at all.
func (r Ranking) ValidateAgainst(candidateTokens []string, usesBar bool) error {
	expected := make(map[string]struct{}, len(candidateTokens)+1)
	for _, token := range candidateTokens {
		expected[token] = struct{}{}
	}
	if usesBar {
		expected[BarToken] = struct{}{}
	}

	for _, tier := range r {
		for _, token := range tier {
			if _, ok := expected[token]; !ok {
				return domainerrors.ErrInvalidRanking
			}
			delete(expected, token)
		}
	}
	if len(expected) != 0 {
		return domainerrors.ErrInvalidRanking
	}
	return nil
}

// Normalize returns the canonical form: tier order preserved, tokens inside
// each tier sorted. Cast/get round trips and the result artifact always use
// this form.
func (r Ranking) Normalize() Ranking {
	normalized := make(Ranking, len(r))
	for i, tier := range r {
		sorted := append([]string(nil), tier...)
		sort.Strings(sorted)
		normalized[i] = sorted
	}
	return normalized
}

// String encodes the ranking back into the wire format.
func (r Ranking) String() string {
	tiers := make([]string, len(r))
	for i, tier := range r {
		tiers[i] = strings.Join(tier, "=")
	}
	return strings.Join(tiers, ">")
}

// TierOf maps each token to its tier index. Lower is better.
func (r Ranking) TierOf() map[string]int {
	position := make(map[string]int)
	for tier, tokens := range r {
		for _, token := range tokens {
			position[token] = tier
		}
	}
	return position
}
