package entities

import (
	"bytes"
	"encoding/json"
	"sort"
)

// TallyResult is the immutable outcome of one ballot. Every field is fully
// ordered (declaration order, sorted slices, candidate-order matrix) so that
// CanonicalJSON is byte-identical across recomputations from the same votes.
// Timestamps deliberately stay out of the artifact for the same reason.
type TallyResult struct {
	BallotID     string     `json:"ballot_id"`
	Candidates   []string   `json:"candidates"`
	Tiers        [][]string `json:"tiers"`
	Rejected     []string   `json:"rejected"`
	Participants int        `json:"participants"`
	Quorum       int        `json:"quorum"`
	QuorumMet    bool       `json:"quorum_met"`
	UsesBar      bool       `json:"uses_bar"`
	Ballots      []string   `json:"ballots"`
	Pairwise     [][]int    `json:"pairwise"`
}

// CanonicalJSON serializes the artifact persisted by the result publisher.
func (r TallyResult) CanonicalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RejectedBelow lists the candidates placed in tiers strictly below the bar
// tier, sorted. Without a bar tier the rejection set is empty.
func RejectedBelow(tiers [][]string) []string {
	barTier := -1
	for i, tier := range tiers {
		for _, token := range tier {
			if token == BarToken {
				barTier = i
			}
		}
	}
	rejected := make([]string, 0)
	if barTier < 0 {
		return rejected
	}
	for _, tier := range tiers[barTier+1:] {
		rejected = append(rejected, tier...)
	}
	sort.Strings(rejected)
	return rejected
}
