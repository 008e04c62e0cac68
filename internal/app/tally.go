package app

import (
	"fmt"
	"sort"
	"strings"

	"spyroom/internal/store"
)

// TallyResult is the outcome of counting a round's confirmed votes
type TallyResult struct {
	Counts map[string]int // target id -> vote count
	Max    int            // highest count, 0 if no valid votes
	Top    []string       // targets sharing Max, sorted by id
}

// IsTie reports whether at least two targets share the highest count
func (t TallyResult) IsTie() bool {
	return t.Max > 0 && len(t.Top) >= 2
}

// TallyVotes counts confirmed votes from eligible voters whose target is
// eligible. The result depends only on the set of votes, never on the order
// they were recorded in.
func TallyVotes(doc *store.RoomDoc) TallyResult {
	counts := make(map[string]int)
	for voter, v := range doc.Votes() {
		if !v.Confirmed {
			continue
		}
		if !Eligible(doc, voter) || !Eligible(doc, v.TargetID) {
			continue
		}
		counts[v.TargetID]++
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}

	var top []string
	if max > 0 {
		for target, n := range counts {
			if n == max {
				top = append(top, target)
			}
		}
		sort.Strings(top)
	}

	return TallyResult{Counts: counts, Max: max, Top: top}
}

// Summary renders the tally as a chat-friendly line, most voted first
func (t TallyResult) Summary(doc *store.RoomDoc) string {
	if len(t.Counts) == 0 {
		return "No votes were cast."
	}

	targets := make([]string, 0, len(t.Counts))
	for target := range t.Counts {
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool {
		if t.Counts[targets[i]] != t.Counts[targets[j]] {
			return t.Counts[targets[i]] > t.Counts[targets[j]]
		}
		return targets[i] < targets[j]
	})

	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		name := target
		if p, ok := doc.Player(target); ok {
			name = p.DisplayName
		}
		parts = append(parts, fmt.Sprintf("%s %d", name, t.Counts[target]))
	}
	return "Votes: " + strings.Join(parts, ", ")
}
