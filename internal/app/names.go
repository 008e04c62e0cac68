package app

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"spyroom/internal/domain"
	"spyroom/internal/store"
)

var nameSuffixRe = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// NormalizeName trims the name and collapses internal whitespace
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// nameKey is the case-folded claim key for a display name
func nameKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}

// baseName strips a trailing " (n)" numbering suffix
func baseName(name string) string {
	if m := nameSuffixRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// ClaimDisplayName claims a unique display name for the joining player: the
// requested name if its normalized key is unclaimed or already self-owned,
// otherwise the first free "name (2)", "name (3)", … variant.
func ClaimDisplayName(doc *store.RoomDoc, self, requested string) (string, error) {
	requested = NormalizeName(requested)
	if requested == "" {
		return "", domain.ErrEmptyName
	}

	for i := 0; ; i++ {
		candidate := requested
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)", requested, i+1)
		}
		owner, claimed := doc.NameOwner(nameKey(candidate))
		if !claimed || owner == self {
			doc.ClaimName(nameKey(candidate), self)
			return candidate, nil
		}
	}
}

// ReconcileName re-derives this player's desired name among the group
// sharing its base name, ordered by join timestamp then id: the i-th
// earliest holder is named base (i=0) or "base (i+1)". When the current
// name differs, the old claim is released and the new one claimed, which
// converges the group to gap-free numbering after departures.
func ReconcileName(doc *store.RoomDoc, self string) {
	me, ok := doc.Player(self)
	if !ok {
		return
	}

	base := baseName(me.DisplayName)
	baseKey := nameKey(base)

	group := make([]domain.Player, 0, 1)
	for _, p := range doc.Players() {
		if nameKey(baseName(p.DisplayName)) == baseKey {
			group = append(group, p)
		}
	}

	sort.Slice(group, func(i, j int) bool {
		ti, _ := doc.JoinedAt(group[i].ID)
		tj, _ := doc.JoinedAt(group[j].ID)
		if ti != tj {
			return ti < tj
		}
		return group[i].ID < group[j].ID
	})

	index := -1
	for i, p := range group {
		if p.ID == self {
			index = i
			break
		}
	}
	if index < 0 {
		return
	}

	desired := base
	if index > 0 {
		desired = fmt.Sprintf("%s (%d)", base, index+1)
	}
	if desired == me.DisplayName {
		return
	}

	doc.ReleaseName(nameKey(me.DisplayName))
	doc.ClaimName(nameKey(desired), self)
	me.DisplayName = desired
	doc.PutPlayer(me)
}
