package tiers

import "strings"

// Tier is a named subscription level entitling a member to a mapped Discord role.
type Tier string

// Tier constants (single source of truth)
const (
	Civilian Tier = "civilian"
	Fighter  Tier = "fighter"
	Elite    Tier = "elite"
)

// All returns every purchasable tier in display order.
func All() []Tier {
	return []Tier{Civilian, Fighter, Elite}
}

// Parse normalizes a user- or metadata-supplied tier name.
func Parse(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case Civilian:
		return Civilian, true
	case Fighter:
		return Fighter, true
	case Elite:
		return Elite, true
	}
	return "", false
}

func (t Tier) String() string { return string(t) }
