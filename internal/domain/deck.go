package domain

import "strings"

// NameSep separates levels in a deck name path ("Parent::Child").
const NameSep = "::"

// DefaultDeckID always exists and cannot be deleted.
const DefaultDeckID = 1

// DayCount is a rolling per-day counter. Day is the collection day
// index the count belongs to; a mismatch with today means the counter
// is stale and reads as zero.
type DayCount struct {
	Day   int `db:"day"`
	Count int `db:"count"`
}

// ForDay returns the counter value, treating a stale day as zero.
func (d DayCount) ForDay(today int) int {
	if d.Day != today {
		return 0
	}
	return d.Count
}

// DynOrder selects how a filtered deck orders the cards it gathers.
type DynOrder int

const (
	DynOrderOldestModified DynOrder = iota
	DynOrderRandom
	DynOrderIntervalAsc
	DynOrderIntervalDesc
	DynOrderLapses
	DynOrderNoteIDAsc
	DynOrderNoteIDDesc
	DynOrderDue
)

// DynTerms is the membership rule of a filtered deck: an optional deck
// scope, a due-only switch, a gather limit and an ordering.
type DynTerms struct {
	// ScopeDeckID restricts gathering to one deck subtree; zero means
	// the whole collection.
	ScopeDeckID int64    `db:"dyn_scope_did"`
	DueOnly     bool     `db:"dyn_due_only"`
	Limit       int      `db:"dyn_limit"`
	Order       DynOrder `db:"dyn_order"`
	// Resched controls whether answers inside the filtered deck
	// reschedule the card or leave its original due date alone.
	Resched bool `db:"dyn_resched"`
}

// Deck is a named node in the deck tree.
type Deck struct {
	ID     int64  `db:"id"`
	Name   string `db:"name"`
	ConfID int64  `db:"conf_id"`
	Mod    int64  `db:"mod"`
	Dyn    bool   `db:"dyn"`

	NewToday DayCount `db:"new_today"`
	RevToday DayCount `db:"rev_today"`
	LrnToday DayCount `db:"lrn_today"`

	Terms DynTerms `db:"terms"`
}

// Basename is the last component of the deck's name path.
func (d *Deck) Basename() string {
	parts := strings.Split(d.Name, NameSep)
	return parts[len(parts)-1]
}

// ParentName returns the name path of the immediate parent, or "" for a
// top-level deck.
func ParentName(name string) string {
	idx := strings.LastIndex(name, NameSep)
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// AncestorNames lists every proper ancestor path of name, nearest last.
// "A::B::C" yields ["A", "A::B"].
func AncestorNames(name string) []string {
	parts := strings.Split(name, NameSep)
	if len(parts) <= 1 {
		return nil
	}
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], NameSep))
	}
	return out
}

// IsAncestorName reports whether parent names a proper ancestor of
// child in the deck tree.
func IsAncestorName(parent, child string) bool {
	return strings.HasPrefix(child, parent+NameSep)
}

// NameDepth is the number of levels in the name path, starting at 1.
func NameDepth(name string) int {
	return strings.Count(name, NameSep) + 1
}
