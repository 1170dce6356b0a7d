// Package decks maintains the deck tree of an open collection: lookup,
// the active-deck list, creation with implicit parents, and repair of
// hierarchy corruption (orphans, duplicate names).
package decks

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

// ErrOrphan marks a deck whose name path references a missing ancestor.
type ErrOrphan struct {
	DeckID  int64
	Name    string
	Missing string
}

func (e *ErrOrphan) Error() string {
	return fmt.Sprintf("deck %d %q references missing ancestor %q", e.DeckID, e.Name, e.Missing)
}

// Registry is the in-memory view of the deck tree, shared by the
// scheduler for the lifetime of an open collection. It assumes a
// single owner; concurrent use needs external locking.
type Registry struct {
	db      *storage.DB
	log     *slog.Logger
	byID    map[int64]*domain.Deck
	current int64
}

// Load reads all decks from the store.
func Load(db *storage.DB, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{db: db, log: log, current: domain.DefaultDeckID}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload() error {
	all, err := r.db.AllDecks()
	if err != nil {
		return err
	}
	r.byID = make(map[int64]*domain.Deck, len(all))
	for _, d := range all {
		r.byID[d.ID] = d
	}
	return nil
}

// Get returns the deck by id, or nil if unknown.
func (r *Registry) Get(id int64) *domain.Deck {
	return r.byID[id]
}

// ByName returns the deck with the exact name path, or nil.
func (r *Registry) ByName(name string) *domain.Deck {
	for _, d := range r.byID {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// All returns every deck sorted by name path.
func (r *Registry) All() []*domain.Deck {
	out := make([]*domain.Deck, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Save writes the deck through to the store and refreshes the cache.
func (r *Registry) Save(d *domain.Deck) error {
	if err := r.db.SaveDeck(d); err != nil {
		return err
	}
	r.byID[d.ID] = d
	return nil
}

// Select makes the deck the current one; the active list is the
// current deck plus its enabled descendants.
func (r *Registry) Select(id int64) error {
	if r.byID[id] == nil {
		return fmt.Errorf("cannot select unknown deck %d", id)
	}
	r.current = id
	return nil
}

// Current returns the currently selected deck.
func (r *Registry) Current() *domain.Deck {
	return r.byID[r.current]
}

// ActiveDeckIDs returns the current deck and all its descendants,
// ordered by name path.
func (r *Registry) ActiveDeckIDs() []int64 {
	cur := r.byID[r.current]
	if cur == nil {
		cur = r.byID[domain.DefaultDeckID]
	}
	var active []*domain.Deck
	for _, d := range r.byID {
		if d.ID == cur.ID || domain.IsAncestorName(cur.Name, d.Name) {
			active = append(active, d)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
	ids := make([]int64, 0, len(active))
	for _, d := range active {
		ids = append(ids, d.ID)
	}
	return ids
}

// Children returns the immediate children of the deck, sorted by name.
func (r *Registry) Children(d *domain.Deck) []*domain.Deck {
	depth := domain.NameDepth(d.Name)
	var out []*domain.Deck
	for _, c := range r.byID {
		if domain.IsAncestorName(d.Name, c.Name) && domain.NameDepth(c.Name) == depth+1 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parents returns the ancestor chain of the deck, topmost first. A
// missing ancestor yields *ErrOrphan so callers can repair and retry.
func (r *Registry) Parents(d *domain.Deck) ([]*domain.Deck, error) {
	names := domain.AncestorNames(d.Name)
	out := make([]*domain.Deck, 0, len(names))
	for _, name := range names {
		p := r.ByName(name)
		if p == nil {
			return nil, &ErrOrphan{DeckID: d.ID, Name: d.Name, Missing: name}
		}
		out = append(out, p)
	}
	return out, nil
}

// RepairOrphan reattaches a deck with a broken ancestry by renaming it
// to its basename at the top level. Renaming twice is a no-op, and a
// name collision gets a "+" suffix. The repair is logged, never silent.
func (r *Registry) RepairOrphan(d *domain.Deck) error {
	if _, err := r.Parents(d); err == nil {
		return nil
	}
	name := d.Basename()
	for r.ByName(name) != nil {
		name += "+"
	}
	r.log.Warn("repairing orphaned deck", "deck_id", d.ID, "old_name", d.Name, "new_name", name)
	d.Name = name
	return r.Save(d)
}

// RemoveDuplicate detects decks sharing a name path, keeps the one
// with the lowest id, reassigns the duplicate's cards to it and drops
// the duplicate row. Returns true if anything was repaired.
func (r *Registry) RemoveDuplicate() (bool, error) {
	byName := make(map[string]*domain.Deck, len(r.byID))
	repaired := false
	for _, d := range r.All() {
		keep, seen := byName[d.Name]
		if !seen {
			byName[d.Name] = d
			continue
		}
		dup := d
		if dup.ID < keep.ID {
			keep, dup = dup, keep
			byName[d.Name] = keep
		}
		r.log.Warn("removing duplicate deck", "name", dup.Name, "kept_id", keep.ID, "removed_id", dup.ID)
		if err := r.db.MoveDeckCards(dup.ID, keep.ID); err != nil {
			return false, err
		}
		if err := r.db.DeleteDeck(dup.ID); err != nil {
			return false, err
		}
		delete(r.byID, dup.ID)
		repaired = true
	}
	return repaired, nil
}

// Create adds a deck with the given name path, creating any missing
// parents, and returns it. An existing deck of that name is returned
// as is.
func (r *Registry) Create(name string, dyn bool) (*domain.Deck, error) {
	if existing := r.ByName(name); existing != nil {
		return existing, nil
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("deck name must not be empty")
	}
	for _, parent := range domain.AncestorNames(name) {
		if r.ByName(parent) == nil {
			if _, err := r.Create(parent, false); err != nil {
				return nil, err
			}
		}
	}
	d := &domain.Deck{
		ID:     r.nextID(),
		Name:   name,
		ConfID: 1,
		Dyn:    dyn,
	}
	if dyn {
		d.Terms = domain.DynTerms{Limit: 100, Resched: true}
	}
	if err := r.Save(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Registry) nextID() int64 {
	var max int64
	for id := range r.byID {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// Conf returns the scheduling configuration of a deck, degrading to
// the default parameter set when the referenced row is missing.
func (r *Registry) Conf(d *domain.Deck) (*domain.DeckConfig, error) {
	conf, err := r.db.GetDeckConfig(d.ConfID)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		r.log.Warn("deck references missing config, using default",
			"deck_id", d.ID, "conf_id", d.ConfID)
		return domain.DefaultDeckConfig(), nil
	}
	return conf, nil
}

// ConfFor resolves the scheduling configuration governing a card,
// following the original deck while the card is in a filtered deck.
// A missing config row degrades to the default parameter set with a
// diagnostic log instead of failing the answer.
func (r *Registry) ConfFor(card *domain.Card) (*domain.DeckConfig, error) {
	deck := r.Get(card.CurrentDeckID())
	if deck == nil {
		r.log.Warn("card references missing deck, using default config",
			"card_id", card.ID, "deck_id", card.CurrentDeckID())
		return domain.DefaultDeckConfig(), nil
	}
	return r.Conf(deck)
}
