package sched

import (
	"fmt"

	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

// DeckDueNode is one deck in the due-count tree. Counts include every
// descendant, clipped to the deck's own daily limits.
type DeckDueNode struct {
	Name     string // last path component
	FullName string
	DeckID   int64
	Dyn      bool
	New      int
	Lrn      int
	Rev      int
	Children []*DeckDueNode
}

// DeckDueTree computes due counts for every deck and arranges them as
// a tree following the name paths. Decks sharing a name path are
// repaired (cards merged into the survivor) and the computation
// restarted once, so a corrupted tree heals on read instead of
// rendering twice.
func (s *Scheduler) DeckDueTree() ([]*DeckDueNode, error) {
	if err := s.checkDay(); err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		tree, dup, err := s.deckDueTreeOnce()
		if err != nil {
			return nil, err
		}
		if dup == "" {
			return tree, nil
		}
		if attempt > 0 {
			return nil, fmt.Errorf("deck name %q still duplicated after repair", dup)
		}
		if _, err := s.decks.RemoveDuplicate(); err != nil {
			return nil, err
		}
	}
}

type deckDue struct {
	deck *domain.Deck
	new  int
	lrn  int
	rev  int
}

// deckDueTreeOnce counts every deck and groups the results. A second
// deck carrying an already-seen name aborts the pass with that name,
// letting the caller repair and retry.
func (s *Scheduler) deckDueTreeOnce() ([]*DeckDueNode, string, error) {
	all := s.decks.All()
	// Decks with a broken ancestor chain are reattached at the top
	// level before counting, so grouping below never dangles.
	for _, d := range all {
		if err := s.decks.RepairOrphan(d); err != nil {
			return nil, "", err
		}
	}
	all = s.decks.All()

	seen := make(map[string]bool, len(all))
	entries := make([]deckDue, 0, len(all))
	for _, d := range all {
		if seen[d.Name] {
			return nil, d.Name, nil
		}
		seen[d.Name] = true
		due, err := s.deckDueSingle(d)
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, due)
	}
	tree, err := s.groupChildren(entries)
	return tree, "", err
}

// deckDueSingle counts one deck in isolation, each kind clipped to the
// deck's effective daily limit.
func (s *Scheduler) deckDueSingle(d *domain.Deck) (deckDue, error) {
	due := deckDue{deck: d}

	newLim, err := s.deckNewLimit(d.ID)
	if err != nil {
		return due, err
	}
	if newLim > 0 {
		due.new, err = s.store.CountCards(storage.CardQuery{
			DeckIDs: []int64{d.ID},
			Queues:  []domain.Queue{domain.QueueNew},
			Limit:   newLim,
		})
		if err != nil {
			return due, err
		}
	}

	sameDay, err := s.store.SumStepsLeftToday(storage.CardQuery{
		DeckIDs:  []int64{d.ID},
		Queues:   []domain.Queue{domain.QueueLearning},
		DueBelow: storage.DueLimit(s.now().Unix() + s.collapseTime),
	})
	if err != nil {
		return due, err
	}
	dayLrn, err := s.store.CountCards(storage.CardQuery{
		DeckIDs:   []int64{d.ID},
		Queues:    []domain.Queue{domain.QueueDayLearning},
		DueAtMost: storage.DueLimit(int64(s.today)),
	})
	if err != nil {
		return due, err
	}
	due.lrn = sameDay + dayLrn

	revLim, err := s.deckRevLimit(d.ID)
	if err != nil {
		return due, err
	}
	if revLim > 0 {
		due.rev, err = s.store.CountCards(storage.CardQuery{
			DeckIDs:   []int64{d.ID},
			Queues:    []domain.Queue{domain.QueueReview},
			DueAtMost: storage.DueLimit(int64(s.today)),
			Limit:     revLim,
		})
		if err != nil {
			return due, err
		}
	}
	return due, nil
}

// groupChildren turns the name-sorted flat list into a tree: each
// node's counts are its own plus its children's, then clipped to the
// node's own limits so a parent never advertises more than it would
// actually serve.
func (s *Scheduler) groupChildren(entries []deckDue) ([]*DeckDueNode, error) {
	var out []*DeckDueNode
	i := 0
	for i < len(entries) {
		head := entries[i]
		j := i + 1
		for j < len(entries) && domain.IsAncestorName(head.deck.Name, entries[j].deck.Name) {
			j++
		}
		children, err := s.groupChildren(entries[i+1 : j])
		if err != nil {
			return nil, err
		}
		node := &DeckDueNode{
			Name:     head.deck.Basename(),
			FullName: head.deck.Name,
			DeckID:   head.deck.ID,
			Dyn:      head.deck.Dyn,
			New:      head.new,
			Lrn:      head.lrn,
			Rev:      head.rev,
			Children: children,
		}
		for _, c := range children {
			node.New += c.New
			node.Lrn += c.Lrn
			node.Rev += c.Rev
		}
		if !head.deck.Dyn {
			conf, err := s.decks.Conf(head.deck)
			if err != nil {
				return nil, err
			}
			node.New = min(node.New, newLimitSingle(head.deck, conf, s.today))
			node.Rev = min(node.Rev, revLimitSingle(head.deck, conf, s.today))
		}
		out = append(out, node)
		i = j
	}
	return out, nil
}
