package sched

import (
	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

func dynOrderSQL(o domain.DynOrder) storage.CardOrder {
	switch o {
	case domain.DynOrderRandom:
		return storage.OrderByRandom
	case domain.DynOrderIntervalAsc:
		return storage.OrderByIntervalAsc
	case domain.DynOrderIntervalDesc:
		return storage.OrderByIntervalDesc
	case domain.DynOrderLapses:
		return storage.OrderByLapsesDesc
	case domain.DynOrderNoteIDAsc:
		return storage.OrderByNoteIDAsc
	case domain.DynOrderNoteIDDesc:
		return storage.OrderByNoteIDDesc
	case domain.DynOrderDue:
		return storage.OrderByDue
	}
	return storage.OrderByOldestModified
}

// RebuildDyn regathers a filtered deck: the previous contents go home
// first, then cards matching the deck's terms are borrowed in, stashing
// their origin so they can be returned later. Returns the number of
// cards gathered.
func (s *Scheduler) RebuildDyn(deckID int64) (int, error) {
	deck := s.decks.Get(deckID)
	if deck == nil || !deck.Dyn {
		return 0, ErrNotDynamic
	}
	if err := s.EmptyDyn(deckID); err != nil {
		return 0, err
	}

	q := storage.CardQuery{
		DeckIDs:         s.dynSourceDecks(deck),
		Queues:          []domain.Queue{domain.QueueNew, domain.QueueLearning, domain.QueueReview, domain.QueueDayLearning},
		ExcludeFiltered: true,
		Order:           dynOrderSQL(deck.Terms.Order),
		Limit:           deck.Terms.Limit,
	}
	if deck.Terms.DueOnly {
		q.Queues = []domain.Queue{domain.QueueReview, domain.QueueDayLearning}
		q.DueAtMost = storage.DueLimit(int64(s.today))
	}
	ids, err := s.store.QueryCardIDs(q)
	if err != nil {
		return 0, err
	}

	err = s.store.InTx(func(tx *storage.DB) error {
		for i, id := range ids {
			card, err := tx.GetCard(id)
			if err != nil {
				return err
			}
			if card == nil {
				continue
			}
			card.OrigDeckID = card.DeckID
			if card.OrigDue == 0 {
				card.OrigDue = card.Due
			}
			card.DeckID = deck.ID
			// Negative dues keep the gather order ahead of everything
			// else in the deck.
			card.Due = int64(-100000 + i)
			if err := tx.SaveCard(card); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidateQueues()
	return len(ids), nil
}

// dynSourceDecks resolves the gather scope: one subtree if the terms
// name a deck, every regular deck otherwise. Filtered decks are never
// a source.
func (s *Scheduler) dynSourceDecks(deck *domain.Deck) []int64 {
	scope := s.decks.Get(deck.Terms.ScopeDeckID)
	var ids []int64
	for _, d := range s.decks.All() {
		if d.Dyn {
			continue
		}
		if scope != nil && d.ID != scope.ID && !domain.IsAncestorName(scope.Name, d.Name) {
			continue
		}
		ids = append(ids, d.ID)
	}
	return ids
}

// EmptyDyn returns every card of a filtered deck to its original deck
// and due date. Cards that were mid-learning revert to new; suspended
// and buried cards keep their queue.
func (s *Scheduler) EmptyDyn(deckID int64) error {
	deck := s.decks.Get(deckID)
	if deck == nil || !deck.Dyn {
		return ErrNotDynamic
	}
	ids, err := s.store.QueryCardIDs(storage.CardQuery{DeckIDs: []int64{deckID}})
	if err != nil {
		return err
	}
	err = s.store.InTx(func(tx *storage.DB) error {
		for _, id := range ids {
			card, err := tx.GetCard(id)
			if err != nil {
				return err
			}
			if card == nil {
				continue
			}
			if card.Queue >= domain.QueueNew {
				if card.Type == domain.CTypeLearning {
					card.Queue = domain.QueueNew
					card.Type = domain.CTypeNew
				} else {
					card.Queue = domain.Queue(card.Type)
				}
			}
			if card.OrigDeckID != 0 {
				card.DeckID = card.OrigDeckID
			}
			card.Due = card.OrigDue
			card.OrigDue = 0
			card.OrigDeckID = 0
			if err := tx.SaveCard(card); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateQueues()
	return nil
}
