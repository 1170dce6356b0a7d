package sched

import (
	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

// SuspendCards takes cards out of rotation until unsuspended. A card
// mid-learning is settled first: a lapsed card gets its stashed review
// due date back, a new card in learning is reset, so unsuspending never
// resurrects a stale learning step.
func (s *Scheduler) SuspendCards(ids ...int64) error {
	err := s.store.InTx(func(tx *storage.DB) error {
		for _, id := range ids {
			card, err := tx.GetCard(id)
			if err != nil {
				return err
			}
			if card == nil {
				continue
			}
			if card.Queue == domain.QueueLearning || card.Queue == domain.QueueDayLearning {
				if card.Type == domain.CTypeReview {
					card.Queue = domain.QueueReview
					if card.OrigDue != 0 && !card.InFiltered() {
						card.Due = card.OrigDue
						card.OrigDue = 0
					}
					card.StepsLeft, card.StepsLeftToday = 0, 0
				} else {
					resetToNew(card, card.Due)
				}
			}
			card.Queue = domain.QueueSuspended
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

// UnsuspendCards returns suspended cards to the queue their type
// implies. Other cards are left alone.
func (s *Scheduler) UnsuspendCards(ids ...int64) error {
	err := s.store.InTx(func(tx *storage.DB) error {
		for _, id := range ids {
			card, err := tx.GetCard(id)
			if err != nil {
				return err
			}
			if card == nil || card.Queue != domain.QueueSuspended {
				continue
			}
			card.Queue = domain.Queue(card.Type)
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

// BuryCards hides cards until the next day rollover (or an explicit
// unbury). Only cards in an active queue are affected.
func (s *Scheduler) BuryCards(ids ...int64) error {
	return s.buryCards(domain.QueueManuallyBuried, ids)
}

// BuryNote buries every in-rotation card of the note, the "bury
// related" action after a sibling was just answered.
func (s *Scheduler) BuryNote(noteID int64) error {
	rows, err := s.store.QueryQueued(storage.CardQuery{NoteID: noteID})
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return s.buryCards(domain.QueueBuried, ids)
}

func (s *Scheduler) buryCards(into domain.Queue, ids []int64) error {
	err := s.store.InTx(func(tx *storage.DB) error {
		for _, id := range ids {
			card, err := tx.GetCard(id)
			if err != nil {
				return err
			}
			if card == nil || card.Queue < domain.QueueNew {
				continue
			}
			card.Queue = into
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

func resetToNew(card *domain.Card, due int64) {
	card.Type = domain.CTypeNew
	card.Queue = domain.QueueNew
	card.Ivl = 0
	card.Factor = domain.InitialFactor
	card.StepsLeft, card.StepsLeftToday = 0, 0
	card.Due = due
}

// ForgetCards resets cards to new, repositioned at the end of the new
// queue. Already-new cards are renumbered too, making the operation
// idempotent in effect but not in position.
func (s *Scheduler) ForgetCards(ids ...int64) error {
	pos, err := s.store.MaxNewDue()
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
			pos++
			resetToNew(card, pos)
			card.OrigDue = 0
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

// RescheduleCards places cards directly in the review queue with a
// random interval in [minIvl, maxIvl] days, due counted from today.
func (s *Scheduler) RescheduleCards(ids []int64, minIvl, maxIvl int) error {
	if maxIvl < minIvl {
		minIvl, maxIvl = maxIvl, minIvl
	}
	err := s.store.InTx(func(tx *storage.DB) error {
		for _, id := range ids {
			card, err := tx.GetCard(id)
			if err != nil {
				return err
			}
			if card == nil {
				continue
			}
			ivl := max(1, minIvl+s.rng.Intn(maxIvl-minIvl+1))
			card.Type = domain.CTypeReview
			card.Queue = domain.QueueReview
			card.Ivl = ivl
			card.Due = int64(s.today) + int64(ivl)
			card.Factor = domain.InitialFactor
			card.StepsLeft, card.StepsLeftToday = 0, 0
			card.OrigDeckID = 0
			card.OrigDue = 0
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

// SortCards renumbers the new-card positions of the given cards,
// start + step per note so siblings stay adjacent. With shuffle the
// note order is randomized; with shift, existing new cards at or past
// start are pushed out of the way first.
func (s *Scheduler) SortCards(ids []int64, start, step int64, shuffle, shift bool) error {
	cards := make([]*domain.Card, 0, len(ids))
	noteOrder := make(map[int64]int64)
	var notes []int64
	for _, id := range ids {
		card, err := s.store.GetCard(id)
		if err != nil {
			return err
		}
		if card == nil || card.Type != domain.CTypeNew {
			continue
		}
		cards = append(cards, card)
		if _, seen := noteOrder[card.NoteID]; !seen {
			noteOrder[card.NoteID] = int64(len(notes))
			notes = append(notes, card.NoteID)
		}
	}
	if len(cards) == 0 {
		return nil
	}
	if shuffle {
		s.rng.Shuffle(len(notes), func(i, j int) { notes[i], notes[j] = notes[j], notes[i] })
		for i, nid := range notes {
			noteOrder[nid] = int64(i)
		}
	}

	err := s.store.InTx(func(tx *storage.DB) error {
		if shift {
			span := int64(len(notes)) * step
			high, err := tx.QueryCardIDs(storage.CardQuery{
				Queues: []domain.Queue{domain.QueueNew},
			})
			if err != nil {
				return err
			}
			moved := make(map[int64]bool, len(cards))
			for _, c := range cards {
				moved[c.ID] = true
			}
			for _, id := range high {
				if moved[id] {
					continue
				}
				other, err := tx.GetCard(id)
				if err != nil {
					return err
				}
				if other == nil || other.Due < start {
					continue
				}
				other.Due += span
				if err := tx.SaveCard(other); err != nil {
					return err
				}
			}
		}
		for _, card := range cards {
			card.Due = start + noteOrder[card.NoteID]*step
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
