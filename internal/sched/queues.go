package sched

import (
	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

// GetCard pops the next due card, or nil when nothing is left today.
func (s *Scheduler) GetCard() (*domain.Card, error) {
	if err := s.checkDay(); err != nil {
		return nil, err
	}
	if !s.haveQueues {
		if err := s.reset(); err != nil {
			return nil, err
		}
	}
	card, err := s.nextCard()
	if err != nil {
		return nil, err
	}
	if card != nil {
		card.FetchedAt = s.now()
		s.lastFetched = card.ID
	}
	return card, nil
}

// nextCard implements the fetch priority: due learning card, new card
// when it is time for one, review card, day-learning card, new card as
// fallback, and finally a near-due learning card within the collapse
// grace window.
func (s *Scheduler) nextCard() (*domain.Card, error) {
	if c, err := s.getLrnCard(false); c != nil || err != nil {
		return c, err
	}
	if s.timeForNewCard() {
		if c, err := s.getNewCard(); c != nil || err != nil {
			return c, err
		}
	}
	if c, err := s.getRevCard(); c != nil || err != nil {
		return c, err
	}
	if c, err := s.getLrnDayCard(); c != nil || err != nil {
		return c, err
	}
	if c, err := s.getNewCard(); c != nil || err != nil {
		return c, err
	}
	return s.getLrnCard(true)
}

/* New cards */

func (s *Scheduler) resetNew(active []int64) error {
	s.counts.new = 0
	s.newQueue = nil
	s.newDids = append([]int64(nil), active...)
	for _, did := range active {
		lim, err := s.deckNewLimit(did)
		if err != nil {
			return err
		}
		if lim == 0 {
			continue
		}
		cnt, err := s.store.CountCards(storage.CardQuery{
			DeckIDs: []int64{did},
			Queues:  []domain.Queue{domain.QueueNew},
			Limit:   lim,
		})
		if err != nil {
			return err
		}
		s.counts.new += cnt
	}
	s.updateNewCardRatio()
	return nil
}

func (s *Scheduler) updateNewCardRatio() {
	s.newCardModulus = 0
	if s.spread != SpreadDistribute || s.counts.new == 0 {
		return
	}
	total := s.counts.new + s.counts.rev
	s.newCardModulus = (total + s.counts.new/2) / s.counts.new
	if s.counts.rev > 0 {
		s.newCardModulus = max(2, s.newCardModulus)
	}
}

func (s *Scheduler) timeForNewCard() bool {
	if s.counts.new == 0 {
		return false
	}
	switch s.spread {
	case SpreadNewFirst:
		return true
	case SpreadNewLast:
		return false
	}
	return s.newCardModulus != 0 && s.reps != 0 && s.reps%s.newCardModulus == 0
}

func (s *Scheduler) fillNew() (bool, error) {
	if len(s.newQueue) > 0 {
		return true, nil
	}
	if s.counts.new == 0 {
		return false, nil
	}
	for len(s.newDids) > 0 {
		did := s.newDids[0]
		lim, err := s.deckNewLimit(did)
		if err != nil {
			return false, err
		}
		if lim > 0 {
			rows, err := s.store.QueryQueued(storage.CardQuery{
				DeckIDs: []int64{did},
				Queues:  []domain.Queue{domain.QueueNew},
				Order:   storage.OrderByDue,
				Limit:   min(lim, s.queueLimit),
			})
			if err != nil {
				return false, err
			}
			if len(rows) > 0 {
				deck := s.decks.Get(did)
				separate := deck != nil && deck.Dyn
				if !separate && deck != nil {
					if conf, err := s.decks.Conf(deck); err == nil && conf.New.Separate {
						separate = true
					}
				}
				if separate {
					rows = rotateSiblings(rows)
				}
				s.newQueue = rows
				return true, nil
			}
		}
		s.newDids = s.newDids[1:]
	}
	// Count said there was something but the fetch came up empty: the
	// estimate was stale, fix it rather than loop.
	if s.counts.new > 0 {
		s.log.Debug("new count was stale, clearing", "count", s.counts.new)
		s.counts.new = 0
	}
	return false, nil
}

// rotateSiblings moves cards that share a note with their predecessor
// towards the back of the batch so siblings are not shown
// consecutively. A single bounded pass: once a full rotation's worth
// of moves has happened the batch cannot improve further (e.g. only
// one note remains).
func rotateSiblings(rows []storage.QueuedCard) []storage.QueuedCard {
	out := append([]storage.QueuedCard(nil), rows...)
	moves := 0
	for i := 1; i < len(out) && moves < len(rows); {
		if out[i].NoteID == out[i-1].NoteID {
			c := out[i]
			out = append(out[:i], out[i+1:]...)
			out = append(out, c)
			moves++
		} else {
			i++
		}
	}
	return out
}

func (s *Scheduler) getNewCard() (*domain.Card, error) {
	ok, err := s.fillNew()
	if err != nil || !ok {
		return nil, err
	}
	id := s.newQueue[0].ID
	s.newQueue = s.newQueue[1:]
	s.counts.decNew()
	return s.store.GetCard(id)
}

/* Learning cards */

func (s *Scheduler) resetLrn(active []int64) error {
	s.lrnQueue = nil
	s.lrnDayQueue = nil
	s.lrnDayDids = append([]int64(nil), active...)
	sameDay, err := s.store.SumStepsLeftToday(storage.CardQuery{
		DeckIDs:  active,
		Queues:   []domain.Queue{domain.QueueLearning},
		DueBelow: storage.DueLimit(s.now().Unix() + s.collapseTime),
	})
	if err != nil {
		return err
	}
	dayLrn, err := s.store.CountCards(storage.CardQuery{
		DeckIDs:   active,
		Queues:    []domain.Queue{domain.QueueDayLearning},
		DueAtMost: storage.DueLimit(int64(s.today)),
	})
	if err != nil {
		return err
	}
	s.counts.lrn = sameDay + dayLrn
	return nil
}

func (s *Scheduler) fillLrn() (bool, error) {
	if len(s.lrnQueue) > 0 {
		return true, nil
	}
	rows, err := s.store.QueryQueued(storage.CardQuery{
		DeckIDs:  s.decks.ActiveDeckIDs(),
		Queues:   []domain.Queue{domain.QueueLearning},
		DueBelow: storage.DueLimit(s.dayCutoff),
		Order:    storage.OrderByDue,
		Limit:    s.reportLimit,
	})
	if err != nil {
		return false, err
	}
	s.lrnQueue = rows
	return len(rows) > 0, nil
}

func (s *Scheduler) getLrnCard(collapse bool) (*domain.Card, error) {
	ok, err := s.fillLrn()
	if err != nil || !ok {
		return nil, err
	}
	cutoff := s.now().Unix()
	if collapse {
		cutoff += s.collapseTime
	}
	if s.lrnQueue[0].Due >= cutoff {
		return nil, nil
	}
	id := s.lrnQueue[0].ID
	s.lrnQueue = s.lrnQueue[1:]
	card, err := s.store.GetCard(id)
	if err != nil {
		return nil, err
	}
	if card != nil {
		s.counts.decLrn(card.StepsLeftToday)
	}
	return card, nil
}

// sortIntoLrn places a rescheduled card back into the in-memory
// learning queue at its due position without a full re-sort.
func (s *Scheduler) sortIntoLrn(due, id int64) {
	idx := 0
	for idx < len(s.lrnQueue) && s.lrnQueue[idx].Due <= due {
		idx++
	}
	s.lrnQueue = append(s.lrnQueue, storage.QueuedCard{})
	copy(s.lrnQueue[idx+1:], s.lrnQueue[idx:])
	s.lrnQueue[idx] = storage.QueuedCard{ID: id, Due: due}
}

func (s *Scheduler) fillLrnDay() (bool, error) {
	if len(s.lrnDayQueue) > 0 {
		return true, nil
	}
	for len(s.lrnDayDids) > 0 {
		did := s.lrnDayDids[0]
		ids, err := s.store.QueryCardIDs(storage.CardQuery{
			DeckIDs:   []int64{did},
			Queues:    []domain.Queue{domain.QueueDayLearning},
			DueAtMost: storage.DueLimit(int64(s.today)),
			Limit:     s.queueLimit,
		})
		if err != nil {
			return false, err
		}
		if len(ids) > 0 {
			// Shuffled once per deck, deterministically for the day.
			r := s.dayRand()
			r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
			s.lrnDayQueue = ids
			if len(ids) < s.queueLimit {
				// Deck exhausted by this batch; fall through to the
				// next deck on the following fill.
				s.lrnDayDids = s.lrnDayDids[1:]
			}
			return true, nil
		}
		s.lrnDayDids = s.lrnDayDids[1:]
	}
	return false, nil
}

func (s *Scheduler) getLrnDayCard() (*domain.Card, error) {
	ok, err := s.fillLrnDay()
	if err != nil || !ok {
		return nil, err
	}
	id := s.lrnDayQueue[0]
	s.lrnDayQueue = s.lrnDayQueue[1:]
	// Day-learning cards count once each, unlike same-day steps.
	s.counts.decLrn(1)
	return s.store.GetCard(id)
}

/* Review cards */

func (s *Scheduler) resetRev(active []int64) error {
	s.counts.rev = 0
	s.revQueue = nil
	s.revDids = append([]int64(nil), active...)
	for _, did := range active {
		lim, err := s.deckRevLimit(did)
		if err != nil {
			return err
		}
		if lim == 0 {
			continue
		}
		cnt, err := s.store.CountCards(storage.CardQuery{
			DeckIDs:   []int64{did},
			Queues:    []domain.Queue{domain.QueueReview},
			DueAtMost: storage.DueLimit(int64(s.today)),
			Limit:     lim,
		})
		if err != nil {
			return err
		}
		s.counts.rev += cnt
	}
	return nil
}

func (s *Scheduler) fillRev() (bool, error) {
	if len(s.revQueue) > 0 {
		return true, nil
	}
	if s.counts.rev == 0 {
		return false, nil
	}
	for len(s.revDids) > 0 {
		did := s.revDids[0]
		lim, err := s.deckRevLimit(did)
		if err != nil {
			return false, err
		}
		if lim > 0 {
			ids, err := s.store.QueryCardIDs(storage.CardQuery{
				DeckIDs:   []int64{did},
				Queues:    []domain.Queue{domain.QueueReview},
				DueAtMost: storage.DueLimit(int64(s.today)),
				Order:     storage.OrderByDue,
				Limit:     min(lim, s.queueLimit),
			})
			if err != nil {
				return false, err
			}
			if len(ids) > 0 {
				deck := s.decks.Get(did)
				if deck == nil || !deck.Dyn {
					// Filtered decks preserve their explicit order.
					r := s.dayRand()
					r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
				}
				s.revQueue = ids
				return true, nil
			}
		}
		s.revDids = s.revDids[1:]
	}
	if s.counts.rev > 0 {
		s.log.Debug("review count was stale, clearing", "count", s.counts.rev)
		s.counts.rev = 0
	}
	return false, nil
}

func (s *Scheduler) getRevCard() (*domain.Card, error) {
	ok, err := s.fillRev()
	if err != nil || !ok {
		return nil, err
	}
	id := s.revQueue[0]
	s.revQueue = s.revQueue[1:]
	s.counts.decRev()
	return s.store.GetCard(id)
}

/* Burying */

// burySiblings hides the answered card's siblings for the rest of the
// day where the deck configuration asks for it.
func (s *Scheduler) burySiblings(tx *storage.DB, card *domain.Card, conf *domain.DeckConfig) error {
	if !conf.New.Bury && !conf.Review.Bury {
		return nil
	}
	rows, err := tx.QueryQueued(storage.CardQuery{
		NoteID: card.NoteID,
		Queues: []domain.Queue{domain.QueueNew, domain.QueueReview},
	})
	if err != nil {
		return err
	}
	buried := make(map[int64]bool)
	for _, row := range rows {
		if row.ID == card.ID {
			continue
		}
		sib, err := tx.GetCard(row.ID)
		if err != nil {
			return err
		}
		if sib == nil {
			continue
		}
		switch {
		case sib.Queue == domain.QueueNew && conf.New.Bury:
		case sib.Queue == domain.QueueReview && conf.Review.Bury && sib.Due <= int64(s.today):
		default:
			continue
		}
		sib.Queue = domain.QueueBuried
		if err := tx.SaveCard(sib); err != nil {
			return err
		}
		buried[sib.ID] = true
	}
	if len(buried) == 0 {
		return nil
	}
	// Siblings sitting in the current fill batch also leave the counts;
	// ones not yet fetched into a batch stay counted until the next
	// reset, matching the count queries they came from.
	for _, q := range s.newQueue {
		if buried[q.ID] {
			s.counts.decNew()
		}
	}
	for _, id := range s.revQueue {
		if buried[id] {
			s.counts.decRev()
		}
	}
	s.dropFromQueues(buried)
	return nil
}

func (s *Scheduler) dropFromQueues(ids map[int64]bool) {
	keepQueued := func(in []storage.QueuedCard) []storage.QueuedCard {
		out := in[:0]
		for _, q := range in {
			if !ids[q.ID] {
				out = append(out, q)
			}
		}
		return out
	}
	keepIDs := func(in []int64) []int64 {
		out := in[:0]
		for _, id := range in {
			if !ids[id] {
				out = append(out, id)
			}
		}
		return out
	}
	s.newQueue = keepQueued(s.newQueue)
	s.lrnQueue = keepQueued(s.lrnQueue)
	s.revQueue = keepIDs(s.revQueue)
	s.lrnDayQueue = keepIDs(s.lrnDayQueue)
}

// HaveBuried reports whether any card in the active decks is buried.
func (s *Scheduler) HaveBuried() (bool, error) {
	cnt, err := s.store.CountCards(storage.CardQuery{
		DeckIDs: s.decks.ActiveDeckIDs(),
		Queues:  []domain.Queue{domain.QueueBuried, domain.QueueManuallyBuried},
		Limit:   1,
	})
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *Scheduler) unbury(queues ...domain.Queue) error {
	ids, err := s.store.QueryCardIDs(storage.CardQuery{
		Queues: queues,
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		card, err := s.store.GetCard(id)
		if err != nil {
			return err
		}
		if card == nil {
			continue
		}
		card.Queue = domain.Queue(card.Type)
		if err := s.store.SaveCard(card); err != nil {
			return err
		}
	}
	return nil
}

// UnburyCards restores all buried cards immediately, manually buried
// ones included, instead of waiting for the next day rollover.
func (s *Scheduler) UnburyCards() error {
	if err := s.unbury(domain.QueueBuried, domain.QueueManuallyBuried); err != nil {
		return err
	}
	s.invalidateQueues()
	return nil
}
