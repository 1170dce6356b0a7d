package sched

import (
	"errors"

	"github.com/declanbyrne/revdeck/internal/decks"
	"github.com/declanbyrne/revdeck/internal/domain"
)

// limitFn returns a single deck's remaining daily allowance for one
// card kind, ignoring ancestors. The two strategies below replace the
// reflective per-kind dispatch of older scheduler designs.
type limitFn func(d *domain.Deck, conf *domain.DeckConfig, today int) int

func newLimitSingle(d *domain.Deck, conf *domain.DeckConfig, today int) int {
	return max(0, conf.New.PerDay-d.NewToday.ForDay(today))
}

func revLimitSingle(d *domain.Deck, conf *domain.DeckConfig, today int) int {
	return max(0, conf.Review.PerDay-d.RevToday.ForDay(today))
}

// deckNewLimit is the effective daily new-card allowance of a deck:
// the minimum over itself and every ancestor.
func (s *Scheduler) deckNewLimit(deckID int64) (int, error) {
	return s.deckLimit(deckID, newLimitSingle)
}

// deckRevLimit is the effective daily review allowance of a deck.
func (s *Scheduler) deckRevLimit(deckID int64) (int, error) {
	return s.deckLimit(deckID, revLimitSingle)
}

func (s *Scheduler) deckLimit(deckID int64, single limitFn) (int, error) {
	d := s.decks.Get(deckID)
	if d == nil {
		return 0, nil
	}
	// Filtered decks are not subject to per-day caps.
	if d.Dyn {
		return s.reportLimit, nil
	}
	lim, err := s.deckLimitOnce(d, single)
	if err == nil {
		return lim, nil
	}
	// A broken ancestor chain is repaired once and the computation
	// retried; anything else propagates.
	var orphan *decks.ErrOrphan
	if !errors.As(err, &orphan) {
		return 0, err
	}
	if repairErr := s.decks.RepairOrphan(d); repairErr != nil {
		return 0, repairErr
	}
	return s.deckLimitOnce(d, single)
}

func (s *Scheduler) deckLimitOnce(d *domain.Deck, single limitFn) (int, error) {
	conf, err := s.decks.Conf(d)
	if err != nil {
		return 0, err
	}
	lim := single(d, conf, s.today)
	parents, err := s.decks.Parents(d)
	if err != nil {
		return 0, err
	}
	for _, p := range parents {
		if p.Dyn {
			continue
		}
		pconf, err := s.decks.Conf(p)
		if err != nil {
			return 0, err
		}
		lim = min(lim, single(p, pconf, s.today))
	}
	return max(0, lim), nil
}

// updateStats bumps the rolling daily counter of the card's deck and
// every ancestor, resetting stale day indexes as it goes.
func (s *Scheduler) updateStats(deckID int64, pick func(*domain.Deck) *domain.DayCount) error {
	d := s.decks.Get(deckID)
	if d == nil {
		return nil
	}
	chain := []*domain.Deck{d}
	if parents, err := s.decks.Parents(d); err == nil {
		chain = append(chain, parents...)
	}
	for _, deck := range chain {
		c := pick(deck)
		if c.Day != s.today {
			c.Day = s.today
			c.Count = 0
		}
		c.Count++
		if err := s.decks.Save(deck); err != nil {
			return err
		}
	}
	return nil
}

func pickNew(d *domain.Deck) *domain.DayCount { return &d.NewToday }
func pickLrn(d *domain.Deck) *domain.DayCount { return &d.LrnToday }
func pickRev(d *domain.Deck) *domain.DayCount { return &d.RevToday }
