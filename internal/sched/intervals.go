package sched

import (
	"fmt"
	"math"

	"github.com/declanbyrne/revdeck/internal/domain"
)

// NextIvl predicts, in seconds, when the card would come back if
// answered with the given ease. Fuzz is left out so the prediction is
// stable; the actual answer may land a little off.
func (s *Scheduler) NextIvl(card *domain.Card, ease domain.Ease) (int64, error) {
	if !ease.Valid() {
		return 0, ErrInvalidEase
	}
	conf, err := s.decks.ConfFor(card)
	if err != nil {
		return 0, err
	}
	switch card.Queue {
	case domain.QueueNew, domain.QueueLearning, domain.QueueDayLearning:
		return s.nextLrnIvl(card, conf, ease), nil
	}
	if ease == domain.EaseAgain {
		if len(conf.Lapse.Delays) > 0 {
			return int64(conf.Lapse.Delays[0] * 60), nil
		}
		ivl := max(conf.Lapse.MinIvl, int(float64(card.Ivl)*conf.Lapse.Mult))
		return int64(ivl) * 86400, nil
	}
	ivl, err := s.nextRevIvl(card, conf, ease, false)
	if err != nil {
		return 0, err
	}
	return int64(ivl) * 86400, nil
}

func (s *Scheduler) nextLrnIvl(card *domain.Card, conf *domain.DeckConfig, ease domain.Ease) int64 {
	delays := lrnDelays(card, conf)
	stepsLeft := card.StepsLeft
	if card.Queue == domain.QueueNew {
		stepsLeft = len(delays)
	}
	switch {
	case ease == domain.EaseAgain:
		return delayForGrade(delays, len(delays))
	case ease == domain.EaseHard && stepsLeft-1 > 0:
		// Average of this delay and the next, matching how the two
		// remaining steps straddle the answer.
		a := delayForGrade(delays, stepsLeft)
		b := delayForGrade(delays, stepsLeft-1)
		return (a + b) / 2
	case ease == domain.EaseHard:
		return int64(s.graduatingIvl(card, conf, false)) * 86400
	}
	return int64(s.graduatingIvl(card, conf, ease == domain.EaseEasy)) * 86400
}

// NextIvlString renders the predicted interval compactly: "10m", "3d",
// "2.5mo".
func (s *Scheduler) NextIvlString(card *domain.Card, ease domain.Ease) (string, error) {
	secs, err := s.NextIvl(card, ease)
	if err != nil {
		return "", err
	}
	return humanizeIvl(secs), nil
}

func humanizeIvl(secs int64) string {
	v := float64(secs)
	switch {
	case v < 60:
		return fmt.Sprintf("%ds", secs)
	case v < 3600:
		return fmt.Sprintf("%dm", int(math.Round(v/60)))
	case v < 86400:
		return trimUnit(v/3600, "h")
	case v < 86400*30:
		return trimUnit(v/86400, "d")
	case v < 86400*365:
		return trimUnit(v/(86400*30.44), "mo")
	}
	return trimUnit(v/(86400*365.25), "y")
}

// trimUnit keeps one decimal but drops a trailing ".0".
func trimUnit(v float64, unit string) string {
	r := math.Round(v*10) / 10
	if r == math.Trunc(r) {
		return fmt.Sprintf("%d%s", int(r), unit)
	}
	return fmt.Sprintf("%.1f%s", r, unit)
}
