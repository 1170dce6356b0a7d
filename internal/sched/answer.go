package sched

import (
	"time"

	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

// AnswerCard applies an ease grade to the card last handed out by
// GetCard: queue/type transition, next interval, due date, counters
// and a review-log row, all inside one transaction. It returns whether
// the answer turned the card into a leech.
func (s *Scheduler) AnswerCard(card *domain.Card, ease domain.Ease) (bool, error) {
	if err := s.checkDay(); err != nil {
		return false, err
	}
	// Contract checks happen before any write.
	if !ease.Valid() {
		return false, ErrInvalidEase
	}
	switch card.Queue {
	case domain.QueueNew, domain.QueueLearning, domain.QueueReview, domain.QueueDayLearning:
	default:
		return false, ErrInvalidQueue
	}
	if card.ID != s.lastFetched {
		return false, ErrCardNotFetched
	}
	s.repairFilteredState(card)

	conf, err := s.decks.ConfFor(card)
	if err != nil {
		return false, err
	}

	now := s.now()
	leech := false
	var stats []func(*domain.Deck) *domain.DayCount
	err = s.store.InTx(func(tx *storage.DB) error {
		s.reps++
		if err := s.burySiblings(tx, card, conf); err != nil {
			return err
		}
		card.Reps++

		if card.Queue == domain.QueueNew {
			card.Queue = domain.QueueLearning
			if card.Type != domain.CTypeReview {
				card.Type = domain.CTypeLearning
			}
			card.StepsLeft, card.StepsLeftToday = s.startingLeft(card, conf, now)
			stats = append(stats, pickNew)
		}

		switch card.Queue {
		case domain.QueueLearning, domain.QueueDayLearning:
			if err := s.answerLrnCard(tx, card, conf, ease, now); err != nil {
				return err
			}
			stats = append(stats, pickLrn)
		case domain.QueueReview:
			var err error
			leech, err = s.answerRevCard(tx, card, conf, ease, now)
			if err != nil {
				return err
			}
			stats = append(stats, pickRev)
		}
		return tx.SaveCard(card)
	})
	if err != nil {
		return false, err
	}
	deckID := card.CurrentDeckID()
	for _, pick := range stats {
		if err := s.updateStats(deckID, pick); err != nil {
			return leech, err
		}
	}
	s.lastFetched = 0
	return leech, nil
}

// repairFilteredState clears filtered-deck fields that survived on a
// card no longer sitting in a filtered deck. The repair is idempotent
// and logged, never silent.
func (s *Scheduler) repairFilteredState(card *domain.Card) {
	if card.OrigDeckID == 0 && card.OrigDue == 0 {
		return
	}
	deck := s.decks.Get(card.DeckID)
	if deck != nil && deck.Dyn {
		return
	}
	if card.OrigDeckID != 0 {
		s.log.Warn("clearing stale filtered-deck fields",
			"card_id", card.ID, "deck_id", card.DeckID, "odid", card.OrigDeckID)
		card.OrigDeckID = 0
		if card.Type != domain.CTypeReview || card.Queue != domain.QueueLearning {
			// Relearning cards legitimately stash odue outside a
			// filtered deck; everything else is stale.
			card.OrigDue = 0
		}
	}
}

/* Learning cards */

// lrnDelays picks the step list governing the card: relearning steps
// for a lapsed review card, learning steps otherwise.
func lrnDelays(card *domain.Card, conf *domain.DeckConfig) []float64 {
	if card.Type == domain.CTypeReview {
		return conf.Lapse.Delays
	}
	return conf.New.Delays
}

// startingLeft computes the full step count and how many of those
// steps fit before the day cutoff.
func (s *Scheduler) startingLeft(card *domain.Card, conf *domain.DeckConfig, now time.Time) (int, int) {
	delays := lrnDelays(card, conf)
	total := len(delays)
	return total, s.leftToday(delays, total, now)
}

// leftToday walks the remaining delays and counts how many steps can
// still be completed before the day cutoff.
func (s *Scheduler) leftToday(delays []float64, left int, now time.Time) int {
	t := now.Unix()
	ok := 0
	offset := min(left, len(delays))
	for i := 0; i < offset; i++ {
		t += int64(delays[len(delays)-offset+i] * 60)
		if t > s.dayCutoff {
			break
		}
		ok = i + 1
	}
	return ok
}

// delayForGrade returns the delay in seconds for the step the card is
// on, counted from the back of the delay list.
func delayForGrade(delays []float64, stepsLeft int) int64 {
	idx := len(delays) - stepsLeft
	var delay float64
	switch {
	case idx >= 0 && idx < len(delays):
		delay = delays[idx]
	case len(delays) > 0:
		delay = delays[0]
	default:
		// The final step was deleted mid-learn; use a dummy minute.
		delay = 1
	}
	return int64(delay * 60)
}

func (s *Scheduler) answerLrnCard(tx *storage.DB, card *domain.Card, conf *domain.DeckConfig, ease domain.Ease, now time.Time) error {
	delays := lrnDelays(card, conf)
	kind := domain.ReviewKindLearn
	switch {
	case card.InFiltered():
		kind = domain.ReviewKindCram
	case card.Type == domain.CTypeReview:
		kind = domain.ReviewKindRelearn
	}

	lastStepsLeft := card.StepsLeft
	leaving := false
	switch {
	case ease >= domain.EaseGood:
		// Immediate graduation; the easy answer earns the bonus
		// interval.
		s.rescheduleAsRev(card, conf, ease == domain.EaseEasy)
		leaving = true
	case ease == domain.EaseHard && card.StepsLeft-1 <= 0:
		// Last step done: normal graduation.
		s.rescheduleAsRev(card, conf, false)
		leaving = true
	case ease == domain.EaseHard:
		card.StepsLeft--
		card.StepsLeftToday = s.leftToday(delays, card.StepsLeft, now)
		s.rescheduleLrnCard(card, delays, now)
	default: // EaseAgain
		card.StepsLeft = len(delays)
		card.StepsLeftToday = s.leftToday(delays, card.StepsLeft, now)
		if card.Type == domain.CTypeReview {
			// A lapsed card failing a relearning step shrinks its
			// eventual review interval again.
			card.Ivl = max(1, int(float64(card.Ivl)*conf.Lapse.Mult))
		}
		s.rescheduleLrnCard(card, delays, now)
	}

	entry := &domain.ReviewLogEntry{
		ID:        now.UnixMilli(),
		CardID:    card.ID,
		Ease:      ease,
		Factor:    card.Factor,
		TimeTaken: card.TimeTakenMS(now),
		Kind:      kind,
	}
	if usn, err := tx.USN(); err == nil {
		entry.USN = usn
	}
	entry.LastIvl = -int(delayForGrade(delays, lastStepsLeft))
	if leaving {
		entry.Ivl = card.Ivl
	} else {
		entry.Ivl = -int(delayForGrade(delays, card.StepsLeft))
	}
	return tx.AppendReviewLog(entry)
}

// rescheduleLrnCard advances the card to its next learning delay,
// keeping it same-day when it fits before the cutoff and pushing it to
// the day-learning queue otherwise.
func (s *Scheduler) rescheduleLrnCard(card *domain.Card, delays []float64, now time.Time) {
	delay := delayForGrade(delays, card.StepsLeft)
	wasBacklog := card.Queue == domain.QueueLearning && card.Due < now.Unix()
	due := now.Unix() + delay
	if wasBacklog {
		// Cards pulled from a backlog get a little randomness so they
		// do not re-bunch at the same instant.
		maxExtra := min(int64(300), delay/4)
		if maxExtra > 0 {
			due += s.rng.Int63n(maxExtra)
		}
	}
	if due < s.dayCutoff {
		card.Due = due
		card.Queue = domain.QueueLearning
		if card.Due < now.Unix()+s.collapseTime {
			s.counts.addLrn(card.StepsLeftToday)
			// Keep it off the head of the queue when it is the only
			// thing left, so it is not shown twice in a row.
			if len(s.lrnQueue) > 0 && s.counts.rev == 0 && s.counts.new == 0 {
				card.Due = max(card.Due, s.lrnQueue[0].Due+1)
			}
			s.sortIntoLrn(card.Due, card.ID)
		}
		return
	}
	ahead := (due-s.dayCutoff)/86400 + 1
	card.Due = int64(s.today) + ahead
	card.Queue = domain.QueueDayLearning
}

// rescheduleAsRev graduates a learning card into the review queue. A
// lapsed card gets its stashed due date back; a genuinely new card
// gets the graduating interval and initial factor.
func (s *Scheduler) rescheduleAsRev(card *domain.Card, conf *domain.DeckConfig, early bool) {
	lapsed := card.Type == domain.CTypeReview
	if lapsed {
		if card.OrigDue != 0 && !card.InFiltered() {
			card.Due = card.OrigDue
			card.OrigDue = 0
		} else {
			card.Due = int64(s.today) + int64(card.Ivl)
		}
	} else {
		card.Ivl = s.graduatingIvl(card, conf, early)
		card.Due = int64(s.today) + int64(card.Ivl)
		card.Factor = conf.New.InitialFactor
	}
	card.Queue = domain.QueueReview
	card.Type = domain.CTypeReview
	card.StepsLeft, card.StepsLeftToday = 0, 0
	if card.InFiltered() {
		// Graduating means moving back to the old deck.
		card.DeckID = card.OrigDeckID
		card.OrigDeckID = 0
		card.OrigDue = 0
	}
}

func (s *Scheduler) graduatingIvl(card *domain.Card, conf *domain.DeckConfig, early bool) int {
	if card.InFiltered() {
		deck := s.decks.Get(card.DeckID)
		if deck != nil && deck.Terms.Resched {
			return s.dynIvlBoost(card, conf)
		}
	}
	if early {
		return conf.New.EasyIvl
	}
	return conf.New.GradIvl
}

// dynIvlBoost rewards early success inside a filtered deck: the time
// already elapsed, scaled by a softened ease factor, can beat the
// current interval.
func (s *Scheduler) dynIvlBoost(card *domain.Card, conf *domain.DeckConfig) int {
	elapsed := card.Ivl - int(card.OrigDue-int64(s.today))
	factor := ((float64(card.Factor) / 1000) + 1.2) / 2
	ivl := max(1, card.Ivl, int(float64(elapsed)*factor))
	return min(ivl, conf.Review.MaxIvl)
}

/* Review cards */

func (s *Scheduler) answerRevCard(tx *storage.DB, card *domain.Card, conf *domain.DeckConfig, ease domain.Ease, now time.Time) (bool, error) {
	if ease == domain.EaseAgain {
		return s.rescheduleLapse(tx, card, conf, now)
	}
	return false, s.rescheduleRev(tx, card, conf, ease, now)
}

func (s *Scheduler) rescheduleLapse(tx *storage.DB, card *domain.Card, conf *domain.DeckConfig, now time.Time) (bool, error) {
	card.Lapses++
	lastIvl := card.Ivl
	if s.resched(card) {
		card.Ivl = max(conf.Lapse.MinIvl, int(float64(card.Ivl)*conf.Lapse.Mult))
		card.Factor = max(domain.MinFactor, card.Factor-200)
		card.Due = int64(s.today) + int64(card.Ivl)
	}
	leech, suspended, err := s.checkLeech(tx, card, conf)
	if err != nil {
		return false, err
	}
	if !suspended && len(conf.Lapse.Delays) > 0 {
		// Relearn: back into the learning queue, keeping the review
		// type and stashing the post-lapse due date for graduation.
		if !card.InFiltered() {
			card.OrigDue = card.Due
		}
		card.StepsLeft = len(conf.Lapse.Delays)
		card.StepsLeftToday = s.leftToday(conf.Lapse.Delays, card.StepsLeft, now)
		card.Queue = domain.QueueLearning
		s.rescheduleLrnCard(card, conf.Lapse.Delays, now)
	}
	entry := &domain.ReviewLogEntry{
		ID:        now.UnixMilli(),
		CardID:    card.ID,
		Ease:      domain.EaseAgain,
		Ivl:       card.Ivl,
		LastIvl:   lastIvl,
		Factor:    card.Factor,
		TimeTaken: card.TimeTakenMS(now),
		Kind:      domain.ReviewKindReview,
	}
	if usn, err := tx.USN(); err == nil {
		entry.USN = usn
	}
	return leech, tx.AppendReviewLog(entry)
}

func (s *Scheduler) rescheduleRev(tx *storage.DB, card *domain.Card, conf *domain.DeckConfig, ease domain.Ease, now time.Time) error {
	lastIvl := card.Ivl
	if s.resched(card) {
		ideal, err := s.nextRevIvl(card, conf, ease, !s.disableFuzz)
		if err != nil {
			return err
		}
		adjusted, err := s.adjRevIvl(tx, card, conf, ideal)
		if err != nil {
			return err
		}
		card.Ivl = adjusted
		card.Factor = max(domain.MinFactor, card.Factor+factorDelta(ease))
		card.Due = int64(s.today) + int64(card.Ivl)
		if card.InFiltered() {
			card.DeckID = card.OrigDeckID
			card.OrigDeckID = 0
			card.OrigDue = 0
		}
	} else {
		s.restoreNoResched(card)
	}
	entry := &domain.ReviewLogEntry{
		ID:        now.UnixMilli(),
		CardID:    card.ID,
		Ease:      ease,
		Ivl:       card.Ivl,
		LastIvl:   lastIvl,
		Factor:    card.Factor,
		TimeTaken: card.TimeTakenMS(now),
		Kind:      domain.ReviewKindReview,
	}
	if usn, err := tx.USN(); err == nil {
		entry.USN = usn
	}
	return tx.AppendReviewLog(entry)
}

// resched reports whether answers should reschedule the card; only a
// filtered deck with rescheduling off says no.
func (s *Scheduler) resched(card *domain.Card) bool {
	if !card.InFiltered() {
		return true
	}
	deck := s.decks.Get(card.DeckID)
	if deck == nil || !deck.Dyn {
		return true
	}
	return deck.Terms.Resched
}

// restoreNoResched sends a card answered in a no-reschedule filtered
// deck back home untouched: review cards get their stashed due date, a
// card that never graduated reverts to new at a fresh position.
func (s *Scheduler) restoreNoResched(card *domain.Card) {
	card.DeckID = card.OrigDeckID
	if card.Type == domain.CTypeReview {
		card.Due = card.OrigDue
	} else {
		card.Type = domain.CTypeNew
		card.Queue = domain.QueueNew
		if pos, err := s.store.MaxNewDue(); err == nil {
			card.Due = pos + 1
		}
	}
	card.OrigDeckID = 0
	card.OrigDue = 0
}

func factorDelta(ease domain.Ease) int {
	switch ease {
	case domain.EaseHard:
		return -150
	case domain.EaseEasy:
		return 150
	}
	return 0
}

// nextRevIvl computes the ideal next interval for a non-lapse review
// answer: three candidates that each must beat the previous one by at
// least a day.
func (s *Scheduler) nextRevIvl(card *domain.Card, conf *domain.DeckConfig, ease domain.Ease, fuzz bool) (int, error) {
	// A filtered card's real due date sits in odue; its due field holds
	// the gather position.
	due := card.Due
	if card.InFiltered() {
		due = card.OrigDue
	}
	daysLate := max(0, int64(s.today)-due)
	fct := float64(card.Factor) / 1000

	ivl2 := s.constrainedIvl(float64(card.Ivl)+float64(daysLate)/4, conf, card.Ivl, fuzz)
	if ease == domain.EaseHard {
		return ivl2, nil
	}
	ivl3 := s.constrainedIvl((float64(card.Ivl)+float64(daysLate)/2)*fct, conf, ivl2, fuzz)
	if ease == domain.EaseGood {
		return ivl3, nil
	}
	ivl4 := s.constrainedIvl((float64(card.Ivl)+float64(daysLate))*fct*conf.Review.Ease4, conf, ivl3, fuzz)
	return ivl4, nil
}

// constrainedIvl scales by the global interval factor, fuzzes, floors
// at prev+1 and caps at the configured maximum.
func (s *Scheduler) constrainedIvl(ivl float64, conf *domain.DeckConfig, prev int, fuzz bool) int {
	i := int(ivl * conf.Review.IvlFactor)
	if fuzz {
		i = fuzzedIvl(s.rng, i)
	}
	i = max(i, prev+1, 1)
	return min(i, conf.Review.MaxIvl)
}

// adjRevIvl nudges the interval off any due day already claimed by a
// sibling card of the same note, searching outward within a leeway of
// max(minSpace, ivl*fuzzRatio) days.
func (s *Scheduler) adjRevIvl(tx *storage.DB, card *domain.Card, conf *domain.DeckConfig, idealIvl int) (int, error) {
	dues, err := tx.SiblingReviewDues(card.NoteID, card.ID)
	if err != nil {
		return 0, err
	}
	if len(dues) == 0 {
		return idealIvl, nil
	}
	taken := make(map[int64]bool, len(dues))
	for _, d := range dues {
		taken[d] = true
	}
	idealDue := int64(s.today) + int64(idealIvl)
	if !taken[idealDue] {
		return idealIvl, nil
	}
	leeway := max(conf.Review.MinSpace, int(float64(idealIvl)*conf.Review.Fuzz))
	if leeway == 0 {
		return idealIvl, nil
	}
	for diff := 1; diff <= leeway+1; diff++ {
		if idealIvl-diff >= 1 && !taken[idealDue-int64(diff)] {
			return idealIvl - diff, nil
		}
		if !taken[idealDue+int64(diff)] {
			return idealIvl + diff, nil
		}
	}
	return idealIvl, nil
}

/* Leeches */

// checkLeech tags the note and optionally suspends the card once the
// lapse count crosses the threshold, and again every half-threshold
// after that. Returns (leech, suspended).
func (s *Scheduler) checkLeech(tx *storage.DB, card *domain.Card, conf *domain.DeckConfig) (bool, bool, error) {
	lf := conf.Lapse.LeechFails
	if lf == 0 {
		return false, false, nil
	}
	if card.Lapses < lf || (card.Lapses-lf)%max(lf/2, 1) != 0 {
		return false, false, nil
	}
	note, err := tx.GetNote(card.NoteID)
	if err != nil {
		return false, false, err
	}
	if note == nil {
		note = &domain.Note{ID: card.NoteID}
	}
	note.AddTag("leech")
	if err := tx.SaveNote(note); err != nil {
		return false, false, err
	}
	if conf.Lapse.LeechAction == domain.LeechSuspend {
		if card.OrigDue != 0 {
			card.Due = card.OrigDue
			card.OrigDue = 0
		}
		if card.InFiltered() {
			card.DeckID = card.OrigDeckID
			card.OrigDeckID = 0
		}
		card.Queue = domain.QueueSuspended
		s.log.Info("leech suspended", "card_id", card.ID, "lapses", card.Lapses)
		return true, true, nil
	}
	s.log.Info("leech tagged", "card_id", card.ID, "lapses", card.Lapses)
	return true, false, nil
}
