package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declanbyrne/revdeck/internal/decks"
	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

// testEnv owns an in-memory collection with a controllable clock.
type testEnv struct {
	t   *testing.T
	s   *Scheduler
	db  *storage.DB
	reg *decks.Registry
	now time.Time
}

func newEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg, err := decks.Load(db, nil)
	require.NoError(t, err)

	e := &testEnv{t: t, db: db, reg: reg, now: time.Now()}
	opts.Now = func() time.Time { return e.now }
	s, err := New(db, reg, opts)
	require.NoError(t, err)
	e.s = s
	return e
}

func (e *testEnv) addNote(id int64) {
	e.t.Helper()
	require.NoError(e.t, e.db.SaveNote(&domain.Note{ID: id}))
}

func (e *testEnv) addNewCard(id, noteID, deckID, pos int64) {
	e.t.Helper()
	require.NoError(e.t, e.db.SaveCard(&domain.Card{
		ID: id, NoteID: noteID, DeckID: deckID, Due: pos,
	}))
}

func (e *testEnv) addRevCard(id, noteID, deckID, due int64, ivl, factor int) {
	e.t.Helper()
	require.NoError(e.t, e.db.SaveCard(&domain.Card{
		ID: id, NoteID: noteID, DeckID: deckID,
		Type: domain.CTypeReview, Queue: domain.QueueReview,
		Due: due, Ivl: ivl, Factor: factor,
	}))
}

func (e *testEnv) fetch(id int64) *domain.Card {
	e.t.Helper()
	card, err := e.s.GetCard()
	require.NoError(e.t, err)
	require.NotNil(e.t, card, "expected a due card")
	require.Equal(e.t, id, card.ID)
	return card
}

func (e *testEnv) card(id int64) *domain.Card {
	e.t.Helper()
	card, err := e.db.GetCard(id)
	require.NoError(e.t, err)
	require.NotNil(e.t, card)
	return card
}

func TestGetCardEmptyCollection(t *testing.T) {
	e := newEnv(t, Options{})
	card, err := e.s.GetCard()
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestCountsFreshCollection(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	e.addRevCard(2, 1, domain.DefaultDeckID, 0, 10, 2500)
	require.NoError(t, e.s.Reset())

	newCount, lrn, rev, err := e.s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, newCount)
	assert.Equal(t, 0, lrn)
	assert.Equal(t, 1, rev)
}

func TestNewCardGraduatesOnGood(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	leech, err := e.s.AnswerCard(card, domain.EaseGood)
	require.NoError(t, err)
	assert.False(t, leech)

	assert.Equal(t, domain.QueueReview, card.Queue)
	assert.Equal(t, domain.CTypeReview, card.Type)
	assert.Equal(t, 1, card.Ivl)
	assert.Equal(t, int64(e.s.today)+1, card.Due)
	assert.Equal(t, domain.InitialFactor, card.Factor)

	newCount, lrn, rev, err := e.s.Counts()
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 0, 0}, [3]int{newCount, lrn, rev})

	n, err := e.db.ReviewLogCount(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deck := e.reg.Get(domain.DefaultDeckID)
	assert.Equal(t, 1, deck.NewToday.ForDay(e.s.today), "daily counter advanced")
}

func TestNewCardEasyGetsBonusInterval(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseEasy)
	require.NoError(t, err)

	assert.Equal(t, 4, card.Ivl)
	assert.Equal(t, int64(e.s.today)+4, card.Due)
}

func TestLearningStepsAdvanceAndGraduate(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseHard)
	require.NoError(t, err)

	assert.Equal(t, domain.QueueLearning, card.Queue)
	assert.Equal(t, domain.CTypeLearning, card.Type)
	assert.Equal(t, 1, card.StepsLeft, "one of two steps left")
	// Second step is 10 minutes, plus up to 25% backlog smear.
	lo := e.now.Unix() + 600
	assert.GreaterOrEqual(t, card.Due, lo)
	assert.Less(t, card.Due, lo+151)

	// Nothing else is due, so the collapse window hands it back.
	card = e.fetch(1)
	_, err = e.s.AnswerCard(card, domain.EaseHard)
	require.NoError(t, err)

	assert.Equal(t, domain.QueueReview, card.Queue, "final step graduates")
	assert.Equal(t, 1, card.Ivl)
	assert.Equal(t, int64(e.s.today)+1, card.Due)
}

func TestLearningCountTracksRemainingSteps(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseAgain)
	require.NoError(t, err)
	require.Equal(t, 2, card.StepsLeftToday)

	_, lrn, _, err := e.s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, lrn, "both remaining steps counted")

	require.NoError(t, e.s.Reset())
	_, lrn, _, err = e.s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, lrn, "incremental count matches a recount")

	e.fetch(1)
	_, lrn, _, err = e.s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 0, lrn, "fetch removes the card's full step weight")
}

func TestLearningFailResetsSteps(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseHard)
	require.NoError(t, err)
	require.Equal(t, 1, card.StepsLeft)

	card = e.fetch(1)
	_, err = e.s.AnswerCard(card, domain.EaseAgain)
	require.NoError(t, err)
	assert.Equal(t, 2, card.StepsLeft, "failure restarts the step list")
	assert.Equal(t, domain.QueueLearning, card.Queue)
}

func TestReviewGoodInterval(t *testing.T) {
	e := newEnv(t, Options{DisableFuzz: true})
	e.addNote(1)
	e.addRevCard(1, 1, domain.DefaultDeckID, int64(e.s.today), 10, 2500)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseGood)
	require.NoError(t, err)

	assert.Equal(t, 25, card.Ivl, "(10+0) * 2.5")
	assert.Equal(t, 2500, card.Factor, "good leaves the factor alone")
	assert.Equal(t, int64(e.s.today)+25, card.Due)
}

func TestReviewHardInterval(t *testing.T) {
	e := newEnv(t, Options{DisableFuzz: true})
	e.addNote(1)
	e.addRevCard(1, 1, domain.DefaultDeckID, int64(e.s.today), 10, 2500)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseHard)
	require.NoError(t, err)

	assert.Equal(t, 11, card.Ivl, "hard still beats the old interval by a day")
	assert.Equal(t, 2350, card.Factor)
}

func TestReviewEasyInterval(t *testing.T) {
	e := newEnv(t, Options{DisableFuzz: true})
	e.addNote(1)
	e.addRevCard(1, 1, domain.DefaultDeckID, int64(e.s.today), 10, 2500)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseEasy)
	require.NoError(t, err)

	assert.Equal(t, 32, card.Ivl, "(10+0) * 2.5 * 1.3, truncated")
	assert.Equal(t, 2650, card.Factor)
}

func TestLapseEntersRelearnAndRestoresDue(t *testing.T) {
	e := newEnv(t, Options{DisableFuzz: true})
	e.addNote(1)
	e.addRevCard(1, 1, domain.DefaultDeckID, int64(e.s.today), 10, 2500)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseAgain)
	require.NoError(t, err)

	assert.Equal(t, 1, card.Lapses)
	assert.Equal(t, 1, card.Ivl, "default multiplier collapses to the minimum")
	assert.Equal(t, 2300, card.Factor)
	assert.Equal(t, domain.QueueLearning, card.Queue)
	assert.Equal(t, domain.CTypeReview, card.Type, "relearning keeps the review type")
	assert.Equal(t, int64(e.s.today)+1, card.OrigDue, "post-lapse due stashed for graduation")

	card = e.fetch(1)
	_, err = e.s.AnswerCard(card, domain.EaseHard)
	require.NoError(t, err)

	assert.Equal(t, domain.QueueReview, card.Queue)
	assert.Equal(t, int64(e.s.today)+1, card.Due, "stashed due restored on graduation")
	assert.Equal(t, int64(0), card.OrigDue)
	assert.Equal(t, 1, card.Ivl, "relearn graduation keeps the lapsed interval")
}

func TestAnswerContractChecks(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)

	_, err := e.s.AnswerCard(card, domain.Ease(0))
	assert.ErrorIs(t, err, ErrInvalidEase)

	suspended := &domain.Card{ID: 1, Queue: domain.QueueSuspended}
	_, err = e.s.AnswerCard(suspended, domain.EaseGood)
	assert.ErrorIs(t, err, ErrInvalidQueue)

	stranger := &domain.Card{ID: 99, Queue: domain.QueueNew}
	_, err = e.s.AnswerCard(stranger, domain.EaseGood)
	assert.ErrorIs(t, err, ErrCardNotFetched)

	// The fetched card still answers fine afterwards.
	_, err = e.s.AnswerCard(card, domain.EaseGood)
	assert.NoError(t, err)

	// And a second answer of the same card is rejected.
	_, err = e.s.AnswerCard(card, domain.EaseGood)
	assert.ErrorIs(t, err, ErrCardNotFetched)
}

func TestBurySiblingsOnAnswer(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	e.addNewCard(2, 1, domain.DefaultDeckID, 2)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseGood)
	require.NoError(t, err)

	sib := e.card(2)
	assert.Equal(t, domain.QueueBuried, sib.Queue)

	newCount, _, _, err := e.s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 0, newCount, "buried sibling leaves the count")

	buried, err := e.s.HaveBuried()
	require.NoError(t, err)
	assert.True(t, buried)

	require.NoError(t, e.s.UnburyCards())
	sib = e.card(2)
	assert.Equal(t, domain.QueueNew, sib.Queue)
}

func TestDayRolloverUnburies(t *testing.T) {
	e := newEnv(t, Options{})
	e.addNote(1)
	e.addNote(2)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	e.addNewCard(2, 2, domain.DefaultDeckID, 2)
	require.NoError(t, e.s.BuryNote(1))
	require.NoError(t, e.s.BuryCards(2))
	require.Equal(t, domain.QueueBuried, e.card(1).Queue)
	require.Equal(t, domain.QueueManuallyBuried, e.card(2).Queue)

	today := e.s.today
	e.now = e.now.Add(25 * time.Hour)

	_, _, _, err := e.s.Counts()
	require.NoError(t, err)
	assert.Equal(t, today+1, e.s.today)
	assert.Equal(t, domain.QueueNew, e.card(1).Queue, "rollover restores automatic burials")
	assert.Equal(t, domain.QueueManuallyBuried, e.card(2).Queue, "manual burial survives rollover")

	require.NoError(t, e.s.UnburyCards())
	assert.Equal(t, domain.QueueNew, e.card(2).Queue)
}

func TestNewCardSpread(t *testing.T) {
	e := newEnv(t, Options{Spread: SpreadNewLast})
	e.addNote(1)
	e.addNote(2)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	e.addRevCard(2, 2, domain.DefaultDeckID, int64(e.s.today), 10, 2500)
	require.NoError(t, e.s.Reset())

	card, err := e.s.GetCard()
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, int64(2), card.ID, "reviews come first with new-last")
}

func TestDeckLimits(t *testing.T) {
	e := newEnv(t, Options{})

	conf := domain.DefaultDeckConfig()
	assert.Equal(t, 20, newLimitSingle(e.reg.Get(domain.DefaultDeckID), conf, e.s.today))

	d := e.reg.Get(domain.DefaultDeckID)
	d.NewToday = domain.DayCount{Day: e.s.today, Count: 5}
	assert.Equal(t, 15, newLimitSingle(d, conf, e.s.today))

	d.NewToday.Count = 50
	assert.Equal(t, 0, newLimitSingle(d, conf, e.s.today), "never negative")

	d.NewToday = domain.DayCount{Day: e.s.today - 1, Count: 50}
	assert.Equal(t, 20, newLimitSingle(d, conf, e.s.today), "stale counter reads as zero")
}

func TestDeckLimitRespectsAncestors(t *testing.T) {
	e := newEnv(t, Options{})

	tight := domain.DefaultDeckConfig()
	tight.ID = 2
	tight.New.PerDay = 3
	require.NoError(t, e.db.SaveDeckConfig(tight))

	parent, err := e.reg.Create("Parent", false)
	require.NoError(t, err)
	parent.ConfID = 2
	require.NoError(t, e.reg.Save(parent))

	child, err := e.reg.Create("Parent::Child", false)
	require.NoError(t, err)

	lim, err := e.s.deckNewLimit(child.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, lim, "parent's allowance caps the child")
}

func TestNewCardPerDayLimit(t *testing.T) {
	e := newEnv(t, Options{})

	tight := domain.DefaultDeckConfig()
	tight.ID = 2
	tight.New.PerDay = 1
	require.NoError(t, e.db.SaveDeckConfig(tight))
	d := e.reg.Get(domain.DefaultDeckID)
	d.ConfID = 2
	require.NoError(t, e.reg.Save(d))

	e.addNote(1)
	e.addNote(2)
	e.addNewCard(1, 1, domain.DefaultDeckID, 1)
	e.addNewCard(2, 2, domain.DefaultDeckID, 2)
	require.NoError(t, e.s.Reset())

	card := e.fetch(1)
	_, err := e.s.AnswerCard(card, domain.EaseGood)
	require.NoError(t, err)

	require.NoError(t, e.s.Reset())
	got, err := e.s.GetCard()
	require.NoError(t, err)
	assert.Nil(t, got, "daily allowance spent")
}
