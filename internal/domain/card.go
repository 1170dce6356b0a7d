package domain

import "time"

// Queue is the scheduling bucket a card currently occupies.
type Queue int

const (
	QueueManuallyBuried Queue = -3
	QueueBuried         Queue = -2
	QueueSuspended      Queue = -1
	QueueNew            Queue = 0
	QueueLearning       Queue = 1
	QueueReview         Queue = 2
	QueueDayLearning    Queue = 3
)

// String returns a short label for logs and CLI output.
func (q Queue) String() string {
	switch q {
	case QueueManuallyBuried:
		return "manually-buried"
	case QueueBuried:
		return "buried"
	case QueueSuspended:
		return "suspended"
	case QueueNew:
		return "new"
	case QueueLearning:
		return "learning"
	case QueueReview:
		return "review"
	case QueueDayLearning:
		return "day-learning"
	}
	return "unknown"
}

// Buried reports whether the queue is one of the buried buckets.
func (q Queue) Buried() bool {
	return q == QueueBuried || q == QueueManuallyBuried
}

// CType is the longer-lived classification of a card, used to decide
// graduation behaviour. A lapsed review card relearning its steps keeps
// CTypeReview while sitting in the learning queue.
type CType int

const (
	CTypeNew      CType = 0
	CTypeLearning CType = 1
	CTypeReview   CType = 2
)

// Ease is the user's self-graded recall quality.
type Ease int

const (
	EaseAgain Ease = 1
	EaseHard  Ease = 2
	EaseGood  Ease = 3
	EaseEasy  Ease = 4
)

// Valid reports whether e is within the 1-4 grading scale.
func (e Ease) Valid() bool {
	return e >= EaseAgain && e <= EaseEasy
}

const (
	// InitialFactor is the default ease factor in permille.
	InitialFactor = 2500
	// MinFactor is the floor the ease factor is clamped at.
	MinFactor = 1300
)

// Card is the unit of review.
//
// Due is interpreted through the queue tag: a position for new cards, a
// unix timestamp (seconds) for same-day learning cards, and a day index
// for review and day-learning cards.
type Card struct {
	ID     int64 `db:"id"`
	NoteID int64 `db:"nid"`
	DeckID int64 `db:"did"`
	// Ord is the template ordinal the card renders.
	Ord int   `db:"ord"`
	Mod int64 `db:"mod"`

	Type  CType `db:"type"`
	Queue Queue `db:"queue"`
	Due   int64 `db:"due"`

	// Ivl is the review interval: positive days. Negative seconds only
	// appear in review-log rows for learning steps, never on the card.
	Ivl    int `db:"ivl"`
	Factor int `db:"factor"`
	Reps   int `db:"reps"`
	Lapses int `db:"lapses"`

	// StepsLeft is the number of learning steps remaining in total;
	// StepsLeftToday is how many of those can still be completed before
	// the day cutoff. Together they replace the packed legacy "left".
	StepsLeft      int `db:"steps_left"`
	StepsLeftToday int `db:"steps_left_today"`

	// OrigDeckID and OrigDue are set only while the card is temporarily
	// relocated into a filtered deck, and restore it on empty/graduate.
	OrigDeckID int64 `db:"odid"`
	OrigDue    int64 `db:"odue"`

	// FetchedAt is set when the scheduler hands the card out, and feeds
	// the time-taken column of the review log. Not persisted.
	FetchedAt time.Time `db:"-"`
}

// InFiltered reports whether the card is currently on loan to a
// filtered deck.
func (c *Card) InFiltered() bool {
	return c.OrigDeckID != 0
}

// CurrentDeckID is the deck whose configuration governs scheduling:
// the original deck while the card sits in a filtered deck.
func (c *Card) CurrentDeckID() int64 {
	if c.OrigDeckID != 0 {
		return c.OrigDeckID
	}
	return c.DeckID
}

const maxAnswerSeconds = 60

// TimeTakenMS is the capped answer duration recorded in the review log.
func (c *Card) TimeTakenMS(now time.Time) int {
	if c.FetchedAt.IsZero() {
		return 0
	}
	taken := now.Sub(c.FetchedAt)
	if taken < 0 {
		taken = 0
	}
	if taken > maxAnswerSeconds*time.Second {
		taken = maxAnswerSeconds * time.Second
	}
	return int(taken.Milliseconds())
}

// PackSteps encodes step counters in the legacy "left" layout
// (total + today*1000) used by older collections and their review logs.
func PackSteps(total, today int) int {
	return total + today*1000
}

// UnpackSteps splits a legacy "left" value into total and today counts.
func UnpackSteps(left int) (total, today int) {
	return left % 1000, left / 1000
}
