package domain

// LeechAction is what happens to a card crossing the leech threshold.
type LeechAction int

const (
	LeechSuspend LeechAction = 0
	LeechTagOnly LeechAction = 1
)

// NewCardConfig covers cards that have never graduated.
type NewCardConfig struct {
	// Delays are the learning steps in minutes.
	Delays []float64 `validate:"min=1"`
	// GradIvl and EasyIvl are the graduating intervals in days for a
	// normal and an early (easy) graduation.
	GradIvl       int `validate:"gte=1"`
	EasyIvl       int `validate:"gte=1"`
	InitialFactor int `validate:"gte=1300"`
	PerDay        int `validate:"gte=0"`
	// Separate rotates sibling cards apart in the new queue.
	Separate bool
	Bury     bool
}

// LapseConfig covers failed review cards.
type LapseConfig struct {
	// Delays are the relearning steps in minutes; empty skips
	// relearning entirely.
	Delays []float64
	// Mult scales the interval of a lapsed card.
	Mult   float64 `validate:"gte=0,lte=1"`
	MinIvl int     `validate:"gte=1"`
	// LeechFails is the lapse count that flags a leech; zero disables
	// leech detection.
	LeechFails  int `validate:"gte=0"`
	LeechAction LeechAction
}

// ReviewConfig covers graduated cards.
type ReviewConfig struct {
	PerDay int     `validate:"gte=0"`
	Ease4  float64 `validate:"gte=1"`
	// Fuzz is the ratio used for sibling due-day leeway.
	Fuzz     float64 `validate:"gte=0,lte=1"`
	MinSpace int     `validate:"gte=1"`
	// IvlFactor scales every computed review interval.
	IvlFactor float64 `validate:"gt=0"`
	MaxIvl    int     `validate:"gte=1"`
	Bury      bool
}

// DeckConfig is a shared scheduling parameter set referenced by decks.
type DeckConfig struct {
	ID   int64
	Name string

	New    NewCardConfig
	Lapse  LapseConfig
	Review ReviewConfig
}

// DefaultDeckConfig mirrors the stock parameter set new collections
// ship with.
func DefaultDeckConfig() *DeckConfig {
	return &DeckConfig{
		ID:   1,
		Name: "Default",
		New: NewCardConfig{
			Delays:        []float64{1, 10},
			GradIvl:       1,
			EasyIvl:       4,
			InitialFactor: InitialFactor,
			PerDay:        20,
			Separate:      true,
			Bury:          true,
		},
		Lapse: LapseConfig{
			Delays:      []float64{10},
			Mult:        0,
			MinIvl:      1,
			LeechFails:  8,
			LeechAction: LeechSuspend,
		},
		Review: ReviewConfig{
			PerDay:    100,
			Ease4:     1.3,
			Fuzz:      0.05,
			MinSpace:  1,
			IvlFactor: 1.0,
			MaxIvl:    36500,
			Bury:      true,
		},
	}
}
