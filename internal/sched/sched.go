// Package sched is the card-state machine and due-queue builder: it
// decides which queue each card belongs to, what is due now, and how
// answering a card mutates its interval, due date and queue.
package sched

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/declanbyrne/revdeck/internal/decks"
	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/storage"
)

// Spread controls where new cards appear relative to reviews.
type Spread int

const (
	SpreadDistribute Spread = iota
	SpreadNewLast
	SpreadNewFirst
)

// Options tune a scheduler. Zero values fall back to defaults.
type Options struct {
	// CollapseTime is the grace window for showing a near-due learning
	// card instead of an empty screen.
	CollapseTime time.Duration
	Spread       Spread
	// QueueLimit bounds a single queue refill batch.
	QueueLimit int
	// ReportLimit bounds count queries and the filtered-deck sentinel
	// limit.
	ReportLimit int
	// DisableFuzz turns off review interval randomization.
	DisableFuzz bool
	// Now overrides the clock, for tests.
	Now    func() time.Time
	Logger *slog.Logger
}

// counter tracks the three queue estimates. All mutation goes through
// its methods so counts can never go negative.
type counter struct {
	new int
	lrn int
	rev int
}

func (c *counter) decNew() { c.new = max(0, c.new-1) }
func (c *counter) decRev() { c.rev = max(0, c.rev-1) }

// The learning estimate is a sum of remaining same-day steps, so it
// moves by the card's step weight rather than by one.
func (c *counter) decLrn(n int) { c.lrn = max(0, c.lrn-n) }
func (c *counter) addLrn(n int) { c.lrn += n }

// Scheduler owns all queue state for one open collection. It is not
// internally concurrent: one owner at a time.
type Scheduler struct {
	store *storage.DB
	decks *decks.Registry
	log   *slog.Logger

	collapseTime int64 // seconds
	spread       Spread
	queueLimit   int
	reportLimit  int
	disableFuzz  bool
	now          func() time.Time
	rng          *rand.Rand

	crt       int64
	today     int
	dayCutoff int64

	haveQueues bool
	counts     counter

	newQueue []storage.QueuedCard
	newDids  []int64

	lrnQueue    []storage.QueuedCard
	lrnDayQueue []int64
	lrnDayDids  []int64

	revQueue []int64
	revDids  []int64

	newCardModulus int
	reps           int
	lastFetched    int64
}

// New builds a scheduler over an open collection and performs the
// initial queue reset.
func New(store *storage.DB, registry *decks.Registry, opts Options) (*Scheduler, error) {
	if opts.CollapseTime == 0 {
		opts.CollapseTime = 20 * time.Minute
	}
	if opts.QueueLimit == 0 {
		opts.QueueLimit = 50
	}
	if opts.ReportLimit == 0 {
		opts.ReportLimit = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	crt, err := store.Created()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		store:        store,
		decks:        registry,
		log:          opts.Logger,
		collapseTime: int64(opts.CollapseTime / time.Second),
		spread:       opts.Spread,
		queueLimit:   opts.QueueLimit,
		reportLimit:  opts.ReportLimit,
		disableFuzz:  opts.DisableFuzz,
		now:          opts.Now,
		rng:          rand.New(rand.NewSource(opts.Now().UnixNano())),
		crt:          crt,
	}
	s.updateCutoff()
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// today is days since collection creation; dayCutoff is the next
// rollover instant. Day-granularity dues compare with <= today,
// timestamp-granularity dues with < dayCutoff.
func (s *Scheduler) updateCutoff() {
	now := s.now().Unix()
	s.today = int((now - s.crt) / 86400)
	s.dayCutoff = s.crt + int64(s.today+1)*86400
}

// checkDay rolls the day over when the cached cutoff has passed:
// automatically buried cards come back and all queues are rebuilt.
// Manually buried cards stay put until an explicit unbury. Called
// before every due-card fetch.
func (s *Scheduler) checkDay() error {
	if s.now().Unix() < s.dayCutoff {
		return nil
	}
	s.updateCutoff()
	if err := s.unbury(domain.QueueBuried); err != nil {
		return err
	}
	return s.reset()
}

// Reset invalidates and rebuilds all queues. Call after any bulk
// mutation done outside the scheduler.
func (s *Scheduler) Reset() error {
	s.updateCutoff()
	return s.reset()
}

func (s *Scheduler) reset() error {
	active := s.decks.ActiveDeckIDs()
	if err := s.resetLrn(active); err != nil {
		return err
	}
	if err := s.resetRev(active); err != nil {
		return err
	}
	if err := s.resetNew(active); err != nil {
		return err
	}
	s.haveQueues = true
	s.lastFetched = 0
	return nil
}

// Counts returns the current (new, learning, review) queue estimates.
func (s *Scheduler) Counts() (int, int, int, error) {
	if err := s.checkDay(); err != nil {
		return 0, 0, 0, err
	}
	if !s.haveQueues {
		if err := s.reset(); err != nil {
			return 0, 0, 0, err
		}
	}
	return s.counts.new, s.counts.lrn, s.counts.rev, nil
}

func (s *Scheduler) invalidateQueues() {
	s.haveQueues = false
}

// dayRand returns a generator seeded by the day index, so within one
// day shuffles are stable across refills.
func (s *Scheduler) dayRand() *rand.Rand {
	return rand.New(rand.NewSource(int64(s.today)))
}
