package sched

import "errors"

// Contract violations. These surface before any write so persisted
// state is never corrupted by a misbehaving caller.
var (
	// ErrInvalidQueue means a card arrived for answering with a queue
	// value outside the answerable set.
	ErrInvalidQueue = errors.New("sched: card queue is not answerable")
	// ErrInvalidEase means the ease grade was outside 1-4.
	ErrInvalidEase = errors.New("sched: ease must be between 1 and 4")
	// ErrCardNotFetched means the answered card was not the one last
	// handed out by GetCard.
	ErrCardNotFetched = errors.New("sched: card was not fetched from this scheduler")
	// ErrNotDynamic means a filtered-deck operation targeted a regular
	// deck.
	ErrNotDynamic = errors.New("sched: deck is not a filtered deck")
)
