package domain

// ReviewKind tags a review-log row with the queue the answer came from.
type ReviewKind int

const (
	ReviewKindLearn   ReviewKind = 0
	ReviewKindReview  ReviewKind = 1
	ReviewKindRelearn ReviewKind = 2
	ReviewKindCram    ReviewKind = 3
)

// ReviewLogEntry is one append-only review record. ID doubles as the
// millisecond timestamp of the answer.
type ReviewLogEntry struct {
	ID     int64 `db:"id"`
	CardID int64 `db:"cid"`
	// USN is the sync sequence number the entry was created under.
	USN  int  `db:"usn"`
	Ease Ease `db:"ease"`
	// Ivl is the resulting interval: positive days, or negative seconds
	// for a learning step.
	Ivl       int        `db:"ivl"`
	LastIvl   int        `db:"last_ivl"`
	Factor    int        `db:"factor"`
	TimeTaken int        `db:"time_taken"`
	Kind      ReviewKind `db:"kind"`
}
