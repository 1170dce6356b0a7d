package storage

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/declanbyrne/revdeck/internal/domain"
)

// CardOrder selects the ordering of a card query.
type CardOrder int

const (
	OrderNone CardOrder = iota
	OrderByDue
	OrderByOldestModified
	OrderByRandom
	OrderByIntervalAsc
	OrderByIntervalDesc
	OrderByLapsesDesc
	OrderByNoteIDAsc
	OrderByNoteIDDesc
)

func (o CardOrder) sql() string {
	switch o {
	case OrderByDue:
		return "due, ord"
	case OrderByOldestModified:
		return "mod"
	case OrderByRandom:
		return "random()"
	case OrderByIntervalAsc:
		return "ivl"
	case OrderByIntervalDesc:
		return "ivl DESC"
	case OrderByLapsesDesc:
		return "lapses DESC"
	case OrderByNoteIDAsc:
		return "nid"
	case OrderByNoteIDDesc:
		return "nid DESC"
	}
	return ""
}

// CardQuery is the storage predicate of the scheduler: deck scope,
// queue/type membership, due ranges, ordering and a row limit.
type CardQuery struct {
	DeckIDs []int64
	Queues  []domain.Queue
	Types   []domain.CType
	NoteID  int64
	// DueAtMost keeps rows with due <= the value (day-granularity
	// comparisons); DueBelow keeps rows with due < the value
	// (timestamp-granularity comparisons).
	DueAtMost *int64
	DueBelow  *int64
	// ExcludeFiltered drops cards already on loan to a filtered deck.
	ExcludeFiltered bool
	Order           CardOrder
	Limit           int
}

// DueLimit returns a pointer usable for CardQuery due bounds.
func DueLimit(v int64) *int64 { return &v }

func (q CardQuery) build(selectCols string) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	if len(q.DeckIDs) > 0 {
		in, inArgs, err := sqlx.In(`did IN (?)`, q.DeckIDs)
		if err != nil {
			return "", nil, fmt.Errorf("failed to expand deck ids: %w", err)
		}
		where = append(where, in)
		args = append(args, inArgs...)
	}
	if len(q.Queues) > 0 {
		in, inArgs, err := sqlx.In(`queue IN (?)`, q.Queues)
		if err != nil {
			return "", nil, fmt.Errorf("failed to expand queues: %w", err)
		}
		where = append(where, in)
		args = append(args, inArgs...)
	}
	if len(q.Types) > 0 {
		in, inArgs, err := sqlx.In(`type IN (?)`, q.Types)
		if err != nil {
			return "", nil, fmt.Errorf("failed to expand types: %w", err)
		}
		where = append(where, in)
		args = append(args, inArgs...)
	}
	if q.NoteID != 0 {
		where = append(where, `nid = ?`)
		args = append(args, q.NoteID)
	}
	if q.DueAtMost != nil {
		where = append(where, `due <= ?`)
		args = append(args, *q.DueAtMost)
	}
	if q.DueBelow != nil {
		where = append(where, `due < ?`)
		args = append(args, *q.DueBelow)
	}
	if q.ExcludeFiltered {
		where = append(where, `odid = 0`)
	}

	sb := strings.Builder{}
	sb.WriteString("SELECT " + selectCols + " FROM cards")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if o := q.Order.sql(); o != "" {
		sb.WriteString(" ORDER BY " + o)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args, nil
}

// QueuedCard is the slim row the queue builder works with.
type QueuedCard struct {
	ID     int64 `db:"id"`
	NoteID int64 `db:"nid"`
	Due    int64 `db:"due"`
}

// QueryCardIDs returns matching card ids.
func (db *DB) QueryCardIDs(q CardQuery) ([]int64, error) {
	stmt, args, err := q.build("id")
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := sqlx.Select(db.q, &ids, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to query card ids: %w", err)
	}
	return ids, nil
}

// QueryQueued returns matching (id, nid, due) rows.
func (db *DB) QueryQueued(q CardQuery) ([]QueuedCard, error) {
	stmt, args, err := q.build("id, nid, due")
	if err != nil {
		return nil, err
	}
	var rows []QueuedCard
	if err := sqlx.Select(db.q, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to query queued cards: %w", err)
	}
	return rows, nil
}

// CountCards returns the number of matching cards. A Limit caps the
// count, mirroring "count up to the daily allowance" queries.
func (db *DB) CountCards(q CardQuery) (int, error) {
	inner, args, err := q.build("1")
	if err != nil {
		return 0, err
	}
	var n int
	if err := sqlx.Get(db.q, &n, "SELECT count(*) FROM ("+inner+")", args...); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

// SumStepsLeftToday sums today's remaining learning steps over the
// matching cards, the learning-queue count estimate.
func (db *DB) SumStepsLeftToday(q CardQuery) (int, error) {
	inner, args, err := q.build("steps_left_today")
	if err != nil {
		return 0, err
	}
	var n int
	if err := sqlx.Get(db.q, &n, "SELECT coalesce(sum(steps_left_today), 0) FROM ("+inner+")", args...); err != nil {
		return 0, fmt.Errorf("failed to sum learning steps: %w", err)
	}
	return n, nil
}
