package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/declanbyrne/revdeck/internal/domain"
)

// DB wraps the collection database. All query methods go through q so
// the same code runs inside and outside a transaction.
type DB struct {
	conn *sqlx.DB
	q    sqlx.Ext
}

// Open creates a new database connection, ensures the schema is up to
// date and seeds the collection row, default deck and default config.
func Open(dsn string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// The scheduler owns its collection exclusively; a single
	// connection also keeps in-memory databases coherent.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	db := &DB{conn: conn, q: conn}
	if err := db.seed(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) seed() error {
	now := time.Now().Unix()
	if _, err := db.q.Exec(`INSERT OR IGNORE INTO col (id, crt, mod) VALUES (1, ?, ?)`, now, now); err != nil {
		return fmt.Errorf("failed to seed collection row: %w", err)
	}
	cfg := domain.DefaultDeckConfig()
	var confCount int
	if err := sqlx.Get(db.q, &confCount, `SELECT count(*) FROM deck_config WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to check default config: %w", err)
	}
	if confCount == 0 {
		if err := db.SaveDeckConfig(cfg); err != nil {
			return err
		}
	}
	if _, err := db.q.Exec(`INSERT OR IGNORE INTO decks (id, name, conf_id) VALUES (?, 'Default', 1)`,
		domain.DefaultDeckID); err != nil {
		return fmt.Errorf("failed to seed default deck: %w", err)
	}
	return nil
}

// Created returns the collection creation timestamp that anchors the
// day counter.
func (db *DB) Created() (int64, error) {
	var crt int64
	if err := sqlx.Get(db.q, &crt, `SELECT crt FROM col WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("failed to read collection creation time: %w", err)
	}
	return crt, nil
}

// USN returns the current sync sequence number.
func (db *DB) USN() (int, error) {
	var usn int
	if err := sqlx.Get(db.q, &usn, `SELECT usn FROM col WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("failed to read usn: %w", err)
	}
	return usn, nil
}

// InTx runs fn inside a single transaction. The *DB handed to fn
// routes every query through the transaction; fn must not retain it.
func (db *DB) InTx(fn func(tx *DB) error) error {
	if db.q != sqlx.Ext(db.conn) {
		// Already inside a transaction; sqlite has no nesting.
		return fn(db)
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&DB{conn: db.conn, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCard retrieves a card by id, or nil if it does not exist.
func (db *DB) GetCard(id int64) (*domain.Card, error) {
	var c domain.Card
	err := sqlx.Get(db.q, &c, `
		SELECT id, nid, did, ord, mod, type, queue, due, ivl, factor, reps,
		       lapses, steps_left, steps_left_today, odid, odue
		FROM cards WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	return &c, nil
}

// SaveCard inserts or updates a card.
func (db *DB) SaveCard(c *domain.Card) error {
	c.Mod = time.Now().Unix()
	_, err := sqlx.NamedExec(db.q, `
		INSERT INTO cards (id, nid, did, ord, mod, type, queue, due, ivl,
		                   factor, reps, lapses, steps_left, steps_left_today, odid, odue)
		VALUES (:id, :nid, :did, :ord, :mod, :type, :queue, :due, :ivl,
		        :factor, :reps, :lapses, :steps_left, :steps_left_today, :odid, :odue)
		ON CONFLICT(id) DO UPDATE SET
		    nid = excluded.nid, did = excluded.did, ord = excluded.ord,
		    mod = excluded.mod, type = excluded.type, queue = excluded.queue,
		    due = excluded.due, ivl = excluded.ivl, factor = excluded.factor,
		    reps = excluded.reps, lapses = excluded.lapses,
		    steps_left = excluded.steps_left,
		    steps_left_today = excluded.steps_left_today,
		    odid = excluded.odid, odue = excluded.odue`, c)
	if err != nil {
		return fmt.Errorf("failed to save card %d: %w", c.ID, err)
	}
	return nil
}

// GetNote retrieves a note by id, or nil if it does not exist.
func (db *DB) GetNote(id int64) (*domain.Note, error) {
	var n domain.Note
	err := sqlx.Get(db.q, &n, `SELECT id, mod, tags FROM notes WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get note %d: %w", id, err)
	}
	return &n, nil
}

// SaveNote inserts or updates a note.
func (db *DB) SaveNote(n *domain.Note) error {
	n.Mod = time.Now().Unix()
	_, err := db.q.Exec(`
		INSERT INTO notes (id, mod, tags) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET mod = excluded.mod, tags = excluded.tags`,
		n.ID, n.Mod, n.Tags)
	if err != nil {
		return fmt.Errorf("failed to save note %d: %w", n.ID, err)
	}
	return nil
}

// SiblingReviewDues returns the due days of the note's other
// review-type cards, used to spread siblings across days.
func (db *DB) SiblingReviewDues(noteID, excludeCardID int64) ([]int64, error) {
	var dues []int64
	err := sqlx.Select(db.q, &dues, `
		SELECT due FROM cards WHERE nid = ? AND type = 2 AND id != ?`,
		noteID, excludeCardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sibling dues for note %d: %w", noteID, err)
	}
	return dues, nil
}

// MaxNewDue returns the highest position in use among new cards.
func (db *DB) MaxNewDue() (int64, error) {
	var due sql.NullInt64
	err := sqlx.Get(db.q, &due, `SELECT max(due) FROM cards WHERE type = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to query max new position: %w", err)
	}
	return due.Int64, nil
}

// AppendReviewLog inserts a review-log row. A duplicate millisecond id
// (two answers within the same clock tick) is retried with a bumped id
// rather than surfaced.
func (db *DB) AppendReviewLog(e *domain.ReviewLogEntry) error {
	const insert = `
		INSERT INTO revlog (id, cid, usn, ease, ivl, last_ivl, factor, time_taken, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for range 10 {
		_, err := db.q.Exec(insert, e.ID, e.CardID, e.USN, e.Ease, e.Ivl,
			e.LastIvl, e.Factor, e.TimeTaken, e.Kind)
		if err == nil {
			return nil
		}
		if !isConstraintErr(err) {
			return fmt.Errorf("failed to append review log for card %d: %w", e.CardID, err)
		}
		e.ID++
	}
	return fmt.Errorf("failed to append review log for card %d: id range exhausted", e.CardID)
}

// DeleteLastReviewLogFor removes the most recent log row for a card,
// supporting answer undo.
func (db *DB) DeleteLastReviewLogFor(cardID int64) error {
	_, err := db.q.Exec(`
		DELETE FROM revlog WHERE id = (SELECT max(id) FROM revlog WHERE cid = ?)`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete last review log for card %d: %w", cardID, err)
	}
	return nil
}

// ReviewLogCount returns the number of log rows for a card.
func (db *DB) ReviewLogCount(cardID int64) (int, error) {
	var n int
	if err := sqlx.Get(db.q, &n, `SELECT count(*) FROM revlog WHERE cid = ?`, cardID); err != nil {
		return 0, fmt.Errorf("failed to count review log rows for card %d: %w", cardID, err)
	}
	return n, nil
}

func isConstraintErr(err error) bool {
	// modernc.org/sqlite reports SQLITE_CONSTRAINT in the message; we
	// avoid depending on its internal error type.
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "constraint failed"))
}
