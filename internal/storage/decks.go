package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/declanbyrne/revdeck/internal/domain"
)

type deckRow struct {
	ID            int64  `db:"id"`
	Name          string `db:"name"`
	ConfID        int64  `db:"conf_id"`
	Mod           int64  `db:"mod"`
	Dyn           bool   `db:"dyn"`
	NewTodayDay   int    `db:"new_today_day"`
	NewTodayCount int    `db:"new_today_count"`
	RevTodayDay   int    `db:"rev_today_day"`
	RevTodayCount int    `db:"rev_today_count"`
	LrnTodayDay   int    `db:"lrn_today_day"`
	LrnTodayCount int    `db:"lrn_today_count"`
	DynScopeDid   int64  `db:"dyn_scope_did"`
	DynDueOnly    bool   `db:"dyn_due_only"`
	DynLimit      int    `db:"dyn_limit"`
	DynOrder      int    `db:"dyn_order"`
	DynResched    bool   `db:"dyn_resched"`
}

func (r deckRow) deck() *domain.Deck {
	return &domain.Deck{
		ID:       r.ID,
		Name:     r.Name,
		ConfID:   r.ConfID,
		Mod:      r.Mod,
		Dyn:      r.Dyn,
		NewToday: domain.DayCount{Day: r.NewTodayDay, Count: r.NewTodayCount},
		RevToday: domain.DayCount{Day: r.RevTodayDay, Count: r.RevTodayCount},
		LrnToday: domain.DayCount{Day: r.LrnTodayDay, Count: r.LrnTodayCount},
		Terms: domain.DynTerms{
			ScopeDeckID: r.DynScopeDid,
			DueOnly:     r.DynDueOnly,
			Limit:       r.DynLimit,
			Order:       domain.DynOrder(r.DynOrder),
			Resched:     r.DynResched,
		},
	}
}

const deckCols = `id, name, conf_id, mod, dyn,
	new_today_day, new_today_count, rev_today_day, rev_today_count,
	lrn_today_day, lrn_today_count,
	dyn_scope_did, dyn_due_only, dyn_limit, dyn_order, dyn_resched`

// AllDecks returns every deck ordered by name path.
func (db *DB) AllDecks() ([]*domain.Deck, error) {
	var rows []deckRow
	if err := sqlx.Select(db.q, &rows, `SELECT `+deckCols+` FROM decks ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to load decks: %w", err)
	}
	decks := make([]*domain.Deck, 0, len(rows))
	for _, r := range rows {
		decks = append(decks, r.deck())
	}
	return decks, nil
}

// GetDeck retrieves a deck by id, or nil if it does not exist.
func (db *DB) GetDeck(id int64) (*domain.Deck, error) {
	var r deckRow
	err := sqlx.Get(db.q, &r, `SELECT `+deckCols+` FROM decks WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deck %d: %w", id, err)
	}
	return r.deck(), nil
}

// SaveDeck inserts or updates a deck.
func (db *DB) SaveDeck(d *domain.Deck) error {
	d.Mod = time.Now().Unix()
	_, err := db.q.Exec(`
		INSERT INTO decks (id, name, conf_id, mod, dyn,
		    new_today_day, new_today_count, rev_today_day, rev_today_count,
		    lrn_today_day, lrn_today_count,
		    dyn_scope_did, dyn_due_only, dyn_limit, dyn_order, dyn_resched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name, conf_id = excluded.conf_id,
		    mod = excluded.mod, dyn = excluded.dyn,
		    new_today_day = excluded.new_today_day,
		    new_today_count = excluded.new_today_count,
		    rev_today_day = excluded.rev_today_day,
		    rev_today_count = excluded.rev_today_count,
		    lrn_today_day = excluded.lrn_today_day,
		    lrn_today_count = excluded.lrn_today_count,
		    dyn_scope_did = excluded.dyn_scope_did,
		    dyn_due_only = excluded.dyn_due_only,
		    dyn_limit = excluded.dyn_limit,
		    dyn_order = excluded.dyn_order,
		    dyn_resched = excluded.dyn_resched`,
		d.ID, d.Name, d.ConfID, d.Mod, d.Dyn,
		d.NewToday.Day, d.NewToday.Count, d.RevToday.Day, d.RevToday.Count,
		d.LrnToday.Day, d.LrnToday.Count,
		d.Terms.ScopeDeckID, d.Terms.DueOnly, d.Terms.Limit, int(d.Terms.Order), d.Terms.Resched)
	if err != nil {
		return fmt.Errorf("failed to save deck %d: %w", d.ID, err)
	}
	return nil
}

// DeleteDeck removes a deck row. Cards are not touched; callers
// reassign them first.
func (db *DB) DeleteDeck(id int64) error {
	if id == domain.DefaultDeckID {
		return fmt.Errorf("default deck cannot be deleted")
	}
	if _, err := db.q.Exec(`DELETE FROM decks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck %d: %w", id, err)
	}
	return nil
}

// MoveDeckCards reassigns every card of one deck to another.
func (db *DB) MoveDeckCards(fromDeckID, toDeckID int64) error {
	_, err := db.q.Exec(`UPDATE cards SET did = ?, mod = ? WHERE did = ?`,
		toDeckID, time.Now().Unix(), fromDeckID)
	if err != nil {
		return fmt.Errorf("failed to move cards from deck %d to %d: %w", fromDeckID, toDeckID, err)
	}
	return nil
}

type deckConfigRow struct {
	ID               int64   `db:"id"`
	Name             string  `db:"name"`
	NewDelays        string  `db:"new_delays"`
	NewGradIvl       int     `db:"new_grad_ivl"`
	NewEasyIvl       int     `db:"new_easy_ivl"`
	NewInitialFactor int     `db:"new_initial_factor"`
	NewPerDay        int     `db:"new_per_day"`
	NewSeparate      bool    `db:"new_separate"`
	NewBury          bool    `db:"new_bury"`
	LapseDelays      string  `db:"lapse_delays"`
	LapseMult        float64 `db:"lapse_mult"`
	LapseMinIvl      int     `db:"lapse_min_ivl"`
	LeechFails       int     `db:"leech_fails"`
	LeechAction      int     `db:"leech_action"`
	RevPerDay        int     `db:"rev_per_day"`
	RevEase4         float64 `db:"rev_ease4"`
	RevFuzz          float64 `db:"rev_fuzz"`
	RevMinSpace      int     `db:"rev_min_space"`
	RevIvlFactor     float64 `db:"rev_ivl_factor"`
	RevMaxIvl        int     `db:"rev_max_ivl"`
	RevBury          bool    `db:"rev_bury"`
}

func parseDelays(s string) []float64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func formatDelays(delays []float64) string {
	parts := make([]string, 0, len(delays))
	for _, d := range delays {
		parts = append(parts, strconv.FormatFloat(d, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

func (r deckConfigRow) config() *domain.DeckConfig {
	return &domain.DeckConfig{
		ID:   r.ID,
		Name: r.Name,
		New: domain.NewCardConfig{
			Delays:        parseDelays(r.NewDelays),
			GradIvl:       r.NewGradIvl,
			EasyIvl:       r.NewEasyIvl,
			InitialFactor: r.NewInitialFactor,
			PerDay:        r.NewPerDay,
			Separate:      r.NewSeparate,
			Bury:          r.NewBury,
		},
		Lapse: domain.LapseConfig{
			Delays:      parseDelays(r.LapseDelays),
			Mult:        r.LapseMult,
			MinIvl:      r.LapseMinIvl,
			LeechFails:  r.LeechFails,
			LeechAction: domain.LeechAction(r.LeechAction),
		},
		Review: domain.ReviewConfig{
			PerDay:    r.RevPerDay,
			Ease4:     r.RevEase4,
			Fuzz:      r.RevFuzz,
			MinSpace:  r.RevMinSpace,
			IvlFactor: r.RevIvlFactor,
			MaxIvl:    r.RevMaxIvl,
			Bury:      r.RevBury,
		},
	}
}

const deckConfigCols = `id, name, new_delays, new_grad_ivl, new_easy_ivl,
	new_initial_factor, new_per_day, new_separate, new_bury,
	lapse_delays, lapse_mult, lapse_min_ivl, leech_fails, leech_action,
	rev_per_day, rev_ease4, rev_fuzz, rev_min_space, rev_ivl_factor,
	rev_max_ivl, rev_bury`

// GetDeckConfig retrieves a config set by id, or nil if absent.
func (db *DB) GetDeckConfig(id int64) (*domain.DeckConfig, error) {
	var r deckConfigRow
	err := sqlx.Get(db.q, &r, `SELECT `+deckConfigCols+` FROM deck_config WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deck config %d: %w", id, err)
	}
	return r.config(), nil
}

// SaveDeckConfig inserts or updates a config set.
func (db *DB) SaveDeckConfig(c *domain.DeckConfig) error {
	_, err := db.q.Exec(`
		INSERT INTO deck_config (id, name, new_delays, new_grad_ivl, new_easy_ivl,
		    new_initial_factor, new_per_day, new_separate, new_bury,
		    lapse_delays, lapse_mult, lapse_min_ivl, leech_fails, leech_action,
		    rev_per_day, rev_ease4, rev_fuzz, rev_min_space, rev_ivl_factor,
		    rev_max_ivl, rev_bury)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name, new_delays = excluded.new_delays,
		    new_grad_ivl = excluded.new_grad_ivl, new_easy_ivl = excluded.new_easy_ivl,
		    new_initial_factor = excluded.new_initial_factor,
		    new_per_day = excluded.new_per_day, new_separate = excluded.new_separate,
		    new_bury = excluded.new_bury, lapse_delays = excluded.lapse_delays,
		    lapse_mult = excluded.lapse_mult, lapse_min_ivl = excluded.lapse_min_ivl,
		    leech_fails = excluded.leech_fails, leech_action = excluded.leech_action,
		    rev_per_day = excluded.rev_per_day, rev_ease4 = excluded.rev_ease4,
		    rev_fuzz = excluded.rev_fuzz, rev_min_space = excluded.rev_min_space,
		    rev_ivl_factor = excluded.rev_ivl_factor, rev_max_ivl = excluded.rev_max_ivl,
		    rev_bury = excluded.rev_bury`,
		c.ID, c.Name, formatDelays(c.New.Delays), c.New.GradIvl, c.New.EasyIvl,
		c.New.InitialFactor, c.New.PerDay, c.New.Separate, c.New.Bury,
		formatDelays(c.Lapse.Delays), c.Lapse.Mult, c.Lapse.MinIvl,
		c.Lapse.LeechFails, int(c.Lapse.LeechAction),
		c.Review.PerDay, c.Review.Ease4, c.Review.Fuzz, c.Review.MinSpace,
		c.Review.IvlFactor, c.Review.MaxIvl, c.Review.Bury)
	if err != nil {
		return fmt.Errorf("failed to save deck config %d: %w", c.ID, err)
	}
	return nil
}
