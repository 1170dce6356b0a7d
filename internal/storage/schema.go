package storage

const schema = `
-- Collection metadata. A single row; crt anchors the day counter.
CREATE TABLE IF NOT EXISTS col (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    crt INTEGER NOT NULL,
    mod INTEGER NOT NULL DEFAULT 0,
    usn INTEGER NOT NULL DEFAULT 0
);

-- One row per reviewable card. due is a position for new cards, a unix
-- timestamp for learning cards and a day index for review cards.
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY,
    nid INTEGER NOT NULL,
    did INTEGER NOT NULL,
    ord INTEGER NOT NULL DEFAULT 0,
    mod INTEGER NOT NULL DEFAULT 0,
    type INTEGER NOT NULL DEFAULT 0,
    queue INTEGER NOT NULL DEFAULT 0,
    due INTEGER NOT NULL DEFAULT 0,
    ivl INTEGER NOT NULL DEFAULT 0,
    factor INTEGER NOT NULL DEFAULT 0,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    steps_left INTEGER NOT NULL DEFAULT 0,
    steps_left_today INTEGER NOT NULL DEFAULT 0,
    odid INTEGER NOT NULL DEFAULT 0,
    odue INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS ix_cards_sched ON cards (did, queue, due);
CREATE INDEX IF NOT EXISTS ix_cards_nid ON cards (nid);

-- Notes carry only what the scheduler needs: the tag set.
CREATE TABLE IF NOT EXISTS notes (
    id INTEGER PRIMARY KEY,
    mod INTEGER NOT NULL DEFAULT 0,
    tags TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS decks (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    conf_id INTEGER NOT NULL DEFAULT 1,
    mod INTEGER NOT NULL DEFAULT 0,
    dyn INTEGER NOT NULL DEFAULT 0,
    new_today_day INTEGER NOT NULL DEFAULT 0,
    new_today_count INTEGER NOT NULL DEFAULT 0,
    rev_today_day INTEGER NOT NULL DEFAULT 0,
    rev_today_count INTEGER NOT NULL DEFAULT 0,
    lrn_today_day INTEGER NOT NULL DEFAULT 0,
    lrn_today_count INTEGER NOT NULL DEFAULT 0,
    dyn_scope_did INTEGER NOT NULL DEFAULT 0,
    dyn_due_only INTEGER NOT NULL DEFAULT 0,
    dyn_limit INTEGER NOT NULL DEFAULT 100,
    dyn_order INTEGER NOT NULL DEFAULT 0,
    dyn_resched INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS deck_config (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    new_delays TEXT NOT NULL DEFAULT '1,10',
    new_grad_ivl INTEGER NOT NULL DEFAULT 1,
    new_easy_ivl INTEGER NOT NULL DEFAULT 4,
    new_initial_factor INTEGER NOT NULL DEFAULT 2500,
    new_per_day INTEGER NOT NULL DEFAULT 20,
    new_separate INTEGER NOT NULL DEFAULT 1,
    new_bury INTEGER NOT NULL DEFAULT 1,
    lapse_delays TEXT NOT NULL DEFAULT '10',
    lapse_mult REAL NOT NULL DEFAULT 0,
    lapse_min_ivl INTEGER NOT NULL DEFAULT 1,
    leech_fails INTEGER NOT NULL DEFAULT 8,
    leech_action INTEGER NOT NULL DEFAULT 0,
    rev_per_day INTEGER NOT NULL DEFAULT 100,
    rev_ease4 REAL NOT NULL DEFAULT 1.3,
    rev_fuzz REAL NOT NULL DEFAULT 0.05,
    rev_min_space INTEGER NOT NULL DEFAULT 1,
    rev_ivl_factor REAL NOT NULL DEFAULT 1,
    rev_max_ivl INTEGER NOT NULL DEFAULT 36500,
    rev_bury INTEGER NOT NULL DEFAULT 1
);

-- Append-only review log; id is the millisecond answer timestamp.
CREATE TABLE IF NOT EXISTS revlog (
    id INTEGER PRIMARY KEY,
    cid INTEGER NOT NULL,
    usn INTEGER NOT NULL DEFAULT 0,
    ease INTEGER NOT NULL,
    ivl INTEGER NOT NULL,
    last_ivl INTEGER NOT NULL,
    factor INTEGER NOT NULL,
    time_taken INTEGER NOT NULL DEFAULT 0,
    kind INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS ix_revlog_cid ON revlog (cid);
`
