package storage

const schema = `
-- The 'cards' table stores each flashcard and its Leitner box state.
-- 'extra' carries record fields this version does not interpret, as JSON.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    tag TEXT NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 1,
    missed_count INTEGER NOT NULL DEFAULT 0,
    last_reviewed TEXT,
    extra TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- The 'schedule' table holds the single day-cycle configuration as one row.
-- day_levels is a JSON object keyed by decimal cycle-day strings "1".."64".
CREATE TABLE IF NOT EXISTS schedule (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    start_date TEXT NOT NULL,
    day_levels TEXT NOT NULL
);

-- The 'review_ledger' table records which cards already received a verdict
-- on a given calendar date. The primary key makes inserts idempotent.
CREATE TABLE IF NOT EXISTS review_ledger (
    date TEXT NOT NULL,
    card_id TEXT NOT NULL,
    PRIMARY KEY (date, card_id)
);

-- The 'review_events' table is the append-only review history.
CREATE TABLE IF NOT EXISTS review_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    card_id TEXT NOT NULL,
    correct INTEGER NOT NULL
);

-- The 'sources' table tracks deck origins, either a local directory or a
-- git repository, consumed by the sync process.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned TIMESTAMP
);

-- The 'imported_lines' table remembers content fingerprints of deck lines
-- already imported, so re-syncing a source does not duplicate cards.
CREATE TABLE IF NOT EXISTS imported_lines (
    fingerprint TEXT PRIMARY KEY,
    card_id TEXT NOT NULL
);
`
