package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/schedule"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to
// date. A missing file is created, so a first run starts from an empty
// card set rather than an error.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer; one connection serializes every
	// read-modify-write so concurrent sessions cannot interleave.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `id, front, back, tag, level, missed_count, last_reviewed, extra`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var c domain.Card
	var lastReviewed, extra sql.NullString
	if err := row.Scan(&c.ID, &c.Front, &c.Back, &c.Tag, &c.Level, &c.MissedCount, &lastReviewed, &extra); err != nil {
		return domain.Card{}, err
	}
	if lastReviewed.Valid && lastReviewed.String != "" {
		t, err := time.ParseInLocation(domain.DateFormat, lastReviewed.String, time.UTC)
		if err != nil {
			return domain.Card{}, fmt.Errorf("corrupt last_reviewed for card %s: %w", c.ID, err)
		}
		c.LastReviewed = &t
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &c.Extra); err != nil {
			return domain.Card{}, fmt.Errorf("corrupt extra fields for card %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func cardArgs(c domain.Card) (lastReviewed, extra any, err error) {
	lastReviewed = nil
	if c.LastReviewed != nil {
		lastReviewed = domain.DateOf(*c.LastReviewed)
	}
	extra = nil
	if len(c.Extra) > 0 {
		raw, mErr := json.Marshal(c.Extra)
		if mErr != nil {
			return nil, nil, fmt.Errorf("failed to encode extra fields for card %s: %w", c.ID, mErr)
		}
		extra = string(raw)
	}
	return lastReviewed, extra, nil
}

// InsertCard inserts a new card into the database.
func (db *DB) InsertCard(c domain.Card) error {
	lastReviewed, extra, err := cardArgs(c)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`
		INSERT INTO cards (id, front, back, tag, level, missed_count, last_reviewed, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Front, c.Back, c.Tag, c.Level, c.MissedCount, lastReviewed, extra)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
	}
	return nil
}

// FindCard retrieves a card by its id. Returns (nil, nil) when absent.
func (db *DB) FindCard(id string) (*domain.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// AllCards retrieves every card in insertion order. The order is stable
// across reloads, which the session layer relies on for skip semantics.
func (db *DB) AllCards() ([]domain.Card, error) {
	rows, err := db.conn.Query(`SELECT ` + cardColumns + ` FROM cards ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading card rows: %w", err)
	}
	return cards, nil
}

// UpdateCard rewrites a card's mutable fields.
func (db *DB) UpdateCard(c domain.Card) error {
	lastReviewed, extra, err := cardArgs(c)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`
		UPDATE cards
		SET front = ?, back = ?, tag = ?, level = ?, missed_count = ?, last_reviewed = ?, extra = ?
		WHERE id = ?
	`, c.Front, c.Back, c.Tag, c.Level, c.MissedCount, lastReviewed, extra, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCard removes a card and purges its entry from today's ledger in
// one transaction, so a deleted card can never linger as "reviewed".
func (db *DB) DeleteCard(id, today string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete for card %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM review_ledger WHERE date = ? AND card_id = ?`, today, id); err != nil {
		return fmt.Errorf("failed to purge ledger entry for card %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for card %s: %w", id, err)
	}
	return nil
}

// ApplyReview persists the outcome of one review as a single atomic unit:
// the card's new state, the ledger entry for the day, and the history
// event either all become visible or none do.
func (db *DB) ApplyReview(c domain.Card, event domain.ReviewEvent) error {
	lastReviewed, extra, err := cardArgs(c)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review for card %s: %w", c.ID, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE cards
		SET level = ?, missed_count = ?, last_reviewed = ?, extra = ?
		WHERE id = ?
	`, c.Level, c.MissedCount, lastReviewed, extra, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update card %s: no such card", c.ID)
	}

	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO review_ledger (date, card_id) VALUES (?, ?)
	`, event.Date, event.CardID); err != nil {
		return fmt.Errorf("failed to record ledger entry for card %s: %w", c.ID, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO review_events (date, card_id, correct) VALUES (?, ?, ?)
	`, event.Date, event.CardID, event.Correct); err != nil {
		return fmt.Errorf("failed to append review event for card %s: %w", c.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for card %s: %w", c.ID, err)
	}
	return nil
}

// MarkReviewed records a card id in the ledger for a date. Idempotent.
func (db *DB) MarkReviewed(date, cardID string) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO review_ledger (date, card_id) VALUES (?, ?)
	`, date, cardID)
	if err != nil {
		return fmt.Errorf("failed to mark card %s reviewed on %s: %w", cardID, date, err)
	}
	return nil
}

// ReviewedOn returns the set of card ids already given a verdict on date.
// Past dates are retained for audit but only "today" is ever consulted
// by the due computation.
func (db *DB) ReviewedOn(date string) (map[string]bool, error) {
	rows, err := db.conn.Query(`SELECT card_id FROM review_ledger WHERE date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger for %s: %w", date, err)
	}
	defer rows.Close()

	reviewed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		reviewed[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading ledger rows: %w", err)
	}
	return reviewed, nil
}

// EventsOn returns the review history recorded on a date, oldest first.
func (db *DB) EventsOn(date string) ([]domain.ReviewEvent, error) {
	rows, err := db.conn.Query(`
		SELECT date, card_id, correct FROM review_events WHERE date = ? ORDER BY id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read review events for %s: %w", date, err)
	}
	defer rows.Close()

	var events []domain.ReviewEvent
	for rows.Next() {
		var e domain.ReviewEvent
		if err := rows.Scan(&e.Date, &e.CardID, &e.Correct); err != nil {
			return nil, fmt.Errorf("failed to scan review event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading review event rows: %w", err)
	}
	return events, nil
}

// LoadSchedule retrieves the saved day-cycle configuration. Returns
// (nil, nil) when none has been saved yet; callers substitute
// schedule.Default for a first run.
func (db *DB) LoadSchedule() (*schedule.Schedule, error) {
	var startDate, dayLevels string
	row := db.conn.QueryRow(`SELECT start_date, day_levels FROM schedule WHERE id = 1`)
	if err := row.Scan(&startDate, &dayLevels); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	start, err := time.ParseInLocation(domain.DateFormat, startDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt schedule start_date %q: %w", startDate, err)
	}

	var keyed map[string][]int
	if err := json.Unmarshal([]byte(dayLevels), &keyed); err != nil {
		return nil, fmt.Errorf("corrupt schedule day_levels: %w", err)
	}
	days := make(map[int][]int, len(keyed))
	for k, levels := range keyed {
		day, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("corrupt schedule day key %q: %w", k, err)
		}
		days[day] = levels
	}

	s := schedule.Schedule{StartDate: start, DayLevels: days}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("stored schedule is invalid: %w", err)
	}
	return &s, nil
}

// SaveSchedule replaces the day-cycle configuration wholesale.
func (db *DB) SaveSchedule(s schedule.Schedule) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid schedule: %w", err)
	}

	keyed := make(map[string][]int, len(s.DayLevels))
	for day, levels := range s.DayLevels {
		keyed[strconv.Itoa(day)] = levels
	}
	raw, err := json.Marshal(keyed)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO schedule (id, start_date, day_levels) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET start_date = excluded.start_date, day_levels = excluded.day_levels
	`, domain.DateOf(s.StartDate), string(raw))
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// Source represents a deck source, either a local path or a Git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	LastScanned sql.NullTime
}

// InsertSource inserts a new deck source and returns its ID.
func (db *DB) InsertSource(path, sourceType string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sources (path, type) VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// GetAllSources retrieves all stored deck sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT id, path, type, last_scanned FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading source rows: %w", err)
	}
	return sources, nil
}

// DeleteSource removes a deck source by ID.
func (db *DB) DeleteSource(id int64) error {
	_, err := db.conn.Exec(`DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(sourceID int64) error {
	_, err := db.conn.Exec(`
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, time.Now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// SeenFingerprint reports whether a deck line with this content
// fingerprint was imported before.
func (db *DB) SeenFingerprint(fp string) (bool, error) {
	var cardID string
	row := db.conn.QueryRow(`SELECT card_id FROM imported_lines WHERE fingerprint = ?`, fp)
	if err := row.Scan(&cardID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return true, nil
}

// InsertImportedCard inserts a card and its content fingerprint together,
// so a crash mid-import cannot record one without the other.
func (db *DB) InsertImportedCard(c domain.Card, fp string) error {
	lastReviewed, extra, err := cardArgs(c)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin import for card %s: %w", c.ID, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO cards (id, front, back, tag, level, missed_count, last_reviewed, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Front, c.Back, c.Tag, c.Level, c.MissedCount, lastReviewed, extra); err != nil {
		return fmt.Errorf("failed to insert imported card %s: %w", c.ID, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO imported_lines (fingerprint, card_id) VALUES (?, ?)
	`, fp, c.ID); err != nil {
		return fmt.Errorf("failed to record fingerprint for card %s: %w", c.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import for card %s: %w", c.ID, err)
	}
	return nil
}
