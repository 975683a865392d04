package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Writer using SQLite
type SQLiteJournal struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open creates or opens the attempt journal at dbPath.
func Open(dbPath string) (*SQLiteJournal, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal tables: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bucket TEXT NOT NULL,
		object TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error_class TEXT,
		message TEXT,
		duration_ms INTEGER NOT NULL,
		at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_key ON attempts(bucket, object);
	CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(outcome);
	`

	_, err := j.db.Exec(query)
	return err
}

// Record appends one attempt row. Writes are serialized to avoid
// SQLITE_BUSY from concurrent workers.
func (j *SQLiteJournal) Record(e Entry) error {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	if e.At.IsZero() {
		e.At = time.Now()
	}

	return j.retryOnBusy(func() error {
		_, err := j.db.Exec(`
		INSERT INTO attempts (bucket, object, attempt, outcome, error_class, message, duration_ms, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Bucket, e.Object, e.Attempt, string(e.Outcome),
			e.ErrorClass, e.Message, e.Duration.Milliseconds(), e.At,
		)
		return err
	})
}

// Attempts returns the recorded attempts for one task key, oldest first.
func (j *SQLiteJournal) Attempts(bucket, object string) ([]Entry, error) {
	rows, err := j.db.Query(`
	SELECT bucket, object, attempt, outcome, error_class, message, duration_ms, at
	FROM attempts WHERE bucket = ? AND object = ?
	ORDER BY id ASC`, bucket, object)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		var durationMs int64
		if err := rows.Scan(&e.Bucket, &e.Object, &e.Attempt, &outcome,
			&e.ErrorClass, &e.Message, &durationMs, &e.At); err != nil {
			return nil, err
		}
		e.Outcome = Outcome(outcome)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// retryOnBusy retries the operation if SQLite is busy
func (j *SQLiteJournal) retryOnBusy(operation func() error) error {
	const maxRetries = 10
	baseDelay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !isSQLiteBusyError(err) || attempt == maxRetries-1 {
			return err
		}
		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}
	return err
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// Close closes the database connection
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
