// Package history records every processed message and the reply that was
// sent for it.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Entry struct {
	ID             int64
	Sender         string
	Subject        string
	MatchedKeyword string // empty when the fallback reply was used
	ResponseSent   string
	ProcessedAt    time.Time
}

type Stats struct {
	Total     int
	Replied   int // entries with a matched keyword
	Fallback  int
	ThisMonth int
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS email_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender TEXT NOT NULL,
		subject TEXT,
		matched_keyword TEXT,
		response_sent TEXT,
		processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_log_processed_at ON email_log(processed_at);
	CREATE INDEX IF NOT EXISTS idx_log_matched_keyword ON email_log(matched_keyword);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Add(entry *Entry) error {
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now()
	}

	result, err := s.db.Exec(
		`INSERT INTO email_log (sender, subject, matched_keyword, response_sent, processed_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Sender, entry.Subject, entry.MatchedKeyword, entry.ResponseSent, entry.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, sender, subject, matched_keyword, response_sent, processed_at
		FROM email_log ORDER BY processed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var subject, keyword, response sql.NullString
		var processedAt sql.NullTime

		if err := rows.Scan(&e.ID, &e.Sender, &subject, &keyword, &response, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Subject = subject.String
		e.MatchedKeyword = keyword.String
		e.ResponseSent = response.String
		e.ProcessedAt = processedAt.Time
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetStats() (Stats, error) {
	var stats Stats
	var replied sql.NullInt64

	err := s.db.QueryRow(
		`SELECT COUNT(*), SUM(CASE WHEN matched_keyword != '' THEN 1 ELSE 0 END) FROM email_log`,
	).Scan(&stats.Total, &replied)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	stats.Replied = int(replied.Int64)
	stats.Fallback = stats.Total - stats.Replied

	now := time.Now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM email_log WHERE processed_at >= ?`, startOfMonth,
	).Scan(&stats.ThisMonth)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get monthly stats: %w", err)
	}
	return stats, nil
}

// DeleteOlderThan prunes entries processed before the cutoff.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM email_log WHERE processed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete log entries: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) Close() error { return s.db.Close() }

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "replyforge_history.db"
	}
	return filepath.Join(home, ".replyforge", "history.db")
}
