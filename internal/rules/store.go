// Package rules persists the keyword/response rules the engine matches
// against.
package rules

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/replyforge/replyforge/internal/engine"
)

type Rule struct {
	ID        int64
	Keyword   string
	Response  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create rules directory: %w", err)
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
	CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword TEXT NOT NULL UNIQUE COLLATE NOCASE,
		response TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(active);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Add inserts a rule. Keywords are unique case-insensitively: adding an
// existing keyword updates its response and reactivates it.
func (s *Store) Add(keyword, response string) (*Rule, error) {
	keyword = strings.TrimSpace(keyword)
	response = strings.TrimSpace(response)
	if keyword == "" {
		return nil, fmt.Errorf("keyword must not be empty")
	}
	if response == "" {
		return nil, fmt.Errorf("response must not be empty")
	}

	now := time.Now()
	query := `
	INSERT INTO rules (keyword, response, active, created_at, updated_at)
	VALUES (?, ?, 1, ?, ?)
	ON CONFLICT(keyword) DO UPDATE SET
		response = excluded.response,
		active = 1,
		updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, keyword, response, now, now); err != nil {
		return nil, fmt.Errorf("failed to insert rule: %w", err)
	}
	return s.Get(keyword)
}

// Update changes an existing rule by id.
func (s *Store) Update(id int64, keyword, response string, active bool) error {
	keyword = strings.TrimSpace(keyword)
	response = strings.TrimSpace(response)
	if keyword == "" || response == "" {
		return fmt.Errorf("keyword and response must not be empty")
	}

	result, err := s.db.Exec(
		`UPDATE rules SET keyword = ?, response = ?, active = ?, updated_at = ? WHERE id = ?`,
		keyword, response, boolToInt(active), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %d not found", id)
	}
	return nil
}

// Deactivate removes a rule from matching without losing its history.
func (s *Store) Deactivate(keyword string) error {
	result, err := s.db.Exec(
		`UPDATE rules SET active = 0, updated_at = ? WHERE keyword = ? COLLATE NOCASE`,
		time.Now(), keyword,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %q not found", keyword)
	}
	return nil
}

// Get looks a rule up by keyword, case-insensitively. Missing rules return
// nil, not an error.
func (s *Store) Get(keyword string) (*Rule, error) {
	rule, err := scanRule(s.db.QueryRow(
		`SELECT id, keyword, response, active, created_at, updated_at
		FROM rules WHERE keyword = ? COLLATE NOCASE`, keyword))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	return rule, nil
}

// GetByID looks a rule up by id. Missing rules return nil, not an error.
func (s *Store) GetByID(id int64) (*Rule, error) {
	rule, err := scanRule(s.db.QueryRow(
		`SELECT id, keyword, response, active, created_at, updated_at
		FROM rules WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	return rule, nil
}

// List returns every rule in insertion order, inactive ones included.
func (s *Store) List() ([]Rule, error) {
	rows, err := s.db.Query(
		`SELECT id, keyword, response, active, created_at, updated_at
		FROM rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// Snapshot returns the active rules in insertion order, in the shape the
// engine consumes. The slice is freshly allocated per call.
func (s *Store) Snapshot() ([]engine.Rule, error) {
	rows, err := s.db.Query(
		`SELECT keyword, response FROM rules WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	var snapshot []engine.Rule
	for rows.Next() {
		var r engine.Rule
		if err := rows.Scan(&r.Keyword, &r.Response); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		snapshot = append(snapshot, r)
	}
	return snapshot, rows.Err()
}

// Count returns the number of rules, active or not.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error { return s.db.Close() }

func scanRule(scanner interface{ Scan(...any) error }) (*Rule, error) {
	var r Rule
	var active int
	var createdAt, updatedAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.Keyword, &r.Response, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active == 1
	r.CreatedAt = createdAt.Time
	r.UpdatedAt = updatedAt.Time
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "replyforge.db"
	}
	return filepath.Join(home, ".replyforge", "replyforge.db")
}
