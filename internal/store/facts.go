package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Fact is a short-term key/value entry (abilities, permissions, context).
// Key is unique on its own; Category is an attribute used to filter.
type Fact struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Category  string          `json:"category"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// PutFact inserts a fact or overwrites the one with the same key, including
// its category.
func (db *DB) PutFact(f *Fact) error {
	if !json.Valid(f.Value) {
		return fmt.Errorf("put fact %s: value is not valid JSON", f.Key)
	}
	now := time.Now().UnixMilli()
	err := db.QueryRow(`
		INSERT INTO short_term_memory (key, value, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value, category = excluded.category, updated_at = excluded.updated_at
		RETURNING created_at
	`, f.Key, string(f.Value), f.Category, now, now).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("put fact: %w", err)
	}
	f.UpdatedAt = now
	return nil
}

// GetFact returns a fact by key, or nil if not found.
func (db *DB) GetFact(key string) (*Fact, error) {
	var f Fact
	var value string
	err := db.QueryRow(`
		SELECT key, value, category, created_at, updated_at
		FROM short_term_memory WHERE key = ?
	`, key).Scan(&f.Key, &value, &f.Category, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fact: %w", err)
	}
	f.Value = json.RawMessage(value)
	return &f, nil
}

// FactsByCategory returns all facts in a category ordered by key.
func (db *DB) FactsByCategory(category string) ([]Fact, error) {
	rows, err := db.Query(`
		SELECT key, value, category, created_at, updated_at
		FROM short_term_memory WHERE category = ?
		ORDER BY key
	`, category)
	if err != nil {
		return nil, fmt.Errorf("facts by category: %w", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var f Fact
		var value string
		if err := rows.Scan(&f.Key, &value, &f.Category, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.Value = json.RawMessage(value)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountFacts returns the number of rows in short_term_memory.
func (db *DB) CountFacts() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM short_term_memory`).Scan(&n)
	return n, err
}

// DeleteFact removes a fact. Returns false if nothing was deleted.
func (db *DB) DeleteFact(key string) (bool, error) {
	res, err := db.Exec(`DELETE FROM short_term_memory WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete fact: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
