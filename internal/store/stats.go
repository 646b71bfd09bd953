package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

// Content types shared by memory_index and memory_search.
const (
	ContentEntity = "entity"
	ContentChat   = "chat"
)

// StatRow is a memory_index row: access and importance bookkeeping for one
// chat or entity.
type StatRow struct {
	ContentID    string  `json:"content_id"`
	ContentType  string  `json:"content_type"`
	Importance   float64 `json:"importance_score"`
	AccessCount  int     `json:"access_count"`
	LastAccessed *int64  `json:"last_accessed,omitempty"`
	CreatedAt    int64   `json:"created_at"`
}

// EvictionRule selects stat rows for deletion. All three conditions must hold.
type EvictionRule struct {
	MaxImportance float64 // importance_score < MaxImportance
	Cutoff        int64   // last_accessed < Cutoff (unix ms); never-accessed rows are kept
	MaxAccess     int     // access_count < MaxAccess
}

// Clamp01 bounds an importance or strength score to [0,1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// EnsureStat creates the stat row for content if missing. An existing row
// keeps its access history.
func (db *DB) EnsureStat(contentID, contentType string, importance float64) error {
	_, err := db.Exec(`
		INSERT INTO memory_index (content_id, content_type, importance_score, access_count, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(content_id) DO NOTHING
	`, contentID, contentType, Clamp01(importance), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("ensure stat: %w", err)
	}
	return nil
}

// PutStat writes a stat row verbatim, replacing any existing one. The
// importance score is clamped.
func (db *DB) PutStat(s StatRow) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT OR REPLACE INTO memory_index
			(content_id, content_type, importance_score, access_count, last_accessed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ContentID, s.ContentType, Clamp01(s.Importance), s.AccessCount, s.LastAccessed, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("put stat: %w", err)
	}
	return nil
}

// TouchStat records one access: access_count+1 and last_accessed=now.
func (db *DB) TouchStat(contentID string) error {
	_, err := db.Exec(`
		UPDATE memory_index SET access_count = access_count + 1, last_accessed = ?
		WHERE content_id = ?
	`, time.Now().UnixMilli(), contentID)
	if err != nil {
		return fmt.Errorf("touch stat: %w", err)
	}
	return nil
}

// GetStat returns the stat row for content, or nil if not found.
func (db *DB) GetStat(contentID string) (*StatRow, error) {
	var s StatRow
	var last sql.NullInt64
	err := db.QueryRow(`
		SELECT content_id, content_type, importance_score, access_count, last_accessed, created_at
		FROM memory_index WHERE content_id = ?
	`, contentID).Scan(&s.ContentID, &s.ContentType, &s.Importance, &s.AccessCount, &last, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stat: %w", err)
	}
	if last.Valid {
		s.LastAccessed = &last.Int64
	}
	return &s, nil
}

// DeleteStat removes the stat row for content.
func (db *DB) DeleteStat(contentID string) error {
	if _, err := db.Exec(`DELETE FROM memory_index WHERE content_id = ?`, contentID); err != nil {
		return fmt.Errorf("delete stat: %w", err)
	}
	return nil
}

// CountStats returns the number of memory_index rows.
func (db *DB) CountStats() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM memory_index`).Scan(&n)
	return n, err
}

// EvictStale deletes every stat row matching rule and returns the rows it
// removed so the caller can drop the content they describe.
func (db *DB) EvictStale(rule EvictionRule) ([]StatRow, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin eviction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT content_id, content_type, importance_score, access_count, last_accessed, created_at
		FROM memory_index
		WHERE importance_score < ?
		  AND last_accessed IS NOT NULL
		  AND last_accessed < ?
		  AND access_count < ?
	`, rule.MaxImportance, rule.Cutoff, rule.MaxAccess)
	if err != nil {
		return nil, fmt.Errorf("select stale: %w", err)
	}

	var evicted []StatRow
	for rows.Next() {
		var s StatRow
		var last sql.NullInt64
		if err := rows.Scan(&s.ContentID, &s.ContentType, &s.Importance, &s.AccessCount, &last, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stale: %w", err)
		}
		if last.Valid {
			s.LastAccessed = &last.Int64
		}
		evicted = append(evicted, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select stale: %w", err)
	}

	for _, s := range evicted {
		if _, err := tx.Exec(`DELETE FROM memory_index WHERE content_id = ?`, s.ContentID); err != nil {
			return nil, fmt.Errorf("evict %s: %w", s.ContentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit eviction: %w", err)
	}
	return evicted, nil
}

// Reinforce raises importance_score by access_count*step for every accessed
// row, saturating at 1.0, and mirrors the new score onto entity rows.
// Returns the number of stat rows updated.
func (db *DB) Reinforce(step float64) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin reinforce: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE memory_index
		SET importance_score = MIN(1.0, importance_score + (access_count * ?))
		WHERE access_count > 0
	`, step)
	if err != nil {
		return 0, fmt.Errorf("reinforce: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.Exec(`
		UPDATE entities
		SET importance_score = (SELECT m.importance_score FROM memory_index m WHERE m.content_id = entities.entity_id)
		WHERE entity_id IN (SELECT content_id FROM memory_index WHERE access_count > 0)
	`); err != nil {
		return 0, fmt.Errorf("mirror entity importance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reinforce: %w", err)
	}
	return int(n), nil
}
