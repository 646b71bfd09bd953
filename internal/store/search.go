package store

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lazypower/mnemo/internal/memerr"
)

// MaxIndexedContent bounds the content column of a search row, in bytes.
// Terms that only occur past this point are never matched.
const MaxIndexedContent = 10000

const defaultSearchLimit = 20

// SearchRecord is one denormalized row of the full-text index.
type SearchRecord struct {
	ContentID   string
	ContentType string
	Title       string
	Summary     string
	Content     string
}

// SearchParams holds the parameters for a full-text query.
type SearchParams struct {
	Query        string
	ContentTypes []string
	Limit        int
}

// SearchHit is a ranked search result. Lower Relevance is better.
type SearchHit struct {
	ContentID   string  `json:"content_id"`
	ContentType string  `json:"content_type"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	Relevance   float64 `json:"relevance"`
}

// TruncateContent cuts s to at most MaxIndexedContent bytes without
// splitting a UTF-8 sequence.
func TruncateContent(s string) string {
	if len(s) <= MaxIndexedContent {
		return s
	}
	cut := MaxIndexedContent
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Index writes the search row for a piece of content, replacing any row
// already indexed under the same content_id.
func (db *DB) Index(rec SearchRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin index: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memory_search WHERE content_id = ?`, rec.ContentID); err != nil {
		return fmt.Errorf("clear search row: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO memory_search (content_id, content_type, title, summary, content)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ContentID, rec.ContentType, rec.Title, rec.Summary, TruncateContent(rec.Content)); err != nil {
		return fmt.Errorf("insert search row: %w", err)
	}
	return tx.Commit()
}

// RemoveFromSearch deletes the search rows for content_id.
func (db *DB) RemoveFromSearch(contentID string) error {
	if _, err := db.Exec(`DELETE FROM memory_search WHERE content_id = ?`, contentID); err != nil {
		return fmt.Errorf("remove search row: %w", err)
	}
	return nil
}

// CountSearch returns the number of rows in the search index.
func (db *DB) CountSearch() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM memory_search`).Scan(&n)
	return n, err
}

// Search runs a full-text query ordered by FTS5 rank.
func (db *DB) Search(p SearchParams) ([]SearchHit, error) {
	match := sanitizeQuery(p.Query)
	if match == "" {
		return nil, fmt.Errorf("%w: empty search query", memerr.ErrValidation)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := `
		SELECT content_id, content_type, title, summary, rank
		FROM memory_search
		WHERE memory_search MATCH ?`
	args := []any{match}
	if len(p.ContentTypes) > 0 {
		query += ` AND content_type IN (?` + strings.Repeat(", ?", len(p.ContentTypes)-1) + `)`
		for _, t := range p.ContentTypes {
			args = append(args, t)
		}
	}
	query += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, searchError(p.Query, err)
	}
	defer rows.Close()

	hits := []SearchHit{}
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ContentID, &h.ContentType, &h.Title, &h.Summary, &h.Relevance); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, searchError(p.Query, err)
	}
	return hits, nil
}

// searchError reports FTS5 query syntax errors as validation failures and
// wraps everything else as a plain search failure.
func searchError(q string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "fts5: syntax error") || strings.Contains(msg, "unterminated string") {
		return fmt.Errorf("%w: search %q: %v", memerr.ErrValidation, q, err)
	}
	return fmt.Errorf("search %q: %w", q, err)
}

// sanitizeQuery quotes every whitespace-separated term so FTS5 operators
// in user input are matched literally. Terms are ANDed.
func sanitizeQuery(q string) string {
	words := strings.Fields(q)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, `""`)
		if strings.Trim(w, `"`) == "" {
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " ")
}

const stagingSearchTable = "memory_search_next"

// RebuildSearch regenerates the whole index from records: StageSearch
// followed by SwapSearch.
func (db *DB) RebuildSearch(records []SearchRecord) error {
	if err := db.StageSearch(records); err != nil {
		return err
	}
	return db.SwapSearch()
}

// StageSearch builds records into a fresh staging table, discarding any
// staging table left by an interrupted rebuild. The live index is untouched.
func (db *DB) StageSearch(records []SearchRecord) error {
	if _, err := db.Exec(`DROP TABLE IF EXISTS ` + stagingSearchTable); err != nil {
		return fmt.Errorf("drop stale staging table: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(searchTableDDL, stagingSearchTable)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin staging: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO ` + stagingSearchTable +
		` (content_id, content_type, title, summary, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare staging insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.ContentID, r.ContentType, r.Title, r.Summary, TruncateContent(r.Content)); err != nil {
			return fmt.Errorf("stage %s: %w", r.ContentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit staging: %w", err)
	}
	return nil
}

// SwapSearch replaces the live index with the staging table in a single
// transaction, so readers see either the old or the new index.
func (db *DB) SwapSearch() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DROP TABLE memory_search`); err != nil {
		return fmt.Errorf("drop live index: %w", err)
	}
	if _, err := tx.Exec(`ALTER TABLE ` + stagingSearchTable + ` RENAME TO memory_search`); err != nil {
		return fmt.Errorf("rename staging index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}
