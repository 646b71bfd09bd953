package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Chat is an index row describing one chat transcript blob.
type Chat struct {
	ID        string   `json:"chat_id"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	ToolsUsed []string `json:"tools_used"`
	Topics    []string `json:"topics"`
	FilePath  string   `json:"file_path"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

const chatColumns = `chat_id, url, title, summary, created_at, updated_at, tools_used, topics, file_path`

// UpsertChat inserts a chat or replaces the row with the same chat_id.
// created_at of the first store survives; everything else is replaced.
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	tools, err := json.Marshal(uniqueSet(c.ToolsUsed))
	if err != nil {
		return fmt.Errorf("encode tools_used: %w", err)
	}
	topics, err := json.Marshal(uniqueSet(c.Topics))
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}

	err = db.QueryRow(`
		INSERT INTO chats (`+chatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			url = excluded.url, title = excluded.title, summary = excluded.summary,
			updated_at = excluded.updated_at, tools_used = excluded.tools_used,
			topics = excluded.topics, file_path = excluded.file_path
		RETURNING created_at
	`, c.ID, c.URL, c.Title, c.Summary, now, now, string(tools), string(topics), c.FilePath).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	c.UpdatedAt = now
	return nil
}

// GetChat returns a chat by id, or nil if not found.
func (db *DB) GetChat(id string) (*Chat, error) {
	c, err := scanChat(db.QueryRow(`SELECT `+chatColumns+` FROM chats WHERE chat_id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

// RecentChats returns chats ordered by updated_at DESC.
func (db *DB) RecentChats(limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`SELECT `+chatColumns+` FROM chats ORDER BY updated_at DESC, chat_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chats: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteChat removes a chat row. Returns false if nothing was deleted.
func (db *DB) DeleteChat(id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM chats WHERE chat_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete chat %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ChatBlobs lists every chat with its blob path.
func (db *DB) ChatBlobs() ([]BlobRef, error) {
	rows, err := db.Query(`SELECT chat_id, title, summary, file_path FROM chats ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list chat blobs: %w", err)
	}
	defer rows.Close()

	var refs []BlobRef
	for rows.Next() {
		r := BlobRef{ContentType: ContentChat}
		var summary sql.NullString
		if err := rows.Scan(&r.ContentID, &r.Title, &summary, &r.FilePath); err != nil {
			return nil, fmt.Errorf("scan chat blob: %w", err)
		}
		r.Summary = summary.String
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func scanChat(row scanner) (*Chat, error) {
	var c Chat
	var url, summary, tools, topics sql.NullString
	if err := row.Scan(&c.ID, &url, &c.Title, &summary, &c.CreatedAt, &c.UpdatedAt,
		&tools, &topics, &c.FilePath); err != nil {
		return nil, err
	}
	c.URL = url.String
	c.Summary = summary.String
	c.ToolsUsed = decodeSet(tools)
	c.Topics = decodeSet(topics)
	return &c, nil
}

func decodeSet(s sql.NullString) []string {
	out := []string{}
	if s.Valid && s.String != "" {
		json.Unmarshal([]byte(s.String), &out)
	}
	return out
}

// uniqueSet dedups a string set, preserving first-seen order, and never
// returns nil so the column holds "[]" rather than "null".
func uniqueSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
