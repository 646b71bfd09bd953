package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Entity is an index row describing one entity blob.
type Entity struct {
	ID         string  `json:"entity_id"`
	Type       string  `json:"entity_type"`
	Name       string  `json:"name"`
	Summary    string  `json:"summary"`
	FilePath   string  `json:"file_path"`
	Importance float64 `json:"importance"`
	CreatedAt  int64   `json:"created_at"`
	UpdatedAt  int64   `json:"updated_at"`
}

// BlobRef points at the blob backing a chat or entity row. Used by the
// search rebuild.
type BlobRef struct {
	ContentID   string
	ContentType string
	Title       string
	Summary     string
	FilePath    string
}

const entityColumns = `entity_id, entity_type, name, summary, file_path, importance_score, created_at, updated_at`

// InsertEntity inserts a new entity row. CreatedAt/UpdatedAt default to now.
// Entities are never upserted; a duplicate id is an error.
func (db *DB) InsertEntity(e *Entity) error {
	now := time.Now().UnixMilli()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	if e.UpdatedAt == 0 {
		e.UpdatedAt = e.CreatedAt
	}
	_, err := db.Exec(`
		INSERT INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Type, e.Name, e.Summary, e.FilePath, e.Importance, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// GetEntity returns an entity by id, or nil if not found.
func (db *DB) GetEntity(id string) (*Entity, error) {
	e, err := scanEntity(db.QueryRow(`SELECT `+entityColumns+` FROM entities WHERE entity_id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

// TouchEntity bumps updated_at. Returns false if the id is absent.
func (db *DB) TouchEntity(id string) (bool, error) {
	res, err := db.Exec(`UPDATE entities SET updated_at = ? WHERE entity_id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("touch entity: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecentEntities returns entities ordered by updated_at DESC.
func (db *DB) RecentEntities(limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT `+entityColumns+` FROM entities
		ORDER BY updated_at DESC, entity_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// DeleteEntity removes an entity row; its relations go with it through the
// foreign key cascade. Returns false if nothing was deleted.
func (db *DB) DeleteEntity(id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM entities WHERE entity_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete entity %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// EntityBlobs lists every entity with its blob path.
func (db *DB) EntityBlobs() ([]BlobRef, error) {
	rows, err := db.Query(`SELECT entity_id, name, summary, file_path FROM entities ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list entity blobs: %w", err)
	}
	defer rows.Close()

	var refs []BlobRef
	for rows.Next() {
		r := BlobRef{ContentType: ContentEntity}
		var summary sql.NullString
		if err := rows.Scan(&r.ContentID, &r.Title, &summary, &r.FilePath); err != nil {
			return nil, fmt.Errorf("scan entity blob: %w", err)
		}
		r.Summary = summary.String
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*Entity, error) {
	var e Entity
	var summary sql.NullString
	if err := row.Scan(&e.ID, &e.Type, &e.Name, &summary, &e.FilePath,
		&e.Importance, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Summary = summary.String
	return &e, nil
}
