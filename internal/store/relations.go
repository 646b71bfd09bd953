package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Relation is a typed, weighted directed edge between two entities.
// Parallel edges with the same (from, to, type) are allowed.
type Relation struct {
	ID        int64   `json:"relation_id"`
	FromID    string  `json:"from_entity_id"`
	ToID      string  `json:"to_entity_id"`
	Type      string  `json:"relation_type"`
	Strength  float64 `json:"strength"`
	CreatedAt int64   `json:"created_at"`
}

const relationColumns = `relation_id, from_entity_id, to_entity_id, relation_type, strength, created_at`

// InsertRelation adds an edge and sets r.ID. Both endpoints must exist:
// missing endpoints are reported as ok=false rather than surfacing the raw
// foreign key violation.
func (db *DB) InsertRelation(r *Relation) (ok bool, err error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin insert relation: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM entities WHERE entity_id IN (?, ?)
	`, r.FromID, r.ToID).Scan(&n); err != nil {
		return false, fmt.Errorf("check endpoints: %w", err)
	}
	want := 2
	if r.FromID == r.ToID {
		want = 1
	}
	if n < want {
		return false, nil
	}

	now := time.Now().UnixMilli()
	res, err := tx.Exec(`
		INSERT INTO relations (from_entity_id, to_entity_id, relation_type, strength, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.FromID, r.ToID, r.Type, r.Strength, now)
	if err != nil {
		return false, fmt.Errorf("insert relation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit relation: %w", err)
	}

	r.ID, _ = res.LastInsertId()
	r.CreatedAt = now
	return true, nil
}

// GetRelation returns a relation by id, or nil if not found.
func (db *DB) GetRelation(id int64) (*Relation, error) {
	var r Relation
	err := db.QueryRow(`SELECT `+relationColumns+` FROM relations WHERE relation_id = ?`, id).
		Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.Strength, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}
	return &r, nil
}

// RelationsFrom returns outgoing edges of an entity, oldest first.
func (db *DB) RelationsFrom(entityID string) ([]Relation, error) {
	return db.queryRelations(`SELECT `+relationColumns+` FROM relations
		WHERE from_entity_id = ? ORDER BY relation_id`, entityID)
}

// RelationsTo returns incoming edges of an entity, oldest first.
func (db *DB) RelationsTo(entityID string) ([]Relation, error) {
	return db.queryRelations(`SELECT `+relationColumns+` FROM relations
		WHERE to_entity_id = ? ORDER BY relation_id`, entityID)
}

// DeleteDanglingRelations removes edges whose endpoints no longer exist.
// With foreign keys enforced this only finds edges written by older
// databases that ran without them.
func (db *DB) DeleteDanglingRelations() (int, error) {
	res, err := db.Exec(`
		DELETE FROM relations
		WHERE from_entity_id NOT IN (SELECT entity_id FROM entities)
		   OR to_entity_id NOT IN (SELECT entity_id FROM entities)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete dangling relations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (db *DB) queryRelations(query string, args ...any) ([]Relation, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.Strength, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
