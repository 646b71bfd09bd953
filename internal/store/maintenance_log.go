package store

import (
	"fmt"
	"time"
)

// MaintenanceLog records one completed maintenance pass.
type MaintenanceLog struct {
	ID              int64   `json:"log_id"`
	Operation       string  `json:"operation"`
	ItemsProcessed  int     `json:"items_processed"`
	ItemsDeleted    int     `json:"items_deleted"`
	ItemsUpdated    int     `json:"items_updated"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       int64   `json:"timestamp"`
}

// InsertMaintenanceLog appends a log row and sets l.ID and l.Timestamp.
func (db *DB) InsertMaintenanceLog(l *MaintenanceLog) error {
	if l.Timestamp == 0 {
		l.Timestamp = time.Now().UnixMilli()
	}
	res, err := db.Exec(`
		INSERT INTO maintenance_log (operation, items_processed, items_deleted, items_updated, duration_seconds, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.Operation, l.ItemsProcessed, l.ItemsDeleted, l.ItemsUpdated, l.DurationSeconds, l.Timestamp)
	if err != nil {
		return fmt.Errorf("insert maintenance log: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// MaintenanceLogs returns the most recent log rows, newest first.
func (db *DB) MaintenanceLogs(limit int) ([]MaintenanceLog, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT log_id, operation, items_processed, items_deleted, items_updated,
			COALESCE(duration_seconds, 0), timestamp
		FROM maintenance_log
		ORDER BY log_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("maintenance logs: %w", err)
	}
	defer rows.Close()

	var out []MaintenanceLog
	for rows.Next() {
		var l MaintenanceLog
		if err := rows.Scan(&l.ID, &l.Operation, &l.ItemsProcessed, &l.ItemsDeleted,
			&l.ItemsUpdated, &l.DurationSeconds, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("scan maintenance log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
