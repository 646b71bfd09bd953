package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lazypower/mnemo/internal/memerr"
)

// DB wraps a sql.DB connection to the memory index database.
type DB struct {
	*sql.DB
	Path string
}

// pragmas are applied per connection through the DSN so every pooled
// connection enforces foreign keys.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func dsn(path string) string {
	parts := make([]string, len(pragmas))
	for i, p := range pragmas {
		parts[i] = "_pragma=" + p
	}
	return path + "?" + strings.Join(parts, "&")
}

// DefaultPath returns the index location beneath a storage root:
// <root>/database/memory.db
func DefaultPath(root string) string {
	return filepath.Join(root, "database", "memory.db")
}

// Open opens (or creates) the SQLite database at the given path and runs
// migrations. This is the bootstrap path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, Path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenExisting opens a database that must already carry the full schema.
// It never creates files; a missing database or schema is ErrSchemaMissing.
func OpenExisting(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist (run init first)", memerr.ErrSchemaMissing, path)
		}
		return nil, fmt.Errorf("stat db: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, Path: path}
	version, err := db.SchemaVersion()
	if err != nil || version < latestVersion() {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: %s has schema version %d, want %d", memerr.ErrSchemaMissing, path, version, latestVersion())
	}
	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing. The pool is
// pinned to one connection because each :memory: connection is its own database.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: ":memory:"}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
