// Package blob stores the authoritative text bodies of entities and chats as
// markdown files under a single storage root.
package blob

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lazypower/mnemo/internal/memerr"
)

// Kind identifies which top-level directory a blob belongs to.
type Kind string

const (
	KindEntity Kind = "entity"
	KindChat   Kind = "chat"
)

const (
	entitiesDir = "entities"
	chatsDir    = "chats"
)

// Directories created under the root at open time. images and embeddings are
// reserved and never written by the store.
var layout = []string{entitiesDir, chatsDir, "short-term", "images", "embeddings"}

// Store reads and writes blobs beneath Root.
type Store struct {
	Root  string
	cache *cache.Cache
	now   func() time.Time
}

// Options tunes a Store.
type Options struct {
	// CacheTTL enables the read cache when positive.
	CacheTTL time.Duration
}

// Open creates the directory layout under root (idempotent) and returns a Store.
func Open(root string, opts Options) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty blob root", memerr.ErrValidation)
	}
	for _, dir := range layout {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", memerr.ErrIO, dir, err)
		}
	}

	s := &Store{Root: root, now: time.Now}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s, nil
}

// Path returns the deterministic location of a blob. Entities are partitioned
// by entity type; chats ignore partition.
func (s *Store) Path(kind Kind, partition, id string) (string, error) {
	if err := checkSegment("id", id); err != nil {
		return "", err
	}
	switch kind {
	case KindEntity:
		if err := checkSegment("entity type", partition); err != nil {
			return "", err
		}
		return filepath.Join(s.Root, entitiesDir, partition, id+".md"), nil
	case KindChat:
		return filepath.Join(s.Root, chatsDir, id+".md"), nil
	default:
		return "", fmt.Errorf("%w: unknown blob kind %q", memerr.ErrValidation, kind)
	}
}

// Put writes a new blob for (kind, partition, id) and returns its path.
// An existing blob at the same path is replaced.
func (s *Store) Put(kind Kind, partition, id, body string) (string, error) {
	path, err := s.Path(kind, partition, id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: create partition: %v", memerr.ErrIO, err)
	}
	if err := writeAtomic(path, body); err != nil {
		return "", err
	}
	s.forget(path)
	return path, nil
}

// Append adds body to an existing blob behind a separator and a fresh
// **Updated:** header, keeping the previous content intact.
func (s *Store) Append(path, body string) error {
	if err := s.mustExist(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", memerr.ErrIO, path, err)
	}
	defer f.Close()

	header := fmt.Sprintf("\n\n---\n\n**Updated:** %s\n\n", s.now().Format(time.RFC3339))
	if _, err := f.WriteString(header + body); err != nil {
		return fmt.Errorf("%w: append %s: %v", memerr.ErrIO, path, err)
	}
	s.forget(path)
	return nil
}

// Replace overwrites an existing blob with exactly body.
func (s *Store) Replace(path, body string) error {
	if err := s.mustExist(path); err != nil {
		return err
	}
	if err := writeAtomic(path, body); err != nil {
		return err
	}
	s.forget(path)
	return nil
}

// Get returns the full text of the blob at path.
func (s *Store) Get(path string) (string, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(path); ok {
			return v.(string), nil
		}
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: blob %s", memerr.ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", memerr.ErrIO, path, err)
	}
	body := string(b)
	if s.cache != nil {
		s.cache.SetDefault(path, body)
	}
	return body, nil
}

// Exists reports whether a blob is present at path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes the blob at path. A missing blob is not an error.
func (s *Store) Delete(path string) error {
	s.forget(path)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", memerr.ErrIO, path, err)
	}
	return nil
}

func (s *Store) mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: blob %s", memerr.ErrNotFound, path)
		}
		return fmt.Errorf("%w: stat %s: %v", memerr.ErrIO, path, err)
	}
	return nil
}

func (s *Store) forget(path string) {
	if s.cache != nil {
		s.cache.Delete(path)
	}
}

// writeAtomic writes to a sibling temp file and renames it over path so a
// reader never sees a partially written blob.
func writeAtomic(path, body string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", memerr.ErrIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", memerr.ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", memerr.ErrIO, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", memerr.ErrIO, path, err)
	}
	return nil
}

func checkSegment(what, seg string) error {
	if seg == "" || seg == "." || seg == ".." ||
		strings.ContainsAny(seg, `/\`) || strings.ContainsRune(seg, 0) {
		return fmt.Errorf("%w: invalid %s %q", memerr.ErrValidation, what, seg)
	}
	return nil
}
