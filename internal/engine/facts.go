package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/memerr"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// Fact categories used by the built-in operations. The set is open.
const (
	CategoryAbility    = "ability"
	CategoryPermission = "permission"
	CategoryContext    = "context"
)

var categoryRe = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// NormalizeKey derives the fact key for a label: category + "_" + label
// lowercased, with every whitespace rune and hyphen replaced by one
// underscore. Runs are not collapsed, so "a  b" and "a b" are distinct keys.
// The category prefix is part of the key string; uniqueness is on the whole
// key, so category is an attribute rather than a separate namespace.
func NormalizeKey(category, label string) string {
	norm := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, strings.ToLower(label))
	return category + "_" + norm
}

// FactResult is returned by the fact store operations.
type FactResult struct {
	Status   string `json:"status"`
	Key      string `json:"key"`
	Category string `json:"category"`
	Label    string `json:"label"`
}

// ContextSnapshot is what a session loads at start.
type ContextSnapshot struct {
	Abilities      []json.RawMessage `json:"abilities"`
	Permissions    []json.RawMessage `json:"permissions"`
	Context        []json.RawMessage `json:"context"`
	RecentEntities []store.Entity    `json:"recent_entities"`
}

// StoreAbility records a known ability. Storing the same label again
// overwrites the description.
func (e *Engine) StoreAbility(ctx context.Context, label, description string) (*FactResult, error) {
	return e.StoreFact(ctx, CategoryAbility, label, map[string]any{
		"ability":       label,
		"description":   description,
		"discovered_at": e.now().Format(time.RFC3339),
	})
}

// StorePermission records a granted permission.
func (e *Engine) StorePermission(ctx context.Context, label, details string) (*FactResult, error) {
	return e.StoreFact(ctx, CategoryPermission, label, map[string]any{
		"permission": label,
		"details":    details,
		"granted_at": e.now().Format(time.RFC3339),
	})
}

// StoreContext records a free-form context entry.
func (e *Engine) StoreContext(ctx context.Context, label, value string) (*FactResult, error) {
	return e.StoreFact(ctx, CategoryContext, label, map[string]any{
		"context":    label,
		"value":      value,
		"updated_at": e.now().Format(time.RFC3339),
	})
}

// StoreFact upserts a fact under NormalizeKey(category, label).
func (e *Engine) StoreFact(ctx context.Context, category, label string, value any) (res *FactResult, err error) {
	defer func() { metrics.Observe("store_fact", err) }()

	if !categoryRe.MatchString(category) {
		return nil, fmt.Errorf("%w: invalid category %q", memerr.ErrValidation, category)
	}
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: fact label is required", memerr.ErrValidation)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: encode fact value: %v", memerr.ErrValidation, err)
	}

	key := NormalizeKey(category, label)
	if err := e.DB.PutFact(&store.Fact{Key: key, Value: raw, Category: category}); err != nil {
		return nil, err
	}
	e.log.WithField("key", key).Debug("fact stored")
	return &FactResult{Status: StatusStored, Key: key, Category: category, Label: label}, nil
}

// Facts returns every fact stored under category.
func (e *Engine) Facts(ctx context.Context, category string) ([]store.Fact, error) {
	facts, err := e.DB.FactsByCategory(category)
	if err != nil {
		return nil, err
	}
	if facts == nil {
		facts = []store.Fact{}
	}
	return facts, nil
}

// LoadContext gathers abilities, permissions, context entries and the most
// recently updated entities.
func (e *Engine) LoadContext(ctx context.Context, recent int) (snap *ContextSnapshot, err error) {
	defer func() { metrics.Observe("load_context", err) }()

	snap = &ContextSnapshot{}
	for _, part := range []struct {
		category string
		dst      *[]json.RawMessage
	}{
		{CategoryAbility, &snap.Abilities},
		{CategoryPermission, &snap.Permissions},
		{CategoryContext, &snap.Context},
	} {
		facts, err := e.DB.FactsByCategory(part.category)
		if err != nil {
			return nil, err
		}
		values := make([]json.RawMessage, 0, len(facts))
		for _, f := range facts {
			values = append(values, f.Value)
		}
		*part.dst = values
	}

	snap.RecentEntities, err = e.DB.RecentEntities(recent)
	if err != nil {
		return nil, err
	}
	if snap.RecentEntities == nil {
		snap.RecentEntities = []store.Entity{}
	}
	return snap, nil
}

// Seed stores the configured default abilities and permissions. Reseeding
// overwrites them in place.
func (e *Engine) Seed(ctx context.Context, seed config.SeedConfig) (int, error) {
	n := 0
	for _, a := range seed.Abilities {
		if _, err := e.StoreAbility(ctx, a.Name, a.Description); err != nil {
			return n, fmt.Errorf("seed ability %q: %w", a.Name, err)
		}
		n++
	}
	for _, p := range seed.Permissions {
		if _, err := e.StorePermission(ctx, p.Name, p.Description); err != nil {
			return n, fmt.Errorf("seed permission %q: %w", p.Name, err)
		}
		n++
	}
	e.log.WithField("facts", n).Info("defaults seeded")
	return n, nil
}
