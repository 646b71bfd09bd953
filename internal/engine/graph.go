package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lazypower/mnemo/internal/memerr"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// DefaultStrength is used when CreateRelation is not given a strength.
const DefaultStrength = 0.5

// RelationResult is returned by CreateRelation.
type RelationResult struct {
	Status     string `json:"status"`
	RelationID int64  `json:"relation_id"`
}

// EntityRelations holds both directions of an entity's edges.
type EntityRelations struct {
	EntityID string           `json:"entity_id"`
	Outgoing []store.Relation `json:"outgoing"`
	Incoming []store.Relation `json:"incoming"`
}

// CreateRelation adds a directed edge between two existing entities.
// Repeated calls with the same endpoints and type create parallel edges.
func (e *Engine) CreateRelation(ctx context.Context, from, to, relType string, strength float64) (res *RelationResult, err error) {
	defer func() { metrics.Observe("create_relation", err) }()

	relType = strings.TrimSpace(relType)
	if relType == "" {
		return nil, fmt.Errorf("%w: relation type is required", memerr.ErrValidation)
	}
	if !validScore(strength) {
		return nil, fmt.Errorf("%w: strength %v must be within [0,1]", memerr.ErrValidation, strength)
	}

	ctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer e.writeMu.Unlock()

	r := &store.Relation{FromID: from, ToID: to, Type: relType, Strength: strength}
	ok, err := e.DB.InsertRelation(r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: relation endpoint %s or %s", memerr.ErrNotFound, from, to)
	}

	e.log.WithFields(logrus.Fields{
		"relation_id": r.ID,
		"from":        from,
		"to":          to,
		"type":        relType,
	}).Info("relation created")
	return &RelationResult{Status: StatusCreated, RelationID: r.ID}, nil
}

// Relations returns the outgoing and incoming edges of an entity.
func (e *Engine) Relations(ctx context.Context, entityID string) (*EntityRelations, error) {
	ent, err := e.DB.GetEntity(entityID)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, fmt.Errorf("%w: entity %s", memerr.ErrNotFound, entityID)
	}

	out, err := e.DB.RelationsFrom(entityID)
	if err != nil {
		return nil, err
	}
	in, err := e.DB.RelationsTo(entityID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []store.Relation{}
	}
	if in == nil {
		in = []store.Relation{}
	}
	return &EntityRelations{EntityID: entityID, Outgoing: out, Incoming: in}, nil
}

// RepairGraph deletes edges whose endpoints no longer exist.
func (e *Engine) RepairGraph(ctx context.Context) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	n, err := e.DB.DeleteDanglingRelations()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.log.WithField("relations", n).Warn("removed dangling relations")
	}
	return n, nil
}
