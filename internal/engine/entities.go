package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/lazypower/mnemo/internal/blob"
	"github.com/lazypower/mnemo/internal/memerr"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// DefaultImportance is used when CreateEntity is not given a score.
const DefaultImportance = 0.5

// EntityInput holds the parameters for CreateEntity.
type EntityInput struct {
	Name       string   `json:"name"`
	Type       string   `json:"entity_type"`
	Content    string   `json:"content"`
	Summary    string   `json:"summary"`
	Importance *float64 `json:"importance,omitempty"`
}

// EntityResult is returned by CreateEntity.
type EntityResult struct {
	Status   string `json:"status"`
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Type     string `json:"entity_type"`
	File     string `json:"file"`
}

// UpdateResult is returned by UpdateEntity.
type UpdateResult struct {
	Status   string `json:"status"`
	EntityID string `json:"entity_id"`
}

// EntityDetail is an entity row together with its blob content.
type EntityDetail struct {
	store.Entity
	Content string `json:"content"`
}

// DeleteResult is returned by the delete operations.
type DeleteResult struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func newEntityID() string {
	return "entity_" + strings.ToLower(ulid.Make().String())
}

func validScore(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// CreateEntity writes a new entity blob, then its index, stat and search
// rows. Every call creates a distinct entity; names are not identifiers.
func (e *Engine) CreateEntity(ctx context.Context, in EntityInput) (res *EntityResult, err error) {
	defer func() { metrics.Observe("create_entity", err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.TrimSpace(in.Type)
	if in.Name == "" || in.Type == "" {
		return nil, fmt.Errorf("%w: entity name and type are required", memerr.ErrValidation)
	}
	importance := DefaultImportance
	if in.Importance != nil {
		importance = *in.Importance
	}
	if !validScore(importance) {
		return nil, fmt.Errorf("%w: importance %v must be within [0,1]", memerr.ErrValidation, importance)
	}
	body := in.Content
	if strings.TrimSpace(body) == "" {
		body = fmt.Sprintf("# %s\n\nDetails to be added.\n", in.Name)
	}

	ctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer e.writeMu.Unlock()

	id := newEntityID()
	now := e.now()
	doc := blob.EntityDocument(in.Name, in.Type, in.Summary, now, body)
	path, err := e.Blobs.Put(blob.KindEntity, in.Type, id, doc)
	if err != nil {
		return nil, fmt.Errorf("create entity %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create entity %s: %w", id, err)
	}

	ent := &store.Entity{
		ID:         id,
		Type:       in.Type,
		Name:       in.Name,
		Summary:    in.Summary,
		FilePath:   path,
		Importance: importance,
		CreatedAt:  now.UnixMilli(),
	}
	if err := e.DB.InsertEntity(ent); err != nil {
		return nil, err
	}
	if err := e.DB.EnsureStat(id, store.ContentEntity, importance); err != nil {
		return nil, err
	}
	if err := e.DB.Index(store.SearchRecord{
		ContentID:   id,
		ContentType: store.ContentEntity,
		Title:       in.Name,
		Summary:     in.Summary,
		Content:     doc,
	}); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"entity_id": id, "entity_type": in.Type}).Info("entity created")
	return &EntityResult{Status: StatusCreated, EntityID: id, Name: in.Name, Type: in.Type, File: path}, nil
}

// UpdateEntity appends to or replaces the entity blob, bumps updated_at and
// re-indexes the search row from the new blob.
func (e *Engine) UpdateEntity(ctx context.Context, id, content string, appendContent bool) (res *UpdateResult, err error) {
	defer func() { metrics.Observe("update_entity", err) }()

	ctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer e.writeMu.Unlock()

	ent, err := e.DB.GetEntity(id)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, fmt.Errorf("%w: entity %s", memerr.ErrNotFound, id)
	}

	if appendContent {
		err = e.Blobs.Append(ent.FilePath, content)
	} else {
		err = e.Blobs.Replace(ent.FilePath, content)
	}
	if err != nil {
		return nil, fmt.Errorf("update entity %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update entity %s: %w", id, err)
	}

	if _, err := e.DB.TouchEntity(id); err != nil {
		return nil, err
	}
	doc, err := e.Blobs.Get(ent.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reload entity %s: %w", id, err)
	}
	if err := e.DB.Index(store.SearchRecord{
		ContentID:   id,
		ContentType: store.ContentEntity,
		Title:       ent.Name,
		Summary:     ent.Summary,
		Content:     doc,
	}); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"entity_id": id, "append": appendContent}).Info("entity updated")
	return &UpdateResult{Status: StatusUpdated, EntityID: id}, nil
}

// GetEntity returns the entity row and its blob text, and records an access.
// A missing blob yields empty content.
func (e *Engine) GetEntity(ctx context.Context, id string) (detail *EntityDetail, err error) {
	defer func() { metrics.Observe("get_entity", err) }()

	ent, err := e.DB.GetEntity(id)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, fmt.Errorf("%w: entity %s", memerr.ErrNotFound, id)
	}

	content, err := e.Blobs.Get(ent.FilePath)
	if errors.Is(err, memerr.ErrNotFound) {
		content, err = "", nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.DB.TouchStat(id); err != nil {
		e.log.WithError(err).WithField("entity_id", id).Warn("record access failed")
	}
	return &EntityDetail{Entity: *ent, Content: content}, nil
}

// DeleteEntity removes the index row (relations cascade), stat and search
// rows, then the blob.
func (e *Engine) DeleteEntity(ctx context.Context, id string) (res *DeleteResult, err error) {
	defer func() { metrics.Observe("delete_entity", err) }()

	ctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer e.writeMu.Unlock()

	ent, err := e.DB.GetEntity(id)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, fmt.Errorf("%w: entity %s", memerr.ErrNotFound, id)
	}
	if err := e.dropEntity(ent); err != nil {
		return nil, err
	}

	e.log.WithField("entity_id", id).Info("entity deleted")
	return &DeleteResult{Status: StatusDeleted, ID: id}, nil
}

// dropEntity deletes everything owned by ent. Callers hold writeMu.
func (e *Engine) dropEntity(ent *store.Entity) error {
	if _, err := e.DB.DeleteEntity(ent.ID); err != nil {
		return err
	}
	if err := e.DB.DeleteStat(ent.ID); err != nil {
		return err
	}
	if err := e.DB.RemoveFromSearch(ent.ID); err != nil {
		return err
	}
	return e.Blobs.Delete(ent.FilePath)
}
