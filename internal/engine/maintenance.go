package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lazypower/mnemo/internal/memerr"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// MaintenanceOperation is the operation name logged for a maintenance pass.
const MaintenanceOperation = "weekly_curation"

// MaintenanceResult summarizes one maintenance pass.
type MaintenanceResult struct {
	Status          string  `json:"status"`
	RunID           string  `json:"run_id"`
	Processed       int     `json:"processed"`
	Deleted         int     `json:"deleted"`
	Updated         int     `json:"updated"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Maintain runs one maintenance pass: evict stale records, reinforce
// accessed ones, rebuild the search index from the blobs, then log the run.
// A failing step aborts the pass and no log row is written; completed steps
// are not rolled back. Passes are serialized with all other writes.
func (e *Engine) Maintain(ctx context.Context) (*MaintenanceResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	start := time.Now()
	res := &MaintenanceResult{RunID: uuid.New().String()}
	log := e.log.WithField("run_id", res.RunID)
	log.Info("maintenance started")

	fail := func(step string, err error) (*MaintenanceResult, error) {
		metrics.MaintenanceFailures.WithLabelValues(step).Inc()
		metrics.Observe("maintain", err)
		log.WithError(err).WithField("step", step).Error("maintenance aborted")
		return nil, fmt.Errorf("maintenance %s: %w", step, err)
	}

	deleted, err := e.evict()
	if err != nil {
		return fail("evict", err)
	}
	res.Deleted = deleted
	if err := ctx.Err(); err != nil {
		return fail("evict", err)
	}

	updated, err := e.DB.Reinforce(e.maintenance.ReinforceStep)
	if err != nil {
		return fail("reinforce", err)
	}
	res.Updated = updated
	if err := ctx.Err(); err != nil {
		return fail("reinforce", err)
	}

	processed, err := e.rebuildSearch(ctx)
	if err != nil {
		return fail("rebuild", err)
	}
	res.Processed = processed

	res.DurationSeconds = time.Since(start).Seconds()
	if err := e.DB.InsertMaintenanceLog(&store.MaintenanceLog{
		Operation:       MaintenanceOperation,
		ItemsProcessed:  res.Processed,
		ItemsDeleted:    res.Deleted,
		ItemsUpdated:    res.Updated,
		DurationSeconds: res.DurationSeconds,
	}); err != nil {
		return fail("log", err)
	}
	res.Status = StatusComplete

	metrics.Observe("maintain", nil)
	metrics.MaintenanceDuration.Observe(res.DurationSeconds)
	metrics.Evicted.Add(float64(res.Deleted))
	metrics.Reinforced.Add(float64(res.Updated))
	metrics.SearchRows.Set(float64(res.Processed))

	log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"deleted":   res.Deleted,
		"updated":   res.Updated,
		"duration":  res.DurationSeconds,
	}).Info("maintenance complete")
	return res, nil
}

// MaintenanceLogs returns recent maintenance runs, newest first.
func (e *Engine) MaintenanceLogs(ctx context.Context, limit int) ([]store.MaintenanceLog, error) {
	logs, err := e.DB.MaintenanceLogs(limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []store.MaintenanceLog{}
	}
	return logs, nil
}

// evict deletes stale stat rows and the chats and entities they describe.
func (e *Engine) evict() (int, error) {
	m := e.maintenance
	evicted, err := e.DB.EvictStale(store.EvictionRule{
		MaxImportance: m.MinImportance,
		Cutoff:        e.now().Add(-m.StaleAfter()).UnixMilli(),
		MaxAccess:     m.MinAccess,
	})
	if err != nil {
		return 0, err
	}

	for _, s := range evicted {
		switch s.ContentType {
		case store.ContentEntity:
			ent, err := e.DB.GetEntity(s.ContentID)
			if err != nil {
				return 0, err
			}
			if ent != nil {
				if err := e.dropEntity(ent); err != nil {
					return 0, err
				}
			}
		case store.ContentChat:
			c, err := e.DB.GetChat(s.ContentID)
			if err != nil {
				return 0, err
			}
			if c != nil {
				if err := e.dropChat(c.ID, c.FilePath); err != nil {
					return 0, err
				}
			}
		}
		if err := e.DB.RemoveFromSearch(s.ContentID); err != nil {
			return 0, err
		}
		e.log.WithFields(logrus.Fields{
			"content_id":   s.ContentID,
			"content_type": s.ContentType,
			"importance":   s.Importance,
		}).Debug("evicted")
	}
	return len(evicted), nil
}

// rebuildSearch re-derives every search row from the chat and entity blobs.
// Rows whose blob is missing are skipped and not counted. The new index is
// staged alongside the live one and swapped in under searchMu.
func (e *Engine) rebuildSearch(ctx context.Context) (int, error) {
	chats, err := e.DB.ChatBlobs()
	if err != nil {
		return 0, err
	}
	entities, err := e.DB.EntityBlobs()
	if err != nil {
		return 0, err
	}

	records := make([]store.SearchRecord, 0, len(chats)+len(entities))
	for _, ref := range append(chats, entities...) {
		content, err := e.Blobs.Get(ref.FilePath)
		if errors.Is(err, memerr.ErrNotFound) {
			e.log.WithField("content_id", ref.ContentID).Warn("blob missing, not indexed")
			continue
		}
		if err != nil {
			return 0, err
		}
		records = append(records, store.SearchRecord{
			ContentID:   ref.ContentID,
			ContentType: ref.ContentType,
			Title:       ref.Title,
			Summary:     ref.Summary,
			Content:     content,
		})
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := e.DB.StageSearch(records); err != nil {
		return 0, err
	}
	e.searchMu.Lock()
	err = e.DB.SwapSearch()
	e.searchMu.Unlock()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
