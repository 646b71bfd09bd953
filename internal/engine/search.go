package engine

import (
	"context"

	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// SearchOpts controls SearchMemory.
type SearchOpts struct {
	ContentTypes []string // restrict to these content types (empty = all)
	Limit        int      // max results (default 20)
}

// SearchMemory runs a full-text query over chats and entities, most
// relevant first, and records an access for every hit returned.
func (e *Engine) SearchMemory(ctx context.Context, query string, opts SearchOpts) (hits []store.SearchHit, err error) {
	defer func() { metrics.Observe("search_memory", err) }()

	e.searchMu.RLock()
	hits, err = e.DB.Search(store.SearchParams{
		Query:        query,
		ContentTypes: opts.ContentTypes,
		Limit:        opts.Limit,
	})
	e.searchMu.RUnlock()
	if err != nil {
		return nil, err
	}

	for _, h := range hits {
		if err := e.DB.TouchStat(h.ContentID); err != nil {
			e.log.WithError(err).WithField("content_id", h.ContentID).Warn("record access failed")
		}
	}
	return hits, nil
}
