package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lazypower/mnemo/internal/blob"
	"github.com/lazypower/mnemo/internal/memerr"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// ChatInput holds the parameters for StoreChat. ID is caller supplied.
type ChatInput struct {
	ID        string   `json:"chat_id"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Summary   string   `json:"summary"`
	ToolsUsed []string `json:"tools_used"`
	Topics    []string `json:"topics"`
}

// ChatResult is returned by StoreChat.
type ChatResult struct {
	Status string `json:"status"`
	ChatID string `json:"chat_id"`
	File   string `json:"file"`
}

// ChatDetail is a chat row together with its transcript.
type ChatDetail struct {
	store.Chat
	Content string `json:"content"`
}

// StoreChat writes the transcript blob and upserts the chat row. Storing
// an existing id replaces the blob, the row and the search row; the
// original created_at and access history are kept.
func (e *Engine) StoreChat(ctx context.Context, in ChatInput) (res *ChatResult, err error) {
	defer func() { metrics.Observe("store_chat", err) }()

	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" || strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: chat id and title are required", memerr.ErrValidation)
	}

	ctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer e.writeMu.Unlock()

	doc := blob.ChatDocument(in.Title, in.URL, e.now(), in.Content)
	path, err := e.Blobs.Put(blob.KindChat, "", in.ID, doc)
	if err != nil {
		return nil, fmt.Errorf("store chat %s: %w", in.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("store chat %s: %w", in.ID, err)
	}

	c := &store.Chat{
		ID:        in.ID,
		URL:       in.URL,
		Title:     in.Title,
		Summary:   in.Summary,
		ToolsUsed: in.ToolsUsed,
		Topics:    in.Topics,
		FilePath:  path,
	}
	if err := e.DB.UpsertChat(c); err != nil {
		return nil, err
	}
	if err := e.DB.EnsureStat(in.ID, store.ContentChat, DefaultImportance); err != nil {
		return nil, err
	}
	if err := e.DB.Index(store.SearchRecord{
		ContentID:   in.ID,
		ContentType: store.ContentChat,
		Title:       in.Title,
		Summary:     in.Summary,
		Content:     doc,
	}); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"chat_id": in.ID, "bytes": len(in.Content)}).Info("chat stored")
	return &ChatResult{Status: StatusStored, ChatID: in.ID, File: path}, nil
}

// GetChat returns the chat row and transcript, and records an access.
func (e *Engine) GetChat(ctx context.Context, id string) (detail *ChatDetail, err error) {
	defer func() { metrics.Observe("get_chat", err) }()

	c, err := e.DB.GetChat(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: chat %s", memerr.ErrNotFound, id)
	}

	content, err := e.Blobs.Get(c.FilePath)
	if errors.Is(err, memerr.ErrNotFound) {
		content, err = "", nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.DB.TouchStat(id); err != nil {
		e.log.WithError(err).WithField("chat_id", id).Warn("record access failed")
	}
	return &ChatDetail{Chat: *c, Content: content}, nil
}

// DeleteChat removes the chat row, stat and search rows, then the blob.
func (e *Engine) DeleteChat(ctx context.Context, id string) (res *DeleteResult, err error) {
	defer func() { metrics.Observe("delete_chat", err) }()

	ctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer e.writeMu.Unlock()

	c, err := e.DB.GetChat(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: chat %s", memerr.ErrNotFound, id)
	}
	if err := e.dropChat(c.ID, c.FilePath); err != nil {
		return nil, err
	}

	e.log.WithField("chat_id", id).Info("chat deleted")
	return &DeleteResult{Status: StatusDeleted, ID: id}, nil
}

// dropChat deletes everything owned by a chat. Callers hold writeMu.
func (e *Engine) dropChat(id, path string) error {
	if _, err := e.DB.DeleteChat(id); err != nil {
		return err
	}
	if err := e.DB.DeleteStat(id); err != nil {
		return err
	}
	if err := e.DB.RemoveFromSearch(id); err != nil {
		return err
	}
	return e.Blobs.Delete(path)
}
