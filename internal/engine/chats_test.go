package engine

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/memerr"
)

func TestStoreChat(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	res, err := e.StoreChat(ctx, ChatInput{
		ID:        "chat-001",
		URL:       "https://example.com/c/1",
		Title:     "Planning",
		Content:   "we discussed the roadmap",
		Summary:   "roadmap chat",
		ToolsUsed: []string{"search"},
		Topics:    []string{"work", "work"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusStored, res.Status)
	assert.Equal(t, "chat-001", res.ChatID)
	assert.FileExists(t, res.File)

	got, err := e.GetChat(ctx, "chat-001")
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Title)
	assert.Equal(t, []string{"work"}, got.Topics)
	assert.True(t, strings.HasPrefix(got.Content, "# Planning\n\n**URL:** https://example.com/c/1\n\n**Date:** "))
	assert.True(t, strings.HasSuffix(got.Content, "we discussed the roadmap"))

	hits, err := e.SearchMemory(ctx, "roadmap", SearchOpts{ContentTypes: []string{"chat"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chat-001", hits[0].ContentID)
}

func TestStoreChatReplaces(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	_, err := e.StoreChat(ctx, ChatInput{ID: "chat-001", Title: "First", Content: "alpha"})
	require.NoError(t, err)
	_, err = e.GetChat(ctx, "chat-001")
	require.NoError(t, err)

	_, err = e.StoreChat(ctx, ChatInput{ID: "chat-001", Title: "Second", Content: "beta"})
	require.NoError(t, err)

	got, err := e.GetChat(ctx, "chat-001")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)
	assert.NotContains(t, got.Content, "alpha")

	hits, err := e.SearchMemory(ctx, "alpha", SearchOpts{})
	require.NoError(t, err)
	assert.Empty(t, hits)
	n, err := e.DB.CountSearch()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stat, err := e.DB.GetStat("chat-001")
	require.NoError(t, err)
	assert.Equal(t, 2, stat.AccessCount, "re-store keeps access history")
}

func TestStoreChatValidation(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	_, err := e.StoreChat(ctx, ChatInput{Title: "no id"})
	assert.ErrorIs(t, err, memerr.ErrValidation)
	_, err = e.StoreChat(ctx, ChatInput{ID: "a/b", Title: "slash"})
	assert.ErrorIs(t, err, memerr.ErrValidation)
}

func TestGetAndDeleteChat(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	_, err := e.GetChat(ctx, "missing")
	assert.ErrorIs(t, err, memerr.ErrNotFound)

	res, err := e.StoreChat(ctx, ChatInput{ID: "c1", Title: "T", Content: "body"})
	require.NoError(t, err)

	_, err = e.DeleteChat(ctx, "c1")
	require.NoError(t, err)
	_, statErr := os.Stat(res.File)
	assert.True(t, os.IsNotExist(statErr))
	_, err = e.GetChat(ctx, "c1")
	assert.ErrorIs(t, err, memerr.ErrNotFound)
}
