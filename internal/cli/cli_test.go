package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/blob"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/server"
	"github.com/lazypower/mnemo/internal/store"
)

// run executes the root command against root and decodes its JSON output.
func run(t *testing.T, root string, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(root, "config.yaml"),
		"--root", root,
	}, args...))
	err := rootCmd.Execute()

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body), "output: %s", out.String())
	return body, err
}

func TestCommandsEndToEnd(t *testing.T) {
	root := t.TempDir()

	body, err := run(t, root, "init", "--seed")
	require.NoError(t, err)
	assert.Equal(t, "created", body["status"])
	assert.Greater(t, body["seeded"], float64(0))

	body, err = run(t, root, "entity", "create", "--name", "Ada", "--type", "person", "--content", "likes compilers")
	require.NoError(t, err)
	id, _ := body["entity_id"].(string)
	require.NotEmpty(t, id)

	body, err = run(t, root, "entity", "get", id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", body["name"])
	assert.Equal(t, 0.5, body["importance"])

	body, err = run(t, root, "search", "compilers")
	require.NoError(t, err)
	assert.Equal(t, float64(1), body["count"])

	body, err = run(t, root, "ability", "Read Files", "can read local files")
	require.NoError(t, err)
	assert.Equal(t, "ability_read_files", body["key"])

	body, err = run(t, root, "context")
	require.NoError(t, err)
	abilities, _ := body["abilities"].([]any)
	assert.NotEmpty(t, abilities)

	body, err = run(t, root, "maintain")
	require.NoError(t, err)
	assert.Equal(t, "complete", body["status"])

	body, err = run(t, root, "maintain", "log")
	require.NoError(t, err)
	assert.Equal(t, float64(1), body["count"])
}

func TestCommandErrors(t *testing.T) {
	root := t.TempDir()

	body, err := run(t, root, "entity", "get", "entity_missing")
	require.Error(t, err)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "schema_missing", body["kind"])

	_, err = run(t, root, "init")
	require.NoError(t, err)

	body, err = run(t, root, "entity", "get", "entity_missing")
	require.Error(t, err)
	assert.Equal(t, "not_found", body["kind"])

	body, err = run(t, root, "relate", "entity_a", "entity_b", "knows", "--strength", "2")
	require.Error(t, err)
	assert.Equal(t, "validation", body["kind"])
}

func TestMaintainOnServer(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	blobs, err := blob.Open(t.TempDir(), blob.Options{})
	require.NoError(t, err)
	eng := engine.New(db, blobs, engine.Options{WriteTimeout: 5 * time.Second})
	t.Cleanup(func() { eng.Close() })
	ts := httptest.NewServer(server.New(eng, nil, "test"))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { maintainURL, maintainRepair = "", false })

	// No local root is initialized; the pass must run on the server.
	root := t.TempDir()
	body, err := run(t, root, "maintain", "--url", ts.URL, "--repair")
	require.NoError(t, err)
	assert.Equal(t, "complete", body["status"])

	logs, err := eng.MaintenanceLogs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestVersion(t *testing.T) {
	body, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, Version, body["version"])
	assert.NotEmpty(t, body["go_version"])
	assert.NotEmpty(t, body["platform"])
}
