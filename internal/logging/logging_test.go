package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "debug", "json")

	logger.WithFields(logrus.Fields{"entity_id": "entity_01"}).Debug("created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "entity_01", line["entity_id"])
	assert.Equal(t, "created", line["msg"])
}

func TestNewUnknownLevel(t *testing.T) {
	logger := NewWithOutput(&bytes.Buffer{}, "chatty", "text")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("dropped")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
