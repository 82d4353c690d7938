package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("json honours level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := newLogger("warn", "json", buf)
		logger.Info("Dropped.")
		logger.Warn("Kept.", "project", ":child")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "Kept.", rec["msg"])
		assert.Equal(t, ":child", rec["project"])
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := newLogger("debug", "text", buf)
		logger.Debug("Parsed build script.", "path", "build.hcl")
		assert.Contains(t, buf.String(), "Parsed build script.")
		assert.Contains(t, buf.String(), "build.hcl")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := newLogger("chatty", "json", buf)
		logger.Debug("Dropped.")
		assert.Empty(t, buf.String())
		logger.Info("Kept.")
		assert.Contains(t, buf.String(), "Kept.")
	})
}
