package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		out = append(out, entry)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug)
		require.NoError(t, err)
		defer logger.Close()

		_, err = os.Stat(filepath.Join(dir, FileName))
		assert.NoError(t, err)
	})

	t.Run("writes to stderr when dir is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		require.NoError(t, err)
		defer logger.Close()

		assert.Nil(t, logger.file)
	})

	t.Run("creates missing nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")

		logger, err := NewLogger(dir, LevelInfo)
		require.NoError(t, err)
		require.NoError(t, logger.Close())

		_, err = os.Stat(filepath.Join(dir, FileName))
		assert.NoError(t, err)
	})
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug).
		WithComponent("fleet").
		WithAgent("agent-1").
		WithStand("A")

	logger.Info("stand acquired", "dwell_ms", 1000)

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "fleet", entry["component"])
	assert.Equal(t, "agent-1", entry["agent_id"])
	assert.Equal(t, "A", entry["stand"])
	assert.EqualValues(t, 1000, entry["dwell_ms"])
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriterLogger(&buf, LevelInfo)

	child := parent.With("phase", 2, 42, "ignored-non-string-key")
	assert.Same(t, parent, parent.With())

	child.Info("child")
	parent.Info("parent")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 2)
	assert.EqualValues(t, 2, entries[0]["phase"])
	_, ok := entries[1]["phase"]
	assert.False(t, ok, "parent must not inherit child attributes")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Debug("x")
	logger.Error("y")
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestValidLevels(t *testing.T) {
	assert.Equal(t, []string{"DEBUG", "INFO", "WARN", "ERROR"}, ValidLevels())
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	assert.NoError(t, logger.Close(), "second Close should be a no-op")
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			child := logger.WithAgent("agent")
			for j := 0; j < 25; j++ {
				child.Info("tick", "worker", n, "seq", j)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, string(content)), 200)
}
