package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Options{Terminal: &buf, MinLevel: WARN, NoColor: true})
	require.NoError(t, err)

	l.Info("ORDER", "hidden")
	l.Warn("ORDER", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "[ORDER     ]")
}

func TestLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := NewLogger(Options{Dir: dir, Prefix: "test", Terminal: &buf, NoColor: true})
	require.NoError(t, err)

	l.LogWebhook("unresolved", "payment.succeeded", "checkout ch_1 not found")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Category == "WEBHOOK" {
			found = true
			assert.Equal(t, "WARN", entry.Level)
			assert.Contains(t, entry.Message, "[unresolved]")
		}
	}
	assert.True(t, found)
}

func TestNopLoggerIsSilent(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Error("ORDER", "nothing")
		l.Close()
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel(""))
}
