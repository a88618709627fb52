package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.minLevel = WARN

	l.Info("APP", "hidden")
	l.Warn("APP", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  [APP       ] shown")
}

func TestLogSeatChange(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.LogSeatChange(3, 10, []int64{4, 5}, true, "node-a")
	l.LogSeatChange(3, 10, []int64{4}, false, "node-b")

	out := buf.String()
	assert.Contains(t, out, "[SEATS     ] [RESERVED] event=3 order=10 seats=[4 5] origin=node-a")
	assert.Contains(t, out, "[RELEASED] event=3 order=10 seats=[4] origin=node-b")
}

func TestLogCacheStats(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.LogCacheStats(3, 1, 1, 0)
	assert.Contains(t, buf.String(), "INFO  [CACHE     ] [STATS] hits=3 misses=1 loads=1 backend_errors=0 hit_ratio=75.0%")

	buf.Reset()
	l.LogCacheStats(0, 0, 0, 2)
	assert.Contains(t, buf.String(), "WARN  [CACHE     ] [STATS] hits=0 misses=0 loads=0 backend_errors=2 hit_ratio=0.0%")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "INFO", LogLevel(42).String())
}
