package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_Fields(t *testing.T) {
	var buf bytes.Buffer
	rc := NewRequestContext(NewLogger(&buf, "json", "debug"), "analyze")
	require.NotEmpty(t, rc.RequestID)

	rc.Info(context.Background(), "extracted", slog.Int(LogFieldRuleCount, 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "extracted", entry["msg"])
	assert.Equal(t, rc.RequestID, entry[LogFieldRequestID])
	assert.Equal(t, "analyze", entry[LogFieldOperation])
	assert.Equal(t, float64(3), entry[LogFieldRuleCount])
}

func TestRequestContext_Error(t *testing.T) {
	var buf bytes.Buffer
	rc := NewRequestContext(NewLogger(&buf, "json", "info"), "ocr")
	rc.Error(context.Background(), "ocr failed", errors.New("no tesseract"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "no tesseract", entry["error"])
}

func TestRequestContext_InContext(t *testing.T) {
	rc := NewRequestContext(nil, "batch")
	ctx := WithRequestContext(context.Background(), rc)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", "warn")
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Record("extract", 10*time.Millisecond, nil)
	m.Record("extract", 30*time.Millisecond, errors.New("boom"))
	m.Record("analyze", 5*time.Millisecond, nil)
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(true)

	s := m.Snapshot()
	require.Len(t, s.Operations, 2)
	assert.Equal(t, "analyze", s.Operations[0].Operation)
	assert.Equal(t, OperationSnapshot{
		Operation: "extract", Count: 2, Failures: 1, TotalDuration: 40, AverageDuration: 20,
	}, s.Operations[1])
	assert.InDelta(t, 2.0/3.0, s.CacheHitRate(), 1e-9)
}
