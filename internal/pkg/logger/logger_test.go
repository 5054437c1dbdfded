package logger

import (
	"bytes"
	"context"
	"errors"
	log "log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandlerAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)})

	l.InfoContext(WithTraceID(context.Background(), "abc-123"), "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc-123", rec[TraceIDKey])
}

func TestRemoteSinkShipsTracedAndWarnings(t *testing.T) {
	var local, remote bytes.Buffer
	sink := newRemoteSink(log.NewJSONHandler(&local, nil), log.NewJSONHandler(&remote, nil))
	l := log.New(&ContextHandler{sink})

	l.Info("no trace")
	assert.Contains(t, local.String(), "no trace")
	assert.Empty(t, remote.String())

	l.InfoContext(WithTraceID(context.Background(), "t-1"), "traced")
	assert.Contains(t, remote.String(), "t-1")

	// 无 trace 的告警同样上报
	l.With("post_id", "p-1").Warn("moderation lock unavailable")
	assert.Contains(t, remote.String(), "moderation lock unavailable")
	assert.Contains(t, remote.String(), "p-1")
	assert.Zero(t, sink.Dropped())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestRemoteSinkFailureKeepsLocal(t *testing.T) {
	var local bytes.Buffer
	sink := newRemoteSink(log.NewJSONHandler(&local, nil), log.NewJSONHandler(failingWriter{}, nil))
	l := log.New(sink)

	l.Error("commit moderation decision failed")
	assert.Contains(t, local.String(), "commit moderation decision failed")
	assert.Equal(t, int64(1), sink.Dropped())
}

func TestDetachTrace(t *testing.T) {
	ctx, cancel := context.WithCancel(WithTraceID(context.Background(), "t-2"))
	cancel()

	detached := DetachTrace(ctx)
	assert.NoError(t, detached.Err())
	assert.Equal(t, "t-2", TraceID(detached))
	assert.Equal(t, "", TraceID(DetachTrace(context.Background())))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, log.LevelWarn, parseLevel("warn"))
	assert.Equal(t, log.LevelInfo, parseLevel(""))
}
