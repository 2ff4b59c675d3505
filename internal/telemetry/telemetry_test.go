package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerStampsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger, runID := NewLogger(&buf, LoggerOptions{Level: slog.LevelInfo})

	logger.Debug("hidden")
	logger.Info("backup started", "folder", "INBOX")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "backup started", entry["msg"])
	assert.Equal(t, "INBOX", entry["folder"])
	assert.Equal(t, runID, entry["run_id"])
	assert.Len(t, runID, 36)
}

func TestFanoutHandlerWritesToEveryHandler(t *testing.T) {
	var debug, info bytes.Buffer
	handler := &fanoutHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}
	logger := slog.New(handler).With("account", "me").WithGroup("sync")

	logger.Debug("detail", "uid", 7)
	logger.Info("summary", "count", 2)

	assert.Contains(t, debug.String(), "detail")
	assert.Contains(t, debug.String(), "summary")
	assert.Contains(t, debug.String(), "account=me")
	assert.Contains(t, debug.String(), "sync.uid=7")
	assert.NotContains(t, info.String(), "detail")
	assert.Contains(t, info.String(), "sync.count=2")
}

func TestSetupOTelSDKStdoutExportsLogs(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := SetupOTelSDK(ctx, Settings{Exporter: ExporterStdout, Writer: &buf})
	require.NoError(t, err)

	logger, _ := NewLogger(&bytes.Buffer{}, LoggerOptions{Level: slog.LevelInfo, OTel: true})
	logger.Info("exported through the bridge")

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), "exported through the bridge")
}

func TestCountersAreUsableWithoutSDK(t *testing.T) {
	counters := NewCounters()
	assert.NotPanics(t, func() {
		Add(context.Background(), counters.Downloaded, 3, "INBOX")
		Add(context.Background(), nil, 1, "INBOX")
	})
}
