package contextkeys

import (
	"context"
	"testing"

	"share-worker/internal/core/port"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	noopLogger
	infos []string
}

func (r *recordingLogger) Info(msg string, fields port.Fields) { r.infos = append(r.infos, msg) }

func TestLoggerFromContext(t *testing.T) {
	assert.NotNil(t, LoggerFromContext(context.Background()))

	logger := &recordingLogger{}
	ctx := ContextWithLogger(context.Background(), logger)
	LoggerFromContext(ctx).Info("hello", nil)

	assert.Equal(t, []string{"hello"}, logger.infos)
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
}
