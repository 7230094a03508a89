package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	logger := zap.NewExample()
	ctx := WithContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	logger := FromContext(context.Background())

	assert.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("discarded") })
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")

	assert.NotNil(t, FromContext(ctx))
}

func TestWithRunID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, enriched := WithRunID(context.Background(), zap.New(core), "run-1")
	enriched.Info("computed")

	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Same(t, enriched, FromContext(ctx))
	assert.Equal(t, "run-1", recorded.All()[0].ContextMap()["run_id"])
}

func TestWithRunID_GeneratesID(t *testing.T) {
	ctx, _ := WithRunID(context.Background(), zap.NewNop(), "")

	_, err := uuid.Parse(GetRunID(ctx))
	assert.NoError(t, err)
}

func TestWithScope(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, enriched := WithScope(context.Background(), zap.New(core), "tenant-7")
	enriched.Info("loaded")

	assert.Equal(t, "tenant-7", GetScope(ctx))
	assert.Equal(t, "tenant-7", recorded.All()[0].ContextMap()["scope"])
}

func TestContextChaining(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, _ := WithScope(context.Background(), zap.New(core), "tenant-7")
	ctx, enriched := WithRunID(ctx, FromContext(ctx), "run-2")
	enriched.Info("chained")

	assert.Equal(t, "tenant-7", GetScope(ctx))
	assert.Equal(t, "run-2", GetRunID(ctx))
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "tenant-7", fields["scope"])
	assert.Equal(t, "run-2", fields["run_id"])
}

func TestGetters_NotFound(t *testing.T) {
	assert.Empty(t, GetRunID(context.Background()))
	assert.Empty(t, GetScope(context.Background()))
}
