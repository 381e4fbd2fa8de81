package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_EmptyEndpoint_ReturnsNoOpProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), "test-svc", "", true, 0.1)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(context.Background())
	assert.NoError(t, err)
}

func TestTracer_ReturnsNonNil(t *testing.T) {
	shutdown, err := Init(context.Background(), "test-svc", "", true, 0.1)
	require.NoError(t, err)
	defer shutdown(context.Background())

	assert.NotNil(t, Tracer("test-tracer"))
}

func TestStartEnd_NoOpProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), "test-svc", "", true, 1)
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, span := Start(context.Background(), "provider.fetch", attribute.String("provider", "goplus"))
	require.NotNil(t, ctx)
	assert.NotPanics(t, func() { End(span, errors.New("boom")) })

	_, span = Start(ctx, "queue.claim")
	assert.NotPanics(t, func() { End(span, nil) })
}

func TestInit_ShutdownIdempotent(t *testing.T) {
	shutdown, err := Init(context.Background(), "test-svc", "", true, 0.1)
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_WithEndpoint_DialsLazily(t *testing.T) {
	shutdown, err := Init(context.Background(), "test-svc", "127.0.0.1:4317", true, 0.5)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
