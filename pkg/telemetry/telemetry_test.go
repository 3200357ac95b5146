package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/config"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), &config.TelemetryConfig{ServiceName: "homebrew-engine"}, "test", zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetup_WithEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := &config.TelemetryConfig{
		ServiceName:  "homebrew-engine",
		OTLPEndpoint: "127.0.0.1:4317",
		OTLPInsecure: true,
		SampleRatio:  1,
	}

	// The gRPC exporter connects lazily, so setup succeeds without a collector.
	shutdown, err := Setup(context.Background(), cfg, "test", zap.NewNop())
	require.NoError(t, err)
	assert.NotSame(t, prev, otel.GetTracerProvider())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
