package common

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/common/constant"
	"gatepass/common/otel"
)

func TestExtractTraceIDFromCtx(t *testing.T) {
	cfg := viper.New()
	cfg.Set("otel.endpoint", "localhost:4317")

	shutdown, err := otel.InitTracer(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	ctx, span := otel.Tracer.Start(context.Background(), "validate")
	defer span.End()

	attr := ExtractTraceIDFromCtx(ctx)
	assert.Equal(t, constant.LogFieldTraceId, attr.Key)
	assert.Equal(t, span.SpanContext().TraceID().String(), attr.Value.String())

	// without a span in the context the attr falls back to a fresh ulid
	fallback := ExtractTraceIDFromCtx(context.Background())
	assert.Len(t, fallback.Value.String(), 26)
	assert.NotEqual(t, attr.Value.String(), fallback.Value.String())
}
