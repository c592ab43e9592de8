package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
)

func TestDisabledIsNoOp(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, tel.provider)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want sdktrace.Sampler
	}{
		{name: "always at one", rate: 1.0, want: sdktrace.AlwaysSample()},
		{name: "always above one", rate: 2.0, want: sdktrace.AlwaysSample()},
		{name: "never at zero", rate: 0, want: sdktrace.NeverSample()},
		{name: "never below zero", rate: -0.5, want: sdktrace.NeverSample()},
		{name: "ratio in between", rate: 0.25, want: sdktrace.TraceIDRatioBased(0.25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want.Description(), sampler(tt.rate).Description())
		})
	}
}
