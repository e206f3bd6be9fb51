package observability

import (
	"testing"

	"github.com/smallbiznis/catalyser/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "not-a-number")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("DEPLOYMENT_ENV", "")

	cfg := LoadConfig(config.Config{AppName: "", Environment: "staging", AppVersion: "1.2.3"})

	assert.Equal(t, "catalyser", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestDebugFollowsEnvironment(t *testing.T) {
	assert.True(t, Config{Environment: "local", LogLevel: "info"}.Debug())
	assert.False(t, Config{Environment: "production", LogLevel: "info"}.Debug())
}
