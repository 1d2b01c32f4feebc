package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 5*time.Second, cfg.Reconcile.RetentionWindow.Std())
	assert.Equal(t, time.Second, cfg.Transport.InitialBackoff.Std())
	assert.Equal(t, 5*time.Second, cfg.Transport.MaxBackoff.Std())
	assert.Equal(t, 50*time.Millisecond, cfg.Capture.Interval.Std())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "cartsync.yaml", `
logging:
  level: debug
reconcile:
  retention_window: 2500ms
transport:
  url: ws://detector.local:5000/ws
  max_backoff: 10s
kafka:
  enabled: true
  brokers: [kafka-1:9092, kafka-2:9092]
`)

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format, "untouched fields keep defaults")
	assert.Equal(t, 2500*time.Millisecond, cfg.Reconcile.RetentionWindow.Std())
	assert.Equal(t, "ws://detector.local:5000/ws", cfg.Transport.URL)
	assert.Equal(t, 10*time.Second, cfg.Transport.MaxBackoff.Std())
	assert.Equal(t, time.Second, cfg.Transport.InitialBackoff.Std())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_EmptyYAML(t *testing.T) {
	path := writeFile(t, "empty.yaml", "\n")
	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeFile(t, "cartsync.yaml", "reconcile:\n  window: 5s\n")
	_, err := Load(path, noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window")
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeFile(t, "cartsync.yaml", "reconcile:\n  retention_window: soon\n")
	_, err := Load(path, noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "cartsync.yaml", "logging:\n  level: debug\n")
	t.Setenv("CARTSYNC_LOG_LEVEL", "warn")
	t.Setenv("CARTSYNC_RETENTION_WINDOW", "3s")
	t.Setenv("CARTSYNC_REDIS_ENABLED", "true")
	t.Setenv("CARTSYNC_KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 3*time.Second, cfg.Reconcile.RetentionWindow.Std())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := writeFile(t, "test.env", "CARTSYNC_API_ADDR=:9999\nCARTSYNC_LOG_FORMAT=text\n")
	// Registered so t restores the variables godotenv sets.
	t.Setenv("CARTSYNC_API_ADDR", "")
	t.Setenv("CARTSYNC_LOG_FORMAT", "")
	require.NoError(t, os.Unsetenv("CARTSYNC_API_ADDR"))
	require.NoError(t, os.Unsetenv("CARTSYNC_LOG_FORMAT"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.API.Addr)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_ProcessEnvBeatsEnvFile(t *testing.T) {
	envFile := writeFile(t, "test.env", "CARTSYNC_LOG_LEVEL=error\n")
	t.Setenv("CARTSYNC_LOG_LEVEL", "debug")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("CARTSYNC_API_ENABLED", "maybe")

	_, err := Load("", noEnvFile(t))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrEnvValue, verrs[0].Code)
	assert.Equal(t, "CARTSYNC_API_ENABLED", verrs[0].Field)
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero retention", func(c *Config) { c.Reconcile.RetentionWindow = 0 }, "reconcile.retention_window_ms"},
		{"http url", func(c *Config) { c.Transport.URL = "http://host/ws" }, "transport.url"},
		{"max backoff below initial", func(c *Config) {
			c.Transport.InitialBackoff = Duration(3 * time.Second)
			c.Transport.MaxBackoff = Duration(time.Second)
		}, "transport.max_backoff_ms"},
		{"capture without dir", func(c *Config) { c.Capture.Enabled = true }, "capture.source_dir"},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }, "tracing.endpoint"},
		{"sample ratio above one", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, "tracing.sample_ratio"},
		{"redis without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
		{"empty api addr", func(c *Config) { c.API.Addr = "" }, "api.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.True(t, verrs.Has(tt.field), "expected %s in %v", tt.field, verrs)
			for _, e := range verrs {
				assert.Equal(t, ErrSchemaViolation, e.Code)
			}
		})
	}
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Field: "api.addr", Message: "empty", Code: ErrSchemaViolation}
	assert.Equal(t, "[E201] api.addr: empty", e.Error())

	bare := ValidationError{Message: "broken", Code: ErrSchemaCompile}
	assert.Equal(t, "[E200] broken", bare.Error())

	errs := ValidationErrors{e, bare}
	assert.Equal(t, "invalid configuration: [E201] api.addr: empty; [E200] broken", errs.Error())
}
