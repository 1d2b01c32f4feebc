// Package config loads cartsync configuration from .env, YAML and
// CARTSYNC_* environment variables, and validates it against a CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration spelled as a Go duration string in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"5s\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Transport TransportConfig `yaml:"transport"`
	Capture   CaptureConfig   `yaml:"capture"`
	API       APIConfig       `yaml:"api"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Simulate  SimulateConfig  `yaml:"simulate"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"` // stdout, stderr or a file path
	MaxAge int    `yaml:"max_age"` // days; > 0 rotates file output
}

type ReconcileConfig struct {
	RetentionWindow Duration `yaml:"retention_window"`
}

type TransportConfig struct {
	URL              string   `yaml:"url"`
	InitialBackoff   Duration `yaml:"initial_backoff"`
	MaxBackoff       Duration `yaml:"max_backoff"`
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
	PingInterval     Duration `yaml:"ping_interval"`
}

type CaptureConfig struct {
	Enabled   bool     `yaml:"enabled"`
	SourceDir string   `yaml:"source_dir"`
	Interval  Duration `yaml:"interval"`
	MaxFPS    float64  `yaml:"max_fps"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type RedisConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Key      string   `yaml:"key"`
	Channel  string   `yaml:"channel"`
	TTL      Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SimulateConfig struct {
	Addr        string `yaml:"addr"`
	CatalogPath string `yaml:"catalog_path"`
	Script      string `yaml:"script"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "cartsync", Environment: "development"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Reconcile: ReconcileConfig{RetentionWindow: Duration(5 * time.Second)},
		Transport: TransportConfig{
			URL:              "ws://127.0.0.1:5000/ws",
			InitialBackoff:   Duration(time.Second),
			MaxBackoff:       Duration(5 * time.Second),
			HandshakeTimeout: Duration(10 * time.Second),
			PingInterval:     Duration(20 * time.Second),
		},
		Capture: CaptureConfig{Interval: Duration(50 * time.Millisecond)},
		API:     APIConfig{Enabled: true, Addr: ":8080"},
		Tracing: TracingConfig{ServiceName: "cartsync", SampleRatio: 1},
		Redis: RedisConfig{
			Addr:    "127.0.0.1:6379",
			Key:     "cartsync:view",
			Channel: "cartsync:updates",
		},
		Kafka:    KafkaConfig{Topic: "cartsync.checkout"},
		Simulate: SimulateConfig{Addr: ":5000", CatalogPath: "products.db"},
	}
}

// Load builds a configuration:
//  1. variables from envFiles (".env" when none are given) that exist
//  2. defaults, overlaid by the YAML file at path when path is not empty
//  3. CARTSYNC_* environment variables
//
// The result is validated before it is returned.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		// Existing process variables win over file values.
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// decodeYAML overlays data onto cfg, rejecting unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}
