package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CARTSYNC_"

type envSetter func(c *Config, raw string) error

func str(field func(*Config) *string) envSetter {
	return func(c *Config, raw string) error {
		*field(c) = raw
		return nil
	}
}

func boolean(field func(*Config) *bool) envSetter {
	return func(c *Config, raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func duration(field func(*Config) *Duration) envSetter {
	return func(c *Config, raw string) error {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*field(c) = Duration(v)
		return nil
	}
}

// envOverrides maps variable names (without EnvPrefix) to fields.
var envOverrides = map[string]envSetter{
	"ENV":              str(func(c *Config) *string { return &c.App.Environment }),
	"LOG_LEVEL":        str(func(c *Config) *string { return &c.Logging.Level }),
	"LOG_FORMAT":       str(func(c *Config) *string { return &c.Logging.Format }),
	"LOG_OUTPUT":       str(func(c *Config) *string { return &c.Logging.Output }),
	"RETENTION_WINDOW": duration(func(c *Config) *Duration { return &c.Reconcile.RetentionWindow }),
	"TRANSPORT_URL":    str(func(c *Config) *string { return &c.Transport.URL }),
	"CAPTURE_ENABLED":  boolean(func(c *Config) *bool { return &c.Capture.Enabled }),
	"CAPTURE_DIR":      str(func(c *Config) *string { return &c.Capture.SourceDir }),
	"API_ENABLED":      boolean(func(c *Config) *bool { return &c.API.Enabled }),
	"API_ADDR":         str(func(c *Config) *string { return &c.API.Addr }),
	"TRACING_ENABLED":  boolean(func(c *Config) *bool { return &c.Tracing.Enabled }),
	"TRACING_ENDPOINT": str(func(c *Config) *string { return &c.Tracing.Endpoint }),
	"REDIS_ENABLED":    boolean(func(c *Config) *bool { return &c.Redis.Enabled }),
	"REDIS_ADDR":       str(func(c *Config) *string { return &c.Redis.Addr }),
	"REDIS_PASSWORD":   str(func(c *Config) *string { return &c.Redis.Password }),
	"KAFKA_ENABLED":    boolean(func(c *Config) *bool { return &c.Kafka.Enabled }),
	"KAFKA_TOPIC":      str(func(c *Config) *string { return &c.Kafka.Topic }),
	"KAFKA_BROKERS": func(c *Config, raw string) error {
		var brokers []string
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Kafka.Brokers = brokers
		return nil
	},
	"SIMULATE_ADDR": str(func(c *Config) *string { return &c.Simulate.Addr }),
	"CATALOG_PATH":  str(func(c *Config) *string { return &c.Simulate.CatalogPath }),
}

// applyEnv overlays CARTSYNC_* variables found by lookup onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs ValidationErrors
	for name, set := range envOverrides {
		raw, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(cfg, raw); err != nil {
			errs = append(errs, ValidationError{
				Field:   EnvPrefix + name,
				Message: fmt.Sprintf("invalid value %q: %v", raw, err),
				Code:    ErrEnvValue,
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
