package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Configuration error codes (E200-E209)
const (
	ErrSchemaCompile   = "E200" // embedded schema failed to compile
	ErrSchemaViolation = "E201" // value rejected by the schema
	ErrEnvValue        = "E202" // CARTSYNC_* variable could not be parsed
)

// ValidationError is one rejected configuration field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every violation found in one pass.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Has reports whether any error refers to field.
func (errs ValidationErrors) Has(field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Validate checks cfg against the embedded schema and returns
// ValidationErrors on failure.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return ValidationErrors{{Code: ErrSchemaCompile, Message: err.Error()}}
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(cfg.document()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fromCUE(err)
	}
	return nil
}

func fromCUE(err error) ValidationErrors {
	var out ValidationErrors
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		field := strings.Join(trimDefinition(e.Path()), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if seen[field+msg] {
			continue
		}
		seen[field+msg] = true
		out = append(out, ValidationError{Field: field, Message: msg, Code: ErrSchemaViolation})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Code: ErrSchemaViolation, Message: err.Error()})
	}
	return out
}

func trimDefinition(path []string) []string {
	if len(path) > 0 && path[0] == "#Config" {
		return path[1:]
	}
	return path
}

// document is the schema-facing form of cfg. Durations become
// integer milliseconds under a *_ms key.
func (c *Config) document() map[string]interface{} {
	brokers := c.Kafka.Brokers
	if brokers == nil {
		brokers = []string{}
	}
	return map[string]interface{}{
		"app": map[string]interface{}{
			"name":        c.App.Name,
			"environment": c.App.Environment,
		},
		"logging": map[string]interface{}{
			"level":   c.Logging.Level,
			"format":  c.Logging.Format,
			"output":  c.Logging.Output,
			"max_age": c.Logging.MaxAge,
		},
		"reconcile": map[string]interface{}{
			"retention_window_ms": millis(c.Reconcile.RetentionWindow),
		},
		"transport": map[string]interface{}{
			"url":                  c.Transport.URL,
			"initial_backoff_ms":   millis(c.Transport.InitialBackoff),
			"max_backoff_ms":       millis(c.Transport.MaxBackoff),
			"handshake_timeout_ms": millis(c.Transport.HandshakeTimeout),
			"ping_interval_ms":     millis(c.Transport.PingInterval),
		},
		"capture": map[string]interface{}{
			"enabled":     c.Capture.Enabled,
			"source_dir":  c.Capture.SourceDir,
			"interval_ms": millis(c.Capture.Interval),
			"max_fps":     c.Capture.MaxFPS,
		},
		"api": map[string]interface{}{
			"enabled": c.API.Enabled,
			"addr":    c.API.Addr,
		},
		"tracing": map[string]interface{}{
			"enabled":      c.Tracing.Enabled,
			"endpoint":     c.Tracing.Endpoint,
			"insecure":     c.Tracing.Insecure,
			"service_name": c.Tracing.ServiceName,
			"sample_ratio": c.Tracing.SampleRatio,
		},
		"redis": map[string]interface{}{
			"enabled": c.Redis.Enabled,
			"addr":    c.Redis.Addr,
			"db":      c.Redis.DB,
			"key":     c.Redis.Key,
			"channel": c.Redis.Channel,
			"ttl_ms":  millis(c.Redis.TTL),
		},
		"kafka": map[string]interface{}{
			"enabled": c.Kafka.Enabled,
			"brokers": brokers,
			"topic":   c.Kafka.Topic,
		},
		"simulate": map[string]interface{}{
			"addr":         c.Simulate.Addr,
			"catalog_path": c.Simulate.CatalogPath,
			"script":       c.Simulate.Script,
		},
	}
}

func millis(d Duration) int64 {
	return d.Std().Milliseconds()
}
