// Package logging builds the logrus logger used across dashauth and scrubs
// credential-bearing fields before entries reach any formatter.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Redacted replaces the value of every sensitive field.
const Redacted = "[REDACTED]"

const maxRedactDepth = 5

// Config selects level and output format.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// New returns a logger writing to out (stderr when nil) with the
// redaction hook installed.
func New(cfg Config, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = l
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	log.AddHook(RedactionHook{})
	return log, nil
}

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"secret":        {},
	"token":         {},
	"cookie":        {},
	"session":       {},
	"authorization": {},
	"xc-token":      {},
}

var sensitiveFragments = []string{"pass", "token", "secret", "cookie"}

// IsSensitive reports whether a field named key must never be logged.
func IsSensitive(key string) bool {
	k := strings.ToLower(key)
	if _, ok := sensitiveKeys[k]; ok {
		return true
	}
	for _, f := range sensitiveFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// RedactionHook scrubs sensitive fields on every entry.
type RedactionHook struct{}

func (RedactionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (RedactionHook) Fire(e *logrus.Entry) error {
	for k, v := range e.Data {
		if k == logrus.ErrorKey {
			continue
		}
		e.Data[k] = redactValue(k, v, 0)
	}
	return nil
}

// Redact returns a copy of fields with sensitive values replaced.
func Redact(fields map[string]any) map[string]any {
	return redactMap(fields, 0)
}

func redactValue(key string, v any, depth int) any {
	if IsSensitive(key) {
		return Redacted
	}
	if depth >= maxRedactDepth {
		return v
	}
	switch m := v.(type) {
	case map[string]any:
		return redactMap(m, depth+1)
	case logrus.Fields:
		return logrus.Fields(redactMap(m, depth+1))
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, s := range m {
			if IsSensitive(k) {
				s = Redacted
			}
			out[k] = s
		}
		return out
	}
	return v
}

func redactMap(m map[string]any, depth int) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = redactValue(k, v, depth)
	}
	return out
}
