// Package redaction strips sensitive values out of structured log payloads
// before they reach any sink.
package redaction

import (
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(secret|token|auth)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(Bearer)\s+([a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`(?i)(password)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(key[_-]?hash)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
}

// Config controls which fields are treated as sensitive.
type Config struct {
	Enabled         bool
	RedactionText   string
	BlockedPatterns []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		RedactionText: "***REDACTED***",
		BlockedPatterns: []string{
			"api_key", "apikey", "key_hash", "password", "secret", "token", "authorization",
		},
	}
}

type Redactor struct {
	config Config
}

func NewRedactor(cfg Config) *Redactor {
	if cfg.RedactionText == "" {
		cfg.RedactionText = "***REDACTED***"
	}
	return &Redactor{config: cfg}
}

func (r *Redactor) RedactString(s string) string {
	if !r.config.Enabled {
		return s
	}
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, "${1}: "+r.config.RedactionText)
	}
	return result
}

// RedactFields returns a copy of fields with sensitive keys and values
// replaced by the redaction marker. Called by platformlog's Logger.WithFields.
func (r *Redactor) RedactFields(fields map[string]interface{}) map[string]interface{} {
	if !r.config.Enabled {
		return fields
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch {
		case r.isSensitiveKey(k):
			out[k] = r.config.RedactionText
		default:
			if s, ok := v.(string); ok {
				out[k] = r.RedactString(s)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func (r *Redactor) isSensitiveKey(field string) bool {
	lower := strings.ToLower(field)
	for _, blocked := range r.config.BlockedPatterns {
		if strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}
