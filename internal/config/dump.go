package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var secretKeys = []string{"api_key", "token", "secret", "password", "webhook_url"}

// Dump renders the effective settings as YAML with secrets redacted.
func (c *Config) Dump() ([]byte, error) {
	out, err := yaml.Marshal(redact(c.settings))
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}

func redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSecret(k) {
				if s, ok := val.(string); ok && s != "" {
					out[k] = "********"
					continue
				}
			}
			out[k] = redact(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = redact(val)
		}
		return out
	default:
		return v
	}
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
