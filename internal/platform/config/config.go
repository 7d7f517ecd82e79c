// Package config holds the environment conventions shared by every command.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by this module.
const EnvPrefix = "DAILYTASKS_"

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// EnvName builds the canonical variable name for a setting, e.g.
// EnvName("otel", "endpoint") returns DAILYTASKS_OTEL_ENDPOINT.
func EnvName(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cleaned = append(cleaned, strings.ToUpper(strings.ReplaceAll(part, "-", "_")))
	}
	return EnvPrefix + strings.Join(cleaned, "_")
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
