package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"DAILYTASKS_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("DAILYTASKS_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{parts: []string{"otel", "endpoint"}, want: "DAILYTASKS_OTEL_ENDPOINT"},
		{parts: []string{"cacheworker", "manifest-path"}, want: "DAILYTASKS_CACHEWORKER_MANIFEST_PATH"},
		{parts: []string{" ", "port"}, want: "DAILYTASKS_PORT"},
	}
	for _, tc := range tests {
		if got := EnvName(tc.parts...); got != tc.want {
			t.Fatalf("EnvName(%q) = %q, want %q", tc.parts, got, tc.want)
		}
	}
}
