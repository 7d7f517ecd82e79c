package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRequiresUpstream(t *testing.T) {
	err := Run(context.Background(), RuntimeConfig{})
	if err == nil || !strings.Contains(err.Error(), "upstream url") {
		t.Fatalf("run err = %v, want upstream url error", err)
	}
}

func TestRunRejectsRelativeOrigin(t *testing.T) {
	err := Run(context.Background(), RuntimeConfig{UpstreamURL: "http://shell:8080", Origin: "/app"})
	if err == nil || !strings.Contains(err.Error(), "origin") {
		t.Fatalf("run err = %v, want origin error", err)
	}
}

func TestRunRejectsMissingManifest(t *testing.T) {
	err := Run(context.Background(), RuntimeConfig{
		UpstreamURL:  "http://shell:8080",
		ManifestPath: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	if err == nil || !strings.Contains(err.Error(), "read manifest") {
		t.Fatalf("run err = %v, want manifest error", err)
	}
}

func TestOpenStoreSelectsBackend(t *testing.T) {
	memoryStore, err := openStore("")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer memoryStore.Close()

	sqliteStore, err := openStore(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer sqliteStore.Close()
	if names, err := sqliteStore.Names(context.Background()); err != nil || len(names) != 0 {
		t.Fatalf("names = %v, err = %v", names, err)
	}
}
