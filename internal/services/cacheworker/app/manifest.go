package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/domain"
	"gopkg.in/yaml.v3"
)

const manifestSettleDelay = 100 * time.Millisecond

// LoadManifest reads a YAML manifest from path. An empty path yields the
// built-in manifest.
func LoadManifest(path string) (domain.Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.DefaultManifest().Normalized(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (domain.Manifest, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var manifest domain.Manifest
	if err := decoder.Decode(&manifest); err != nil {
		return domain.Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	manifest = manifest.Normalized()
	if err := manifest.Validate(); err != nil {
		return domain.Manifest{}, err
	}
	return manifest, nil
}

// WatchManifest reloads path whenever it changes and passes each valid
// manifest to onChange. It returns when ctx ends. Invalid files are logged
// and skipped.
func WatchManifest(ctx context.Context, path string, onChange func(context.Context, domain.Manifest), logf func(string, ...any)) error {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("manifest path is required")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create manifest watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files with renames, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch manifest dir: %w", err)
	}
	base := filepath.Base(path)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if settle == nil {
				settle = time.After(manifestSettleDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logf("manifest watcher: %v", err)
		case <-settle:
			settle = nil
			manifest, err := LoadManifest(path)
			if err != nil {
				logf("reload manifest %s: %v", path, err)
				continue
			}
			onChange(ctx, manifest)
		}
	}
}
