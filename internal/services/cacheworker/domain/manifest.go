package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrManifestVersionRequired indicates a manifest without a version token.
	ErrManifestVersionRequired = errors.New("manifest version is required")
	// ErrManifestEmpty indicates a manifest with no precache paths.
	ErrManifestEmpty = errors.New("manifest has no precache paths")
	// ErrManifestShellMissing indicates the shell entry is not precached.
	ErrManifestShellMissing = errors.New("manifest shell is not precached")
)

// DefaultShell is the application entry point served when navigation fails offline.
const DefaultShell = "/index.html"

// DefaultVersion is the version token of the built-in manifest.
const DefaultVersion = "1"

var defaultPrecache = []string{
	"/",
	"/index.html",
	"/assets/generated/app-icon.dim_128x128.png",
	"/assets/generated/app-icon.dim_256x256.png",
	"/assets/generated/app-icon.dim_512x512.png",
	"/assets/generated/calendar-icon.dim_64x64.png",
	"/assets/generated/checkmark-success.dim_64x64.png",
	"/assets/generated/notification-bell.dim_64x64.png",
	"/assets/generated/progress-chart.dim_64x64.png",
	"/assets/generated/settings-notifications-transparent.dim_64x64.png",
	"/assets/generated/streak-flame.dim_64x64.png",
	"/assets/generated/weekly-chart.dim_400x300.png",
}

// Manifest is the ordered list of resources one worker version precaches.
type Manifest struct {
	Version string   `yaml:"version"`
	Prefix  string   `yaml:"cache_prefix,omitempty"`
	Shell   string   `yaml:"shell,omitempty"`
	URLs    []string `yaml:"precache"`
}

// DefaultManifest returns the built-in application shell manifest.
func DefaultManifest() Manifest {
	return Manifest{
		Version: DefaultVersion,
		Prefix:  DefaultCachePrefix,
		Shell:   DefaultShell,
		URLs:    append([]string(nil), defaultPrecache...),
	}
}

// Normalized trims fields and fills defaults.
func (m Manifest) Normalized() Manifest {
	out := Manifest{
		Version: strings.TrimSpace(m.Version),
		Prefix:  strings.TrimSpace(m.Prefix),
		Shell:   strings.TrimSpace(m.Shell),
	}
	if out.Prefix == "" {
		out.Prefix = DefaultCachePrefix
	}
	if out.Shell == "" {
		out.Shell = DefaultShell
	}
	for _, raw := range m.URLs {
		out.URLs = append(out.URLs, strings.TrimSpace(raw))
	}
	return out
}

// Validate checks a normalized manifest.
func (m Manifest) Validate() error {
	if m.Version == "" {
		return ErrManifestVersionRequired
	}
	if len(m.URLs) == 0 {
		return ErrManifestEmpty
	}
	seen := make(map[string]struct{}, len(m.URLs))
	shellFound := false
	for _, path := range m.URLs {
		if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
			return fmt.Errorf("precache path %q must be origin-relative", path)
		}
		if _, ok := seen[path]; ok {
			return fmt.Errorf("precache path %q is listed twice", path)
		}
		seen[path] = struct{}{}
		if path == m.Shell {
			shellFound = true
		}
	}
	if !shellFound {
		return fmt.Errorf("%w: %s", ErrManifestShellMissing, m.Shell)
	}
	return nil
}

// Generations returns the bucket names for this manifest.
func (m Manifest) Generations() Generations {
	return GenerationsFor(m.Prefix, m.Version)
}
