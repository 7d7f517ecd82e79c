package domain

import "strings"

// DefaultCachePrefix names generations when a manifest does not override it.
const DefaultCachePrefix = "daily-tasks"

// Role identifies what a generation holds.
type Role string

const (
	// RolePrecache holds manifest entries fetched at install.
	RolePrecache Role = "precache"
	// RoleRuntime holds responses stored while serving requests.
	RoleRuntime Role = "runtime"
)

// Generations names the live buckets for one worker version.
type Generations struct {
	Precache string
	Runtime  string
}

// GenerationsFor derives bucket names for a prefix and version token.
func GenerationsFor(prefix, version string) Generations {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultCachePrefix
	}
	version = strings.TrimSpace(version)
	return Generations{
		Precache: prefix + "-v" + version,
		Runtime:  prefix + "-runtime-v" + version,
	}
}

// Live reports whether name belongs to this version.
func (g Generations) Live(name string) bool {
	return name == g.Precache || name == g.Runtime
}

// Stale returns every name that is not live, preserving order.
func (g Generations) Stale(names []string) []string {
	var stale []string
	for _, name := range names {
		if !g.Live(name) {
			stale = append(stale, name)
		}
	}
	return stale
}

// Name returns the bucket name for role.
func (g Generations) Name(role Role) string {
	if role == RoleRuntime {
		return g.Runtime
	}
	return g.Precache
}
