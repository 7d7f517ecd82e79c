// Package cacheworker parses cache worker command flags and launches the
// cache worker runtime.
package cacheworker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/dailytasks/internal/platform/cmd"
	"github.com/louisbranch/dailytasks/internal/platform/discovery"
	cacheworkerapp "github.com/louisbranch/dailytasks/internal/services/cacheworker/app"
)

// Config holds cache worker command configuration.
type Config struct {
	Port                int           `env:"DAILYTASKS_CACHEWORKER_PORT" envDefault:"8092"`
	HealthPort          int           `env:"DAILYTASKS_CACHEWORKER_HEALTH_PORT" envDefault:"8093"`
	UpstreamURL         string        `env:"DAILYTASKS_CACHEWORKER_UPSTREAM_URL"`
	Origin              string        `env:"DAILYTASKS_CACHEWORKER_ORIGIN"`
	ManifestPath        string        `env:"DAILYTASKS_CACHEWORKER_MANIFEST_PATH"`
	DBPath              string        `env:"DAILYTASKS_CACHEWORKER_DB_PATH"`
	SkipWaiting         bool          `env:"DAILYTASKS_CACHEWORKER_SKIP_WAITING" envDefault:"true"`
	WatchManifest       bool          `env:"DAILYTASKS_CACHEWORKER_WATCH_MANIFEST" envDefault:"true"`
	PrecacheConcurrency int           `env:"DAILYTASKS_CACHEWORKER_PRECACHE_CONCURRENCY" envDefault:"4"`
	FetchTimeout        time.Duration `env:"DAILYTASKS_CACHEWORKER_FETCH_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.UpstreamURL = discovery.OrDefaultHTTPBaseURL(cfg.UpstreamURL, discovery.ServiceShell)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The cache worker HTTP port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The cache worker health gRPC port")
	fs.StringVar(&cfg.UpstreamURL, "upstream-url", cfg.UpstreamURL, "The application shell base URL")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "The public origin pages load from")
	fs.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "Precache manifest YAML path (built-in manifest when empty)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Cache SQLite database path (in-memory when empty)")
	fs.BoolVar(&cfg.SkipWaiting, "skip-waiting", cfg.SkipWaiting, "Activate a newly installed version without waiting")
	fs.BoolVar(&cfg.WatchManifest, "watch-manifest", cfg.WatchManifest, "Install a new version when the manifest file changes")
	fs.IntVar(&cfg.PrecacheConcurrency, "precache-concurrency", cfg.PrecacheConcurrency, "Parallel precache fetches")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Upstream fetch timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the cache worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCacheWorker, func(context.Context) error {
		return cacheworkerapp.Run(ctx, cacheworkerapp.RuntimeConfig{
			Port:                cfg.Port,
			HealthPort:          cfg.HealthPort,
			UpstreamURL:         cfg.UpstreamURL,
			Origin:              cfg.Origin,
			ManifestPath:        cfg.ManifestPath,
			DBPath:              cfg.DBPath,
			SkipWaiting:         cfg.SkipWaiting,
			WatchManifest:       cfg.WatchManifest,
			PrecacheConcurrency: cfg.PrecacheConcurrency,
			FetchTimeout:        cfg.FetchTimeout,
		})
	})
}
