package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/dailytasks/internal/platform/grpc"
	"github.com/louisbranch/dailytasks/internal/platform/timeouts"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/domain"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage/memory"
	cachesqlite "github.com/louisbranch/dailytasks/internal/services/cacheworker/storage/sqlite"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ControllerHealthService reports SERVING once a worker controls clients.
const ControllerHealthService = "cacheworker.controller"

// RuntimeConfig controls cache worker startup.
type RuntimeConfig struct {
	Port                int
	HealthPort          int
	UpstreamURL         string
	Origin              string
	ManifestPath        string
	DBPath              string
	SkipWaiting         bool
	WatchManifest       bool
	PrecacheConcurrency int
	FetchTimeout        time.Duration
}

const (
	defaultCacheWorkerPort   = 8092
	defaultCacheWorkerHealth = 8093
)

// Run starts the interception server, the health server, and the manifest
// watcher, and blocks until ctx ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if cfg.Port <= 0 {
		cfg.Port = defaultCacheWorkerPort
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultCacheWorkerHealth
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = timeouts.UpstreamFetch
	}
	upstreamURL, err := parseAbsoluteURL(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("upstream url: %w", err)
	}
	origin := strings.TrimSpace(cfg.Origin)
	if origin == "" {
		origin = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	originURL, err := parseAbsoluteURL(origin)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	manifest, err := LoadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close cache store: %v", closeErr)
		}
	}()

	upstream, err := NewUpstream(upstreamURL, originURL, nil)
	if err != nil {
		return err
	}
	upstream.sharedTimeout = cfg.FetchTimeout
	network := fetchTimeout(upstream, cfg.FetchTimeout)

	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	grpcServer, healthServer := platformgrpc.NewHealthServer(ControllerHealthService)
	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(healthListener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
	}()

	lifetime := &domain.Lifetime{}
	registration, err := NewRegistration(RegistrationConfig{
		Origin:      originURL,
		Store:       store,
		Network:     network,
		Lifetime:    lifetime,
		SkipWaiting: cfg.SkipWaiting,
		Concurrency: cfg.PrecacheConcurrency,
		Logf:        log.Printf,
		OnControllerChange: func(*domain.Worker) {
			healthServer.SetServingStatus(ControllerHealthService, grpc_health_v1.HealthCheckResponse_SERVING)
		},
	})
	if err != nil {
		return err
	}
	if _, err := registration.Restore(ctx); err != nil {
		log.Printf("restore registration: %v", err)
	}
	if err := registration.Register(ctx, manifest); err != nil {
		log.Printf("register manifest v%s: %v", manifest.Version, err)
	}

	if cfg.WatchManifest && strings.TrimSpace(cfg.ManifestPath) != "" {
		lifetime.Go(func() {
			err := WatchManifest(ctx, cfg.ManifestPath, func(ctx context.Context, next domain.Manifest) {
				if err := registration.Register(ctx, next); err != nil {
					log.Printf("register manifest v%s: %v", next.Version, err)
				}
			}, log.Printf)
			if err != nil {
				log.Printf("watch manifest: %v", err)
			}
		})
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on cache worker port %d: %w", cfg.Port, err)
	}
	server := &http.Server{
		Handler:           NewHandler(registration, network, log.Printf),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	log.Printf("cache worker listening at %v for origin %s", listener.Addr(), originURL)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve cache worker: %w", err)
		}
	}

	cancelRun()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown cache worker: %v", err)
	}
	if err := lifetime.Wait(shutdownCtx); err != nil {
		log.Printf("wait for pending cache work: %v", err)
	}
	return runErr
}

func openStore(path string) (storage.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return memory.New(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache storage dir: %w", err)
		}
	}
	store, err := cachesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache sqlite store: %w", err)
	}
	return store, nil
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("value is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%q must be an absolute url", raw)
	}
	return parsed, nil
}
