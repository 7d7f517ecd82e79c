package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/dailytasks/internal/platform/grpc"
	"github.com/louisbranch/dailytasks/internal/platform/timeouts"
	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
	"github.com/louisbranch/dailytasks/internal/services/reminders/render"
	"github.com/louisbranch/dailytasks/internal/services/reminders/tasks"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// SessionHealthService reports SERVING while the reminder session is
// reconciling against the task service.
const SessionHealthService = "reminders.session"

// RuntimeConfig controls reminder daemon startup.
type RuntimeConfig struct {
	Port              int
	HealthPort        int
	TasksAddr         string
	PollInterval      time.Duration
	Locale            string
	DialTimeout       time.Duration
	PermissionTimeout time.Duration
}

const (
	defaultRemindersPort   = 8094
	defaultRemindersHealth = 8096
)

// Run dials the task service, serves the page hub, and reconciles reminders
// until ctx ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if cfg.Port <= 0 {
		cfg.Port = defaultRemindersPort
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultRemindersHealth
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = timeouts.GRPCDial
	}
	tasksAddr := strings.TrimSpace(cfg.TasksAddr)
	if tasksAddr == "" {
		return errors.New("tasks address is required")
	}

	log.Printf("connecting to task service at %s", tasksAddr)
	conn, err := platformgrpc.DialWithHealth(ctx, gogrpc.NewClient, tasksAddr, cfg.DialTimeout, log.Printf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return fmt.Errorf("dial task service: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("close task service connection: %v", closeErr)
		}
	}()
	client := tasks.NewClient(conn)

	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	grpcServer, healthServer := platformgrpc.NewHealthServer(SessionHealthService)
	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(healthListener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
	}()

	hub := NewHub(cfg.PermissionTimeout, log.Printf)
	deliverer := domain.NewDeliverer(hub, hub, localizedRenderer(cfg.Locale), log.Printf)
	scheduler := domain.NewScheduler(domain.SystemClock{}, deliverer, log.Printf)
	session := NewSession(client, scheduler, cfg.PollInterval, log.Printf)
	hub.OnPermissionChange(func(domain.Permission) {
		session.Refresh()
	})

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- session.Run(ctx)
	}()
	healthServer.SetServingStatus(SessionHealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		cancelRun()
		<-sessionErr
		return fmt.Errorf("listen on reminders port %d: %w", cfg.Port, err)
	}
	server := &http.Server{
		Handler:           NewHandler(hub, client, session, scheduler, log.Printf),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	log.Printf("reminders listening at %v", listener.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve reminders: %w", err)
		}
	}

	cancelRun()
	healthServer.SetServingStatus(SessionHealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown reminders: %v", err)
	}
	hub.Close()
	if err := <-sessionErr; err != nil {
		log.Printf("reminder session: %v", err)
	}
	return runErr
}

func localizedRenderer(locale string) domain.Renderer {
	loc := render.NewLocalizer(locale)
	return domain.RendererFunc(func(task domain.Task) domain.Copy {
		out := render.Reminder(loc, render.Input{Title: task.Title, Description: task.Description})
		return domain.Copy{
			NotificationTitle: out.NotificationTitle,
			NotificationBody:  out.NotificationBody,
			ToastTitle:        out.ToastTitle,
			ToastDescription:  out.ToastDescription,
		}
	})
}
