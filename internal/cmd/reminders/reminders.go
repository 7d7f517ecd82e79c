// Package reminders parses reminder daemon flags and launches the reminder
// runtime.
package reminders

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/dailytasks/internal/platform/cmd"
	"github.com/louisbranch/dailytasks/internal/platform/discovery"
	remindersapp "github.com/louisbranch/dailytasks/internal/services/reminders/app"
)

// Config holds reminder daemon configuration.
type Config struct {
	Port              int           `env:"DAILYTASKS_REMINDERS_PORT" envDefault:"8094"`
	HealthPort        int           `env:"DAILYTASKS_REMINDERS_HEALTH_PORT" envDefault:"8096"`
	TasksAddr         string        `env:"DAILYTASKS_REMINDERS_TASKS_ADDR"`
	PollInterval      time.Duration `env:"DAILYTASKS_REMINDERS_POLL_INTERVAL" envDefault:"30s"`
	Locale            string        `env:"DAILYTASKS_REMINDERS_LOCALE" envDefault:"en"`
	DialTimeout       time.Duration `env:"DAILYTASKS_REMINDERS_DIAL_TIMEOUT" envDefault:"2s"`
	PermissionTimeout time.Duration `env:"DAILYTASKS_REMINDERS_PERMISSION_TIMEOUT" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.TasksAddr = discovery.OrDefaultGRPCAddr(cfg.TasksAddr, discovery.ServiceTasks)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The page hub HTTP port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The reminders health gRPC port")
	fs.StringVar(&cfg.TasksAddr, "tasks-addr", cfg.TasksAddr, "The task service gRPC address")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Task list poll interval")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Reminder copy locale")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "gRPC dependency dial timeout")
	fs.DurationVar(&cfg.PermissionTimeout, "permission-timeout", cfg.PermissionTimeout, "How long to wait for a page to answer a permission prompt")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the reminder runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReminders, func(context.Context) error {
		return remindersapp.Run(ctx, remindersapp.RuntimeConfig{
			Port:              cfg.Port,
			HealthPort:        cfg.HealthPort,
			TasksAddr:         cfg.TasksAddr,
			PollInterval:      cfg.PollInterval,
			Locale:            cfg.Locale,
			DialTimeout:       cfg.DialTimeout,
			PermissionTimeout: cfg.PermissionTimeout,
		})
	})
}
