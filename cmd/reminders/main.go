// Package main starts the reminders service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	reminderscmd "github.com/louisbranch/dailytasks/internal/cmd/reminders"
	entrypoint "github.com/louisbranch/dailytasks/internal/platform/cmd"
	"github.com/louisbranch/dailytasks/internal/platform/config"
)

func main() {
	cfg, err := reminderscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceReminders))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reminderscmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
