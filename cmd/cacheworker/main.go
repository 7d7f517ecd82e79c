// Package main starts the cacheworker service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	cacheworkercmd "github.com/louisbranch/dailytasks/internal/cmd/cacheworker"
	entrypoint "github.com/louisbranch/dailytasks/internal/platform/cmd"
	"github.com/louisbranch/dailytasks/internal/platform/config"
)

func main() {
	cfg, err := cacheworkercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceCacheWorker))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cacheworkercmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
