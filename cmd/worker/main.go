package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sudo-init-do/greenvault/internal/alerts"
	"github.com/sudo-init-do/greenvault/internal/app"
	"github.com/sudo-init-do/greenvault/internal/config"
)

// The worker runs the asynq task server (maturation, sweep, ops alerts) and
// the scheduler that enqueues the periodic sweep.
func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	concurrency := flag.Int("concurrency", 5, "number of tasks processed concurrently")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()
	logger := rt.Logger

	if rt.RedisOpt == nil {
		log.Fatalf("worker requires redis at %s", cfg.RedisAddr)
	}

	mailer, err := alerts.NewMailer(cfg.Mail)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}

	srv := alerts.NewServer(rt.RedisOpt, *concurrency)
	if err := srv.Start(alerts.NewMux(rt.Service, mailer)); err != nil {
		log.Fatalf("asynq server: %v", err)
	}
	defer srv.Shutdown()

	scheduler, err := alerts.NewScheduler(rt.RedisOpt, cfg.SweepInterval)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("scheduler start: %v", err)
	}
	defer scheduler.Shutdown()

	logger.Info("worker started", "module", "worker", "sweep_interval", cfg.SweepInterval.String())
	<-ctx.Done()
	logger.Info("worker stopping", "module", "worker")
}
