package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sudo-init-do/greenvault/internal/app"
	"github.com/sudo-init-do/greenvault/internal/config"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
	"github.com/sudo-init-do/greenvault/internal/server"
	"github.com/sudo-init-do/greenvault/internal/stream"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
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

	routerCfg := server.RouterConfig{
		Service:        rt.Service,
		JWTSecret:      cfg.JWTSecret,
		IdempotencyTTL: cfg.IdempotencyTTL,
		AdminRateLimit: cfg.AdminRateLimit,
		Stream:         rt.Hub,
		Ready:          rt.Checker.Ready,
	}
	if rt.Redis != nil {
		routerCfg.Idempotency = appmw.NewRedisIdempotencyStore(rt.Redis)
		go func() {
			if err := rt.Hub.Subscribe(ctx, rt.Redis, stream.Channel); err != nil {
				logger.Error("live stream relay stopped", "module", "api", "error", err)
			}
		}()
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, grpcLis, err := rt.Checker.Listen(cfg.GRPCPort)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}
	go rt.Checker.Watch(ctx, 10*time.Second)

	var sweeperDone <-chan struct{}
	if cfg.SweepInProcess || rt.Redis == nil {
		sweeperDone = ledger.StartSweeper(ctx, rt.Service, cfg.SweepInterval)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "module", "api", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc health listening", "module", "api", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(grpcLis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("runtime failure", "module", "api", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	if sweeperDone != nil {
		<-sweeperDone
	}
	logger.Info("api stopped", "module", "api")
}
