package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is satisfied by *pgxpool.Pool and *redis.Client wrappers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker tracks readiness from a set of named dependencies and mirrors it
// into the standard gRPC health service.
type Checker struct {
	deps   map[string]Pinger
	server *health.Server
}

func NewChecker(deps map[string]Pinger) *Checker {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Checker{deps: deps, server: hs}
}

// Ready pings every dependency and reports the first failure per name.
func (c *Checker) Ready(ctx context.Context) error {
	var errs []error
	for name, dep := range c.deps {
		if err := dep.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Refresh runs one readiness check and updates the gRPC status.
func (c *Checker) Refresh(ctx context.Context) error {
	err := c.Ready(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", status)
	return err
}

// Watch refreshes the status every interval until ctx is done.
func (c *Checker) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		err := c.Refresh(checkCtx)
		cancel()
		switch {
		case err != nil && healthy:
			slog.Default().WarnContext(ctx, "dependency check failed",
				"module", "health",
				"operation", "watch",
				"outcome", "failure",
				"error", err,
			)
		case err == nil && !healthy:
			slog.Default().InfoContext(ctx, "dependencies recovered",
				"module", "health",
				"operation", "watch",
				"outcome", "success",
			)
		}
		healthy = err == nil

		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

// Check answers the same question a grpc_health_probe would.
func (c *Checker) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.server.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Listen builds the gRPC server exposing grpc.health.v1.Health on port.
func (c *Checker) Listen(port int) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, err
	}
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, c.server)
	return srv, lis, nil
}
