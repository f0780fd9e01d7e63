package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sudo-init-do/greenvault/internal/alerts"
	"github.com/sudo-init-do/greenvault/internal/config"
	"github.com/sudo-init-do/greenvault/internal/db"
	"github.com/sudo-init-do/greenvault/internal/events"
	"github.com/sudo-init-do/greenvault/internal/health"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
	"github.com/sudo-init-do/greenvault/internal/stream"
)

const ServiceName = "greenvault"

// Runtime holds the wired collaborators shared by the api and worker binaries.
type Runtime struct {
	Config  config.Config
	Logger  *slog.Logger
	Service *ledger.Service
	Hub     *stream.Hub
	Checker *health.Checker

	// Redis and RedisOpt are nil when Redis could not be reached. The ledger
	// still works; idempotency and background tasks are disabled.
	Redis    *redis.Client
	RedisOpt asynq.RedisConnOpt

	closers []io.Closer
}

// Build connects to every dependency and assembles the ledger service with
// its observers: event forwarding, live stream, and task dispatch.
func Build(ctx context.Context, cfg config.Config) (*Runtime, error) {
	logger := config.SetupLogger(cfg.LogLevel, ServiceName)

	if err := db.Init(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}
	r := &Runtime{Config: cfg, Logger: logger}

	var publisher events.Publisher = events.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		if err != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "module", "app", "error", err)
		} else {
			publisher = kp
			r.closers = append(r.closers, kp)
		}
	}

	// Without Redis the hub observes directly and only sees this process's
	// events. With Redis every process publishes to the relay channel and the
	// api hub subscribes to it.
	r.Hub = stream.NewHub()
	var live ledger.Observer = r.Hub
	observers := []ledger.Observer{events.NewForwarder(publisher, ServiceName)}

	deps := map[string]health.Pinger{"postgres": db.Conn}
	if client, err := appmw.ConnectRedis(ctx, cfg.RedisAddr); err != nil {
		logger.WarnContext(ctx, "redis unavailable, idempotency and background tasks disabled",
			"module", "app",
			"redis_addr", cfg.RedisAddr,
			"error", err,
		)
	} else {
		r.Redis = client
		r.closers = append(r.closers, client)
		deps["redis"] = health.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })

		opt, err := alerts.RedisOpt(cfg.RedisAddr)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.RedisOpt = opt
		live = stream.NewRelay(client, stream.Channel)
		taskClient := asynq.NewClient(opt)
		r.closers = append(r.closers, taskClient)
		observers = append(observers, alerts.NewDispatcher(taskClient, cfg.AlertEmail))
	}
	observers = append(observers, live)
	r.Checker = health.NewChecker(deps)

	r.Service = ledger.NewService(ledger.Dependencies{
		Config:    ledger.Config{MaturationDelay: cfg.MaturationDelay},
		Store:     db.NewLedgerStore(db.Conn),
		Observers: observers,
	})
	return r, nil
}

// Close releases every connection in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i].Close()
	}
	db.Close()
}
