package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/greenvault/internal/admin"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
	"github.com/sudo-init-do/greenvault/internal/stream"
	"github.com/sudo-init-do/greenvault/internal/wallet"
)

type RouterConfig struct {
	Service   *ledger.Service
	JWTSecret string

	// Idempotency is optional; without it Idempotency-Key headers are ignored.
	Idempotency    appmw.IdempotencyStore
	IdempotencyTTL time.Duration

	// AdminRateLimit is requests per second per client IP on /admin; 0 disables it.
	AdminRateLimit int
	Stream         *stream.Hub
	Ready          func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if cfg.Ready != nil {
			if err := cfg.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	idem := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if cfg.Idempotency != nil {
		idem = appmw.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL)
	}

	// Account routes
	w := wallet.NewHandler(cfg.Service)
	api := e.Group("/wallet")
	api.Use(appmw.JWTAuth(cfg.JWTSecret))
	api.Use(appmw.RequireRoles(appmw.RoleInvestor, appmw.RoleNGO))

	api.GET("", w.GetWallet)
	api.GET("/transactions", w.ListTransactions)
	api.GET("/export", w.Export)
	api.GET("/withdrawals/:id", w.GetWithdrawal)
	api.POST("/withdraw", w.Withdraw, idem)
	api.POST("/add-funds", w.AddFunds, idem)
	api.POST("/invest", w.Invest, idem)
	if cfg.Stream != nil {
		api.GET("/stream", cfg.Stream.Serve)
	}

	// Admin routes
	a := admin.NewHandler(cfg.Service)
	adminGroup := e.Group("/admin")
	if cfg.AdminRateLimit > 0 {
		adminGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AdminRateLimit))))
	}
	adminGroup.Use(appmw.JWTAuth(cfg.JWTSecret))
	adminGroup.Use(appmw.AdminGuard)

	adminGroup.GET("/stats", a.Stats)
	adminGroup.GET("/wallets", a.ListWallets)
	adminGroup.POST("/wallets", a.OpenWallet)
	adminGroup.POST("/wallets/:id/revenue", a.RecordRevenue)
	adminGroup.POST("/wallets/:id/funding", a.ReceiveFunding)
	adminGroup.POST("/wallets/:id/fees", a.ChargeFee)
	adminGroup.GET("/withdrawals", a.ListWithdrawals)
	adminGroup.POST("/withdrawals/sweep", a.Sweep)
	adminGroup.POST("/withdrawals/:id/approve", a.ApproveWithdrawal)
	adminGroup.POST("/withdrawals/:id/reject", a.RejectWithdrawal)
	adminGroup.POST("/investments/:id/resolve", a.ResolveInvestment)

	return e
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"module", "http",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_ip", v.RemoteIP,
			}
			if uid := appmw.UserID(c); uid != "" {
				attrs = append(attrs, "account_id", uid)
			}
			ctx := c.Request().Context()
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error.Error())
				slog.Default().ErrorContext(ctx, "request failed", attrs...)
				return nil
			}
			slog.Default().InfoContext(ctx, "request", attrs...)
			return nil
		},
	})
}
