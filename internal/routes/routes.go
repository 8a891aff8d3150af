package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/walletledger/internal/cache"
	"github.com/congo-pay/walletledger/internal/config"
	"github.com/congo-pay/walletledger/internal/ledger"
	"github.com/congo-pay/walletledger/internal/middleware"
	"github.com/congo-pay/walletledger/internal/notification"
	"github.com/congo-pay/walletledger/internal/transactions"
	"github.com/congo-pay/walletledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Cfg.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	engine := newEngine(d)
	walletSvc := wallet.NewService(engine, d.Logger)
	txSvc := transactions.NewService(engine, walletSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("",
		middleware.JWTAuth([]byte(d.Cfg.JWTSecret)),
		middleware.RequestRateLimit(d.Cache, d.Cfg.RequestRateLimit),
	)
	RegisterWalletRoutes(protected, wallet.NewHandler(walletSvc, engine))
	RegisterTransactionRoutes(protected, transactions.NewHandler(txSvc))

	return nil
}

// newEngine picks Postgres and Redis backed collaborators when configured
// and falls back to the in-memory store for local development.
func newEngine(d Deps) *ledger.Engine {
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory ledger")
		store = ledger.NewInMemory()
	}

	var balances ledger.BalanceCache
	notifiers := notification.Fanout{notification.NewLoggerNotifier(d.Logger)}
	if d.Cache != nil {
		balances = cache.NewRedisBalances(d.Cache)
		if d.Cfg.NotificationChannel != "" {
			notifiers = append(notifiers, notification.NewRedisNotifier(d.Cache, d.Cfg.NotificationChannel))
		}
	}

	return ledger.NewEngine(store, balances, notifiers, d.Logger, d.Cfg.LedgerOptions())
}
