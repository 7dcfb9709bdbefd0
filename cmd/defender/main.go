// Command defender runs the chat-defense bot: it keeps a registry of
// protected chats and banned members and enforces exclusions across
// all of them, either by long polling (local mode) or behind a webhook
// (server mode).
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Rooyande/eclis-ninja/internal/audit"
	"github.com/Rooyande/eclis-ninja/internal/command"
	"github.com/Rooyande/eclis-ninja/internal/enforce"
	enforcemetrics "github.com/Rooyande/eclis-ninja/internal/enforce/metrics"
	"github.com/Rooyande/eclis-ninja/internal/guard"
	"github.com/Rooyande/eclis-ninja/internal/identity"
	"github.com/Rooyande/eclis-ninja/internal/platform/config"
	"github.com/Rooyande/eclis-ninja/internal/platform/httpserver"
	"github.com/Rooyande/eclis-ninja/internal/platform/logger"
	"github.com/Rooyande/eclis-ninja/internal/platform/metrics"
	platformredis "github.com/Rooyande/eclis-ninja/internal/platform/redis"
	"github.com/Rooyande/eclis-ninja/internal/registry/store"
	"github.com/Rooyande/eclis-ninja/internal/telegram"
)

func main() {
	// Missing .env is fine; real deployments set the environment.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "defender",
		Usage: "cross-chat ban enforcement bot",
		Commands: []*cli.Command{
			runCmd,
			migrateCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start the bot in the configured run mode",
	Action: func(c *cli.Context) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "apply the database schema and exit",
	Action: func(c *cli.Context) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DEFENDER_DATABASE_URL is not set")
		}
		db, err := openDatabase(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.InitSchema(ctx, db); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		fmt.Println("schema up to date")
		return nil
	},
}

func run(cfg *config.Config) error {
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, db, auditStore, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	adminIDs := cfg.AdminIDs()
	if len(adminIDs) == 0 {
		log.Warn("no admins configured, every command will be rejected")
	}

	client := telegram.NewClient(cfg.BotToken, log, telegram.WithAdmins(adminIDs))

	engine := enforce.New(registry, client, log,
		enforce.WithWorkers(cfg.EnforceWorkers),
		enforce.WithCallTimeout(cfg.EnforceCallTimeout),
		enforce.WithMetrics(enforcemetrics.New()),
	)
	resolver := identity.NewResolver(client, redisClient, log)
	recorder := audit.NewRecorder(auditStore, log)
	transportMetrics := metrics.New()

	facade := command.New(registry, resolver, engine,
		auditStore, recorder, transportMetrics, adminIDs, log)

	var cooldown guard.Cooldown
	if redisClient != nil {
		cooldown = guard.NewRedisCooldown(redisClient, cfg.NotifyCooldown)
	} else {
		cooldown = guard.NewMemoryCooldown(cfg.NotifyCooldown)
	}
	joinGuard := guard.New(registry, engine, client, recorder, cooldown,
		guard.Config{RaidWindow: cfg.RaidWindow, RaidThreshold: cfg.RaidThreshold}, log)

	dispatcher := telegram.NewDispatcher(client, facade, joinGuard, transportMetrics, log)

	health := func() error {
		if db == nil {
			return nil
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	webhook := telegram.NewWebhook(dispatcher, cfg.WebhookSecret, health, transportMetrics, log)

	group, ctx := errgroup.WithContext(ctx)

	switch config.RunMode(cfg.RunMode) {
	case config.RunModeServer:
		if err := client.SetWebhook(ctx, cfg.PublicBaseURL+"/telegram/webhook", cfg.WebhookSecret); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		serveHTTP(ctx, group, cfg.Addr(), webhook.Router(), log)
	case config.RunModeLocal:
		serveHTTP(ctx, group, cfg.Addr(), webhook.OpsRouter(), log)
		poller := telegram.NewPoller(client, dispatcher, log)
		group.Go(func() error {
			return poller.Run(ctx)
		})
	}

	log.Info("defender started", "mode", cfg.RunMode, "addr", cfg.Addr())
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("defender stopped")
	return nil
}

// openRegistry wires the durable registry when a database is
// configured, otherwise falls back to the in-memory stores, which lose
// state on restart.
func openRegistry(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Registry, *sql.DB, audit.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, registry state is in-memory only")
		registry, _ := store.NewMemoryRegistry()
		return registry, nil, audit.NewMemoryStore(), nil
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return store.Registry{}, nil, nil, err
	}
	if err := store.InitSchema(ctx, db); err != nil {
		db.Close()
		return store.Registry{}, nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	return store.NewPostgresRegistry(db), db, audit.NewPostgresStore(db), nil
}

func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func serveHTTP(ctx context.Context, group *errgroup.Group, addr string, handler http.Handler, log *slog.Logger) {
	server := httpserver.New(addr, handler)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown failed", "error", err)
		}
		return ctx.Err()
	})
}
