// Command server runs the blood inventory and request matching engine.
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

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"lifebank/internal/allocation"
	"lifebank/internal/inventory"
	"lifebank/internal/jwttoken"
	"lifebank/internal/match"
	"lifebank/internal/notify"
	"lifebank/internal/platform/config"
	"lifebank/internal/platform/httpserver"
	"lifebank/internal/platform/logger"
	"lifebank/internal/platform/metrics"
	redisplatform "lifebank/internal/platform/redis"
	"lifebank/internal/request"
	"lifebank/internal/sweeper"
	httptransport "lifebank/internal/transport/http"
	"lifebank/pkg/platform/audit"
	auditmemory "lifebank/pkg/platform/audit/store/memory"
	auditworker "lifebank/pkg/platform/audit/worker"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	health := make(map[string]httptransport.HealthChecker)

	// Durable stores when configured, in-memory otherwise. The in-memory
	// stores carry the same transition semantics, so dev runs behave like
	// production minus durability.
	var (
		unitStore    inventory.Store = inventory.NewInMemoryStore()
		requestStore request.Store   = request.NewInMemoryStore()
		matchStore   match.Store     = match.NewInMemoryStore()
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		for _, ddl := range []string{inventory.Schema(), request.Schema()} {
			if _, err := db.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		unitStore = inventory.NewPostgres(db)
		requestStore = request.NewPostgres(db)
		health["postgres"] = dbHealth{db: db}
		log.Info("using postgres stores")
	}

	redisClient, err := redisplatform.New(config.RedisFromEnv())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		matchStore = match.NewRedis(redisClient.Client)
		health["redis"] = redisClient
		log.Info("using redis match store")
	}

	auditInbox := make(chan audit.Event, 256)
	auditStore := auditmemory.NewInMemoryStore()
	auditor := audit.NewPublisher(auditInbox, log)
	worker := auditworker.NewWorker(auditStore, auditInbox, log)

	inventorySvc := inventory.NewService(unitStore, cfg.ShelfLives,
		cfg.SufficientThreshold, cfg.CriticalThreshold, auditor, m)
	requestSvc := request.NewService(requestStore, unitStore, cfg.RequestTTL, auditor, m, log)
	allocator := allocation.New(unitStore, requestStore, auditor, m, log)
	matchSvc := match.NewService(matchStore, cfg.MatchTTL, cfg.ConfirmBaseURL,
		notify.NewLogNotifier(log), allocator, auditor, m, log)
	sw := sweeper.New(cfg.SweepInterval, unitStore, requestStore, matchStore, auditor, m, log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "lifebank", "lifebank")
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Inventory: httptransport.NewInventoryHandler(inventorySvc, log),
		Requests:  httptransport.NewRequestHandler(requestSvc, allocator, log),
		Matches:   httptransport.NewMatchHandler(matchSvc, log),
		Health:    health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sw.Run(ctx)
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
