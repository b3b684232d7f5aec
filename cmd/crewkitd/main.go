// Command crewkitd serves the crewkit role engine over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fernandezvara/crewkit"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("crewkitd: no .env file found, relying on system env vars")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("crewkitd: %v", err)
	}

	logger, err := crewkit.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("crewkitd: build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("crewkitd stopped", zap.Error(err))
	}
}

func run(cfg Config, logger *zap.Logger) error {
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := crewkit.NewMetrics(reg)

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	if cfg.SeedFile != "" {
		n, err := seedMembers(ctx, cfg.SeedFile, backend.writer)
		if err != nil {
			return fmt.Errorf("seed members: %w", err)
		}
		logger.Info("seeded members", zap.Int("count", n), zap.String("file", cfg.SeedFile))
	}

	identity, err := crewkit.NewJWTIdentity(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	svc := crewkit.NewService(backend.store,
		crewkit.WithLogger(logger),
		crewkit.WithMetrics(metrics),
	)
	mw := crewkit.NewMiddleware(svc, crewkit.WithUserIDExtractor(identity.UserID))

	routerOpts := append(backend.checks,
		crewkit.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           crewkit.NewRouter(svc, mw, routerOpts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down gracefully")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type backend struct {
	store  crewkit.Store
	writer crewkit.MemberWriter
	checks []crewkit.RouterOption
	close  func()
}

// openBackend selects Postgres when DATABASE_URL is set and the in-memory
// store otherwise, then puts the Redis member cache in front when configured.
func openBackend(ctx context.Context, cfg Config, logger *zap.Logger) (*backend, error) {
	b := &backend{close: func() {}}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		mem := crewkit.NewMemoryStore()
		b.store, b.writer = mem, mem
		b.checks = append(b.checks, crewkit.WithHealthCheck("store", mem.Ping))
	} else {
		db, err := dbkit.New(dbkit.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.close = func() { _ = db.Close() }

		if cfg.AutoMigrate {
			result, err := db.Migrate(ctx, crewkit.Migrations())
			if err != nil {
				b.close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			for _, m := range result.Applied {
				logger.Info("applied migration", zap.String("id", m.ID))
			}
		}

		pg := crewkit.NewPostgresStore(db)
		b.store, b.writer = pg, pg
		b.checks = append(b.checks, crewkit.WithHealthCheck("postgres", pg.Ping))
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		cache := crewkit.NewRedisMemberCache(client, b.store, cfg.MemberCacheTTL, logger)
		b.store, b.writer = cache, cache
		b.checks = append(b.checks, crewkit.WithHealthCheck("redis", cache.Ping))

		closeStore := b.close
		b.close = func() {
			_ = client.Close()
			closeStore()
		}
	}
	return b, nil
}

func seedMembers(ctx context.Context, path string, w crewkit.MemberWriter) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var members []crewkit.Member
	if err := json.Unmarshal(raw, &members); err != nil {
		return 0, err
	}
	for _, m := range members {
		if !m.Role.IsValid() {
			return 0, fmt.Errorf("member %s/%s: unknown role %q", m.TeamID, m.UserID, m.Role)
		}
		if err := w.PutMember(ctx, m); err != nil {
			return 0, err
		}
	}
	return len(members), nil
}
