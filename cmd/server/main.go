// Command puffmeter-server starts the puff-meter HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arjunvm/puffmeter/internal/feed"
	"github.com/arjunvm/puffmeter/internal/limiter"
	"github.com/arjunvm/puffmeter/internal/migrate"
	"github.com/arjunvm/puffmeter/internal/repository/postgres"
	httpserver "github.com/arjunvm/puffmeter/internal/server/http"
	"github.com/arjunvm/puffmeter/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	accessTTL := flag.Duration("access-ttl", 24*time.Hour, "access token TTL")
	boardLimit := flag.Int("board-limit", 50, "leaderboard size")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("missing DATABASE_URL")
	}
	jwtKey := os.Getenv("JWT_KEY")
	if jwtKey == "" {
		logger.Fatal("missing JWT_KEY")
	}
	adminTok := os.Getenv("ADMIN_TOKEN")
	if adminTok == "" {
		logger.Fatal("missing ADMIN_TOKEN")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, dsn); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	statsRepo := postgres.NewStatsRepo(db)
	purchaseRepo := postgres.NewPurchaseRepo(db)
	achievementRepo := postgres.NewAchievementRepo(db)

	lim := limiter.NewPG(pool, 15*time.Minute, 5, 15*time.Minute)

	// Optional leaderboard cache
	var rdb *redis.Client
	if raddr := os.Getenv("REDIS_ADDR"); raddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: raddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, caching disabled", zap.Error(err))
			rdb = nil
		}
	}

	// Services
	boardSvc := service.NewBoardService(statsRepo, purchaseRepo, achievementRepo, rdb, *boardLimit, logger)
	authSvc := service.NewAuthService(userRepo, []byte(jwtKey), *accessTTL, lim, logger)
	purchaseSvc := service.NewPurchaseService(userRepo, purchaseRepo, boardSvc, logger)

	// Live stock feed
	hub := feed.NewHub()
	listener := feed.NewListener(dsn, hub, logger)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("stats listener stopped", zap.Error(err))
		}
	}()

	app := httpserver.New(authSvc, purchaseSvc, boardSvc, hub, []byte(jwtKey), adminTok, logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           app.Echo(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
