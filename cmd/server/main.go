package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/auth"
	"github.com/hongminglow/ekonzims-be/internal/campaign"
	"github.com/hongminglow/ekonzims-be/internal/config"
	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/logging"
	"github.com/hongminglow/ekonzims-be/internal/scheduler"
	"github.com/hongminglow/ekonzims-be/internal/server"
	"github.com/hongminglow/ekonzims-be/internal/service"
	"github.com/hongminglow/ekonzims-be/internal/storage/backend"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	stores, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer stores.Close()

	var rdb *redis.Client
	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		revoker = auth.NewRedisRevoker(rdb, "ekonzims:revoked")
	}

	mailer, err := email.FromConfig(cfg.Email, logger)
	if err != nil {
		logger.Fatal("init email", zap.Error(err))
	}
	defer mailer.Close()
	// Request paths enqueue; campaigns and the scheduler already run off the
	// request and use the mailer directly.
	outbox := email.NewQueue(mailer, cfg.Email.QueueSize, cfg.Email.Workers, logger)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	hasher := auth.NewPasswordHasher(auth.DefaultArgon2Params)
	authSvc := service.NewAuthService(stores.Users, hasher, tokens, revoker, outbox, service.AuthOptions{
		AutoVerifyEmail: cfg.AutoVerifyEmail,
		AllowFullName:   cfg.AllowFullName,
		FrontendURL:     cfg.FrontendURL,
	}, logger)
	campaigns := campaign.NewRunner(stores.Users, stores.Orders, stores.Bookings, mailer, cfg.FrontendURL, logger)
	adminSvc := service.NewAdminService(stores.Users, stores.Orders, stores.Bookings, campaigns, mailer, cfg.AllowFullName, logger)

	srv := server.New(cfg, server.Deps{
		Auth:     authSvc,
		Gate:     service.NewAdminGate(authSvc),
		Commerce: service.NewCommerceService(stores.Orders, stores.Bookings, outbox, logger),
		Admin:    adminSvc,
		Redis:    rdb,
		Logger:   logger,
	})

	var jobs *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		jobs = scheduler.New(campaigns, logger)
		if err := jobs.Register(); err != nil {
			logger.Fatal("register jobs", zap.Error(err))
		}
		jobs.Start()
	}

	go func() {
		logger.Info("EkoNzims backend listening",
			zap.String("addr", cfg.HTTPAddress()),
			zap.String("backend", cfg.StoreBackend),
			zap.String("email", cfg.Email.Provider),
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if jobs != nil {
		jobs.Stop(ctxShutdown)
	}
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
	if err := adminSvc.Drain(ctxShutdown); err != nil {
		logger.Warn("campaigns still running at shutdown", zap.Error(err))
	}
	if err := outbox.Close(ctxShutdown); err != nil {
		logger.Warn("email queue not drained", zap.Error(err))
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
