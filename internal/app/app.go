// Package app wires the credit service together and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/brandforge/creditd/internal/config"
	"github.com/brandforge/creditd/internal/db"
	adminapi "github.com/brandforge/creditd/internal/http/api/admin"
	"github.com/brandforge/creditd/internal/http/api/front"
	"github.com/brandforge/creditd/internal/ledger"
	"github.com/brandforge/creditd/internal/logging"
	"github.com/brandforge/creditd/internal/metrics"
	"github.com/brandforge/creditd/internal/pricing"
	"github.com/brandforge/creditd/internal/ratelimit"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 15 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the credit service with database-backed components and
// blocks until the context is canceled or a termination signal arrives.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	logging.Setup(config.LoadLogConfig(configPath))

	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := SeedAdminFromEnv(conn); errSeed != nil {
		return errSeed
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	ledgerMgr := ledger.NewManager(conn)
	pricingSvc := pricing.NewService(conn)
	limiter := ratelimit.NewManager(func() ratelimit.Config {
		rlCfg := config.LoadRateLimitConfig(configPath)
		return ratelimit.Config{
			ConsumePerSecond: rlCfg.ConsumePerSecond,
			RedisEnabled:     rlCfg.RedisEnabled,
			RedisAddr:        rlCfg.RedisAddr,
			RedisPassword:    rlCfg.RedisPassword,
			RedisDB:          rlCfg.RedisDB,
			RedisPrefix:      rlCfg.RedisPrefix,
		}
	}, nil, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(metrics.GinMiddleware())
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	front.RegisterFrontRoutes(engine, conn, ledgerMgr, pricingSvc, limiter)
	adminapi.RegisterAdminRoutes(engine, conn, ledgerMgr, jwtConfig)

	if defaultPort <= 0 {
		defaultPort = 8318
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", defaultPort),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("credit service listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	return nil
}
