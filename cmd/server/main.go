package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/banking-auth/internal/auth"
	"github.com/iliyamo/banking-auth/internal/config"
	"github.com/iliyamo/banking-auth/internal/database"
	"github.com/iliyamo/banking-auth/internal/handler"
	"github.com/iliyamo/banking-auth/internal/logging"
	"github.com/iliyamo/banking-auth/internal/middleware"
	"github.com/iliyamo/banking-auth/internal/obs"
	"github.com/iliyamo/banking-auth/internal/queue"
	"github.com/iliyamo/banking-auth/internal/repository"
	"github.com/iliyamo/banking-auth/internal/router"
	"github.com/iliyamo/banking-auth/internal/session"
	"github.com/iliyamo/banking-auth/internal/token"
	"github.com/iliyamo/banking-auth/internal/utils"
)

func main() {
	cfg := config.Load()
	log := logging.New("auth-api", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DSNParts())
	if err != nil {
		log.Error("mysql connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.MigrateUp(db); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	codec, err := token.NewCodec(cfg.JWTSecret,
		token.WithTTL(token.Access, cfg.AccessTTL()),
		token.WithTTL(token.Refresh, cfg.RefreshTTL()),
	)
	if err != nil {
		log.Error("token codec", "error", err)
		os.Exit(1)
	}

	svc, err := auth.NewService(auth.Deps{
		Users:       repository.NewUserRepo(db),
		ResetTokens: repository.NewResetTokenRepo(db),
		Sessions:    session.NewStore(rdb, codec.TTL),
		Codec:       codec,
		Hasher:      utils.NewBcryptHasher(cfg.BcryptCost),
		Notifier:    queue.NewPublisher(cfg.RabbitMQURL, cfg.MailQueue),
		Logger:      log,
	}, auth.Config{
		ResetTTL:        cfg.ResetTTL,
		ResetLinkBase:   cfg.ResetLinkBase,
		MaxFailedLogins: cfg.MaxFailedLogins,
	})
	if err != nil {
		log.Error("auth service", "error", err)
		os.Exit(1)
	}

	if cfg.BootstrapEmail != "" {
		if _, err := svc.Bootstrap(ctx, cfg.BootstrapEmail, cfg.BootstrapPassword, cfg.BootstrapName); err != nil {
			log.Error("bootstrap super admin failed", "error", err)
			os.Exit(1)
		}
	}

	metrics := obs.New()
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(metrics.Middleware())

	router.RegisterRoutes(e, metrics, map[string]handler.Check{
		"mysql": db.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	router.RegisterAuth(e, handler.NewAuthHandler(svc, metrics), svc, limit)
	router.RegisterUsers(e, handler.NewUserHandler(svc, metrics), svc)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	// Let queued reset mails reach the broker before the process exits.
	svc.Wait()
}
