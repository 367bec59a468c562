// Command pixorders runs the order lifecycle service: the HTTP API for
// opening and checking orders, and the background sweeper that reconciles
// pending orders against the payment processor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ovitor/go-pix-orders/internal/config"
	"github.com/ovitor/go-pix-orders/internal/gateway"
	httpapi "github.com/ovitor/go-pix-orders/internal/http"
	"github.com/ovitor/go-pix-orders/internal/notify"
	"github.com/ovitor/go-pix-orders/internal/observability"
	"github.com/ovitor/go-pix-orders/internal/repo"
	"github.com/ovitor/go-pix-orders/internal/services"
	"github.com/ovitor/go-pix-orders/internal/sysutil"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run() error {
	// Local development convenience; ignored when no .env file exists.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	gw := gateway.NewClient(cfg.Gateway)
	tg := notify.NewTelegram(cfg.Bot)
	audit := notify.NewChannelAudit(tg, cfg.Bot.AuditChatID, log.Logger)

	store := services.RepoStore{}
	locks := services.NewKeyedLocks()
	orders := services.NewOrderService(db, store, gw, tg, audit, cfg.Lifecycle, cfg.Currency, log.Logger)
	sweeper := services.NewSweeper(db, store, gw, tg, audit, locks, cfg.Lifecycle, cfg.AccessMessage, log.Logger)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, orders, sweeper, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	// SWEEP_DISABLED is an operational escape hatch: run the API alone while
	// another instance owns reconciliation.
	if !sysutil.IsTruthy(os.Getenv("SWEEP_DISABLED")) {
		go sweeper.Run(ctx)
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}
