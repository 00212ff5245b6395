// Command server runs the delivery backend: the payment webhook receiver,
// the Discord bot, and the shared persistence layer behind both.
//
// @title        go-delivery-backend API
// @version      1.0
// @description  Links game-platform accounts to chat identities and delivers purchased goods.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/avendel/go-delivery-backend/internal/catalog"
	"github.com/avendel/go-delivery-backend/internal/config"
	"github.com/avendel/go-delivery-backend/internal/discord"
	httpapi "github.com/avendel/go-delivery-backend/internal/http"
	"github.com/avendel/go-delivery-backend/internal/observability"
	"github.com/avendel/go-delivery-backend/internal/repo"
	"github.com/avendel/go-delivery-backend/internal/roblox"
	"github.com/avendel/go-delivery-backend/internal/services"
	"github.com/avendel/go-delivery-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Missing required credentials halt startup entirely.
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Local audit log is supplementary: run degraded without it.
	var auditDB *gorm.DB
	if db, err := repo.OpenSQLite(cfg.AuditDBPath, cfg.OTEL.Enabled); err != nil {
		log.Warn().Err(err).Str("path", cfg.AuditDBPath).Msg("audit database unavailable")
	} else if err := repo.AutoMigrate(db); err != nil {
		log.Warn().Err(err).Msg("audit migration failed")
	} else {
		auditDB = db
	}

	// Persistence: remote document store behind the debounced cache.
	cache := repo.NewCache(repo.NewDocStore(cfg.Store), repo.CacheOptions{
		Debounce:     cfg.Store.Debounce,
		FlushRetries: cfg.Store.FlushRetries,
		FlushBackoff: cfg.Store.FlushBackoff,
	}, log.Logger)
	cache.Load(ctx)

	rbx := roblox.New(cfg.Roblox, log.Logger)
	cat := catalog.Default()

	mappings := services.NewMappingService(cache)
	ledger := services.NewLedgerService(cache)

	bot, err := discord.New(cfg.Discord, mappings, rbx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("discord bot setup failed")
	}

	delivery := services.NewDeliveryService(bot, log.Logger)
	payments := services.NewPaymentService(mappings, ledger, delivery, cat, auditDB, log.Logger)
	checks := services.NewCheckService(mappings, ledger, delivery, cat, rbx, auditDB, log.Logger)
	bot.AttachCheckService(checks)

	if err := bot.Open(); err != nil {
		// Keep serving webhooks; /health reports the disconnected bot.
		log.Error().Err(err).Msg("discord connection failed, continuing degraded")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Payments: payments,
		Mappings: mappings,
		Health:   bot,
		AuditDB:  auditDB,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	if err := bot.Close(); err != nil {
		log.Warn().Err(err).Msg("bot close failed")
	}
	// Best-effort durability for the last unflushed window.
	if err := cache.ForceSave(shutCtx); err != nil {
		log.Warn().Err(err).Msg("final state save failed")
	}
}
