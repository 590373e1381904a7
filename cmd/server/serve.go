package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatforms-backend/internal/ai"
	"chatforms-backend/internal/builder"
	"chatforms-backend/internal/config"
	"chatforms-backend/internal/conversation"
	"chatforms-backend/internal/handlers"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/ratelimiter"
	"chatforms-backend/internal/services"
	"chatforms-backend/internal/telegram"
	"chatforms-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}

	gen, err := newGenerator(ctx, cfg.AI)
	if err != nil {
		return err
	}
	if !gen.Available() {
		log.Warn("AI provider has no API key, generation is disabled", zap.String("provider", cfg.AI.Provider))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := handlers.Deps{
		Log:                   log,
		CORSOrigins:           cfg.CORSOrigins,
		Auth:                  services.NewAuthService(cfg.JWTSecret),
		Users:                 services.NewUserService(db, log),
		Forms:                 services.NewFormService(db, log),
		Responses:             services.NewResponseService(db, log),
		AI:                    services.NewAIService(gen, log, m),
		Drafts:                builder.NewDraftStore(cfg.DraftTTL),
		Flows:                 conversation.NewRegistry(),
		Hub:                   ws.NewHub(log),
		Metrics:               m,
		Gatherer:              reg,
		AILimiter:             ratelimiter.PerMinute(cfg.AI.RatePerMinute, cfg.AI.Burst, 10*time.Minute),
		TelegramWebhookSecret: cfg.Telegram.WebhookSecret,
	}
	if cfg.Telegram.BotToken != "" {
		deps.Telegram = telegram.NewBot(
			telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIURL),
			deps.Forms, deps.Responses, deps.Flows, deps.AI, deps.Hub, m, log,
		)
		if cfg.Telegram.WebhookURL != "" {
			if err := deps.Telegram.Register(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				return err
			}
			defer func() {
				unregisterCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := deps.Telegram.Unregister(unregisterCtx); err != nil {
					log.Warn("telegram webhook removal failed", zap.Error(err))
				}
			}()
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		sqlDB.Close()
	}
	return err
}

func newGenerator(ctx context.Context, cfg config.AIConfig) (ai.Generator, error) {
	if cfg.Provider == "openai" {
		return ai.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIAPIURL, cfg.OpenAIModel), nil
	}
	return ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.StreamModel)
}
