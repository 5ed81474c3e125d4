package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pbx-engine/internal/auth"
	"pbx-engine/internal/calllog"
	"pbx-engine/internal/conference"
	"pbx-engine/internal/config"
	"pbx-engine/internal/directory"
	"pbx-engine/internal/httpapi"
	"pbx-engine/internal/internalcall"
	"pbx-engine/internal/ivr"
	"pbx-engine/internal/presence"
	"pbx-engine/internal/reporting"
	"pbx-engine/internal/telephony"
	"pbx-engine/internal/voicemail"
	"pbx-engine/internal/webhook"
	"pbx-engine/pkg/logger"
	"pbx-engine/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	carrier := telephony.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, nil)

	// Domain services. Presence lives in Redis; everything durable in Postgres.
	dirSvc := directory.NewService(directory.NewPostgresRepo(db))
	presSvc := presence.NewService(presence.NewRedisRepo(rdb))
	logSvc := calllog.NewService(calllog.NewPostgresRepo(db))
	vmSvc := voicemail.NewService(voicemail.NewPostgresRepo(db), logSvc)
	reportSvc := reporting.NewService(logSvc)

	callSvc := internalcall.NewService(
		internalcall.NewPostgresRepo(db),
		dirSvc, presSvc, logSvc, carrier,
		internalcall.NewRedisLocker(rdb),
		cfg.Twilio.CallerID, log)

	confSvc := conference.NewService(
		conference.NewPostgresRepo(db), carrier,
		conference.Config{
			CallerID: cfg.Twilio.CallerID,
			WaitURL:  cfg.Twilio.ConferenceWaitURL,
			// The operator is the only transfer destination the engine honors.
			TransferAllowList: []string{cfg.Twilio.OperatorNumber},
		}, log)

	reconciler := webhook.NewReconciler(
		webhook.NewRedisDeduper(rdb),
		webhook.NewJournal(webhook.NewPostgresJournalRepo(db)),
		callSvc, confSvc, log)

	machine := ivr.NewMachine(dirSvc, presSvc)

	api := &httpapi.Handlers{
		Calls:       callSvc,
		Conferences: confSvc,
		Presence:    presSvc,
		Voicemail:   vmSvc,
		Reports:     reportSvc,
	}
	hooks := &httpapi.WebhookHandlers{
		Machine:    machine,
		Calls:      callSvc,
		Voicemail:  vmSvc,
		Logs:       logSvc,
		Reconciler: reconciler,
		Cfg: httpapi.WebhookConfig{
			PublicBaseURL:  cfg.Twilio.PublicBaseURL,
			OperatorNumber: cfg.Twilio.OperatorNumber,
			CallerID:       cfg.Twilio.CallerID,
			WaitURL:        cfg.Twilio.ConferenceWaitURL,
		},
		Log: log,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerPublicRoutes(r, hooks)
	registerProtectedRoutes(r, api, auth.RequireAccessToken(authManager))

	// Background reconciliation of rows whose webhooks went missing.
	sweeper := internalcall.NewSweeper(callSvc, carrier, log,
		cfg.Sweep.Interval, cfg.Sweep.RingingTimeout, cfg.Sweep.ActiveConferenceLimit)
	go sweeper.Run(rootCtx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	log.Info("shutdown complete")
}
