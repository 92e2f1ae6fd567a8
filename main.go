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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"voiceclone-backend/config"
	"voiceclone-backend/database"
	adminapi "voiceclone-backend/internal/api/admin"
	authapi "voiceclone-backend/internal/api/auth"
	"voiceclone-backend/internal/api/billing"
	notificationsapi "voiceclone-backend/internal/api/notifications"
	plansapi "voiceclone-backend/internal/api/plans"
	"voiceclone-backend/internal/api/stripewebhook"
	usersapi "voiceclone-backend/internal/api/users"
	voiceapi "voiceclone-backend/internal/api/voice"
	routes "voiceclone-backend/internal/app/http"
	"voiceclone-backend/internal/catalog"
	"voiceclone-backend/internal/infra/redisstore"
	"voiceclone-backend/internal/infra/stripe"
	"voiceclone-backend/internal/ledger"
	"voiceclone-backend/internal/notify"
	"voiceclone-backend/internal/pkg/logger"
	"voiceclone-backend/internal/reconciler"
	"voiceclone-backend/internal/subscription"
	"voiceclone-backend/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logg := logger.New(cfg.AppEnv, os.Stdout)

	db, err := database.Open(cfg.DBURL, logg)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	rdb, err := database.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	logg.Info("redis connected", "addr", cfg.RedisAddr)

	gateway := stripe.NewClient(cfg.StripeSecretKey)

	repo := ledger.NewRepository(db)
	cat := catalog.NewService(db, gateway, logg)
	emitter := notify.NewEmitter(db, redisstore.NewMarkers(rdb, "notice:"), logg)
	subs := subscription.NewService(repo, cat, gateway, emitter, cfg.BaseURL, logg)
	if _, err := cat.EnsureFree(context.Background()); err != nil {
		log.Fatalf("Failed to seed free package: %v", err)
	}

	hour, minute, _ := cfg.SweepClock()
	sweeper := sweep.NewService(repo, emitter, logg, hour, minute)

	var mailer authapi.Mailer
	if cfg.SMTPEnabled() {
		mailer = &authapi.SMTPMailer{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom, Password: cfg.SMTPPassword}
	}
	authHandler := authapi.NewHandler(db, subs, redisstore.NewTokenStore(rdb), mailer, authapi.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.JWTTTL,
		RefreshTTL:    cfg.RefreshTTL,
		OTPTTL:        cfg.OTPTTL,
	}, logg)
	if cfg.GoogleEnabled() {
		g, err := authapi.NewGoogle(context.Background(), cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL, cfg.GoogleFrontendRedirect, cfg.AppEnv == "production")
		if err != nil {
			logg.Error("google sign-in disabled", "error", err)
		} else {
			authHandler.WithGoogle(g)
		}
	}

	queue := redisstore.NewQueue(rdb, cfg.VoiceQueue)
	handlers := routes.Handlers{
		Auth:          authHandler,
		Billing:       billing.NewHandler(subs),
		Webhook:       stripewebhook.NewHandler(reconciler.New(cfg.StripeWebhookSecret, subs, ledger.NewEventLog(db), logg)),
		Plans:         plansapi.NewHandler(cat),
		Notifications: notificationsapi.NewHandler(emitter),
		Users:         usersapi.NewHandler(db, subs),
		Admin:         adminapi.NewHandler(db, sweeper),
		Voice:         voiceapi.NewHandler(queue, logg),
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.CORSOrigin != "*",
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(r, handlers, cfg.JWTSecret, subs)

	sweeper.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logg.Info("server listening", "port", cfg.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server failed", "error", err)
		}
	case sig := <-stop:
		logg.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("server shutdown", "error", err)
	}
	sweeper.Stop()
	if err := rdb.Close(); err != nil {
		logg.Error("redis close", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
