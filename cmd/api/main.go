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

	_ "leavemgmt/api/swagger" // swagger docs
	"leavemgmt/internal/config"
	"leavemgmt/internal/crypto"
	"leavemgmt/internal/database"
	"leavemgmt/internal/handler"
	"leavemgmt/internal/i18n"
	"leavemgmt/internal/logging"
	"leavemgmt/internal/mailer"
	"leavemgmt/internal/middleware"
	"leavemgmt/internal/repository"
	"leavemgmt/internal/service"
	"leavemgmt/internal/websocket"

	"github.com/gin-gonic/gin"
)

// @title           Leave Management API
// @version         1.0
// @description     Employees apply for leave, the admin decides, everyone gets mail.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name lm_session
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", cfg.DBDriver)

	cipher, err := crypto.NewCipher(cfg.EmailCredSecret)
	if err != nil {
		logger.Error("credential cipher setup failed", "error", err)
		os.Exit(1)
	}
	translator, err := i18n.New(cfg.NotifyLocale)
	if err != nil {
		logger.Error("loading notification templates failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORSAllowedOrigins, logger)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(txManager, userRepo, sessionRepo, repository.NewAppSettingRepository(db), auditRepo, service.AuthConfig{
		SetupCode:  cfg.AdminSetupCode,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	})
	emailService := service.NewEmailService(txManager, repository.NewEmailConfigRepository(db), auditRepo, cipher, mailer.NewSMTPSender(cfg.SMTPTimeout), translator, logger)
	leaveService := service.NewLeaveService(txManager, repository.NewLeaveRepository(db), userRepo, auditRepo, emailService, wsHub, time.Now, logger)
	auditService := service.NewAuditService(auditRepo)

	if pruned, err := authService.PruneExpiredSessions(ctx); err != nil {
		logger.Warn("failed to prune expired sessions", "error", err)
	} else if pruned > 0 {
		logger.Info("pruned expired sessions", "count", pruned)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Auth:   authService,
		Leaves: leaveService,
		Email:  emailService,
		Audit:  auditService,
		Hub:    wsHub,
		Cookies: middleware.CookieConfig{
			Name:   cfg.SessionCookieName,
			TTL:    cfg.SessionTTL,
			Secure: cfg.SessionCookieSecure,
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
