package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epay/epay/app"
	"epay/epay/config"
	"epay/epay/controllers"
	"epay/epay/middlewares"
	"epay/epay/routes"
	"epay/epay/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a, err := app.New(ctx, cfg, app.Options{RequireBlobs: true})
	if err != nil {
		logging.ErrorLogger.Error("startup error", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	// alerts are pushed per console connection
	deps := a.Deps(nil)
	chatCtrl := controllers.NewChatController(a.Messages, a.Replies, a.Aggregator, cfg.Chat.ImagePlaceholder)
	consoleCtrl := controllers.NewConsoleController(deps, cfg.Chat.MaxImageBytes)
	profileCtrl := controllers.NewProfileController(a.Profiles)
	healthCtrl := controllers.NewHealthController().WithCheck("database", a.DB)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Mount("/health", routes.HealthRoutes(healthCtrl))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/profiles", routes.ProfileRoutes(profileCtrl, cfg))
	r.Mount("/chat", routes.ChatRoutes(chatCtrl, consoleCtrl, cfg))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.AppLogger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
