package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/coop-lending/internal/alert"
	"github.com/Dan9191/coop-lending/internal/config"
	"github.com/Dan9191/coop-lending/internal/handler"
	"github.com/Dan9191/coop-lending/internal/middleware"
	"github.com/Dan9191/coop-lending/internal/repository"
	"github.com/Dan9191/coop-lending/internal/service"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if cfg.RunMigrations {
		if err := repository.Migrate(db); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, logger, alert.NewMailer(cfg, logger))
	h := handler.NewHandler(svc, logger)

	reconciler, err := service.NewReconciler(svc, logger, cfg.ReconcileSchedule)
	if err != nil {
		logger.Fatalf("Failed to schedule reconciler: %v", err)
	}
	reconciler.Start()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(logger))
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	h.Register(authRouter)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	select {
	case <-reconciler.Stop().Done():
	case <-ctx.Done():
	}
}
