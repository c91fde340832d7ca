// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/database"
	"github.com/ntptrace/trace-backend/internal/i18n"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/registry"
	"github.com/ntptrace/trace-backend/internal/router"
	"github.com/ntptrace/trace-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize registry
	var db *gorm.DB
	var reg registry.Registry
	switch cfg.RegistryBackend {
	case "memory":
		logrus.Warn("Using in-memory certificate registry, records are lost on restart")
		reg = registry.NewMemoryRegistry()
	default:
		db, err = database.Initialize(cfg.Database)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize database")
		}
		defer database.Close(db)

		if err := database.RunMigrations(db); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
		reg = registry.NewPostgresRegistry(db)
	}

	// Initialize ledger
	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, closeLedger, err := ledger.Open(dialCtx, cfg.Blockchain)
	cancel()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to ledger")
	}
	defer closeLedger()

	archive, err := services.NewArchiveService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize certificate archive")
	}

	// Initialize router
	r := router.Initialize(router.Dependencies{
		DB:       db,
		Config:   cfg,
		Ledger:   client,
		Registry: reg,
		Archive:  archive,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"network":  cfg.Blockchain.Network,
			"registry": cfg.RegistryBackend,
			"archive":  archive.Enabled(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
		return
	}

	logrus.Info("Server exited")
}
