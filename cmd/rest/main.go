package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatedge-be/internal/bootstrap"
	"chatedge-be/internal/config"
	"chatedge-be/internal/pkg/logger"
	"chatedge-be/internal/server"
	"chatedge-be/internal/tracer"
	"chatedge-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	shutdownTracer := tracer.InitTracer("chatedge-be", sysLogger)

	// 2. Initialize database
	var db *gorm.DB
	if cfg.Database.Driver == config.StorageDriverPostgres {
		gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
		if err != nil {
			log.Fatalf("Unable to connect to GORM DB: %v", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(gormDB); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
		}
		db = gormDB
	}

	// 3. Bootstrap dependencies
	container, err := bootstrap.NewContainer(cfg, bootstrap.Options{DB: db, Logger: sysLogger})
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background services
	container.Start(ctx)

	// 5. Serve until signalled
	srv := server.New(cfg, container)
	if err := srv.Run(ctx); err != nil {
		sysLogger.Error("Server", "Server stopped with error", map[string]interface{}{"error": err})
	}

	container.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracer(shutdownCtx); err != nil {
		sysLogger.Warn("Tracer", "Tracer shutdown failed", map[string]interface{}{"error": err})
	}
	sysLogger.Info("Server", "Shutdown complete", nil)
}
