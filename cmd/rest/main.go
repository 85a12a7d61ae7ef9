package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"eis-ingest-be/internal/bootstrap"
	"eis-ingest-be/internal/config"
	"eis-ingest-be/internal/server"
	"eis-ingest-be/internal/tracer"
	"eis-ingest-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer()
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("[WARN] Tracer shutdown: %v", err)
		}
	}()

	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to database: %v", err)
		}
		gormDB = db
	}

	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := container.ConsumerService.Consume(ctx); err != nil {
			log.Printf("[ERROR] Transfer summary consumer stopped: %v", err)
		}
	}()
	go container.WebSocketHub.Run(ctx)

	srv := server.New(cfg, container)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		cancel()
		if err := srv.Shutdown(); err != nil {
			log.Printf("[WARN] Server shutdown: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
