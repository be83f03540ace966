package main

import (
	"context"
	"log"

	"soul-journal-be/internal/bootstrap"
	"soul-journal-be/internal/config"
	"soul-journal-be/internal/server"
	"soul-journal-be/internal/tracer"
	"soul-journal-be/pkg/database"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Panicf("Invalid configuration: %v", err)
	}

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)

	go func() {
		log.Println("Background: Starting embedding consumer...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background consumer error: %v", err)
		}
	}()

	if container.EventConsumerService != nil {
		if err := container.EventConsumerService.Start(); err != nil {
			log.Printf("Journal event consumer error: %v", err)
		}
	}

	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
