package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"

	"photo-gallery/internal/ai"
	"photo-gallery/internal/importer"
	"photo-gallery/internal/logging"
	"photo-gallery/internal/models"
	"photo-gallery/internal/processing"
	"photo-gallery/internal/server"
	"photo-gallery/internal/storage"
	"photo-gallery/internal/tagging"
)

func main() {
	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	db, err := storage.NewStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer db.Close()

	// Kafka producer for the tagging task handoff
	producer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: []string{cfg.KafkaBroker},
		Topic:   cfg.KafkaTopic,
	})
	queue := tagging.NewQueue(producer)

	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.OllamaURL,
		Model:   cfg.AI.Model,
		Enabled: cfg.AI.Enabled,
	}, logger)

	enricher := processing.NewEnricher(cfg.StoragePath, cfg.Thumbnail.MaxWidth, cfg.Thumbnail.Quality, logger)
	imp := importer.New(db, enricher, cfg.StoragePath, "", logger)
	task := tagging.NewTask(db, aiClient, logger)

	// Start tagging consumer in background
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		consumer := kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{cfg.KafkaBroker},
			Topic:   cfg.KafkaTopic,
			GroupID: "photo-tagging-group",
		})
		defer consumer.Close()

		for {
			msg, err := consumer.ReadMessage(ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				log.Printf("error reading message: %v", err)
				continue
			}
			task.Process(ctx, string(msg.Value))
		}
	}()

	srv := server.NewServer(cfg, db, enricher, imp, queue, aiClient, logger)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	srv.Stop()
	producer.Close()
}
