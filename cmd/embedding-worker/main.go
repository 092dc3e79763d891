package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/xhad/scribe/pkg/blob"
	"github.com/xhad/scribe/pkg/config"
	"github.com/xhad/scribe/pkg/extract"
	"github.com/xhad/scribe/pkg/llm"
	"github.com/xhad/scribe/pkg/queue"
	"github.com/xhad/scribe/pkg/store"
	"github.com/xhad/scribe/pkg/worker"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).
		With(slog.String("component", "embedding-worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewWithConfig(store.StoreConfig{
		ConnString: cfg.Database.URL,
		VectorDim:  cfg.Embedding.VectorDim,
	})
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer st.Close()

	blobs, err := blob.NewWithConfig(ctx, blob.BlobStoreConfig{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		Bucket:    cfg.Blob.Bucket,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		log.Fatalf("failed to initialize blob store: %v", err)
	}

	q, err := queue.NewWithConfig(ctx, queue.QueueConfig{
		URL:    cfg.Queue.URL,
		Stream: cfg.Queue.EmbedStream,
	})
	if err != nil {
		log.Fatalf("failed to initialize queue: %v", err)
	}
	defer q.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		VectorDim: cfg.Embedding.VectorDim,
	})
	if err != nil {
		log.Fatalf("failed to initialize embedder: %v", err)
	}

	extractor := extract.NewWithConfig(extract.ExtractorConfig{})

	embedding := worker.NewEmbeddingWorker(st, st, blobs, extractor, embedder, logger)

	consumer := worker.NewConsumerWithConfig(worker.ConsumerConfig{
		BatchSize:      cfg.Queue.BatchSize,
		FetchWait:      time.Duration(cfg.Queue.WaitSeconds) * time.Second,
		IdleSleep:      time.Duration(cfg.Queue.IdleSeconds) * time.Second,
		MessageTimeout: time.Duration(cfg.Queue.MessageTimeout) * time.Second,
	}, q, embedding, logger)

	consumer.Run(ctx)
}
