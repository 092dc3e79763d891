package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/xhad/scribe/pkg/blob"
	"github.com/xhad/scribe/pkg/cache"
	"github.com/xhad/scribe/pkg/config"
	"github.com/xhad/scribe/pkg/llm"
	"github.com/xhad/scribe/pkg/queue"
	"github.com/xhad/scribe/pkg/store"
	"github.com/xhad/scribe/server"
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
		With(slog.String("component", "server"))

	ctx := context.Background()

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

	taggingQueue, err := queue.NewWithConfig(ctx, queue.QueueConfig{
		URL:    cfg.Queue.URL,
		Stream: cfg.Queue.TaggingStream,
	})
	if err != nil {
		log.Fatalf("failed to initialize tagging queue: %v", err)
	}
	defer taggingQueue.Close()

	embeddingQueue, err := queue.NewWithConfig(ctx, queue.QueueConfig{
		URL:    cfg.Queue.URL,
		Stream: cfg.Queue.EmbedStream,
	})
	if err != nil {
		log.Fatalf("failed to initialize embedding queue: %v", err)
	}
	defer embeddingQueue.Close()

	c := cache.NewWithConfig(cache.CacheConfig{
		Addr:       cfg.Cache.Addr,
		DefaultTTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	})
	defer c.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		VectorDim: cfg.Embedding.VectorDim,
	})
	if err != nil {
		log.Fatalf("failed to initialize embedder: %v", err)
	}

	srv := server.NewWithConfig(server.Config{
		Port:     cfg.Server.Port,
		CacheTTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	}, st, blobs, taggingQueue, embeddingQueue, c, embedder, logger)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
