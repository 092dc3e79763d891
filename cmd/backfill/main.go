package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/xhad/scribe/pkg/config"
	"github.com/xhad/scribe/pkg/llm"
	"github.com/xhad/scribe/pkg/store"
)

// Backfills embeddings for tags that predate the annotation pipeline and
// still have a null embedding column. The matcher ignores such tags, so
// until they are repaired they can be duplicated by new near-identical tags.
func main() {
	var configPath string
	var embedRate float64
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Float64Var(&embedRate, "rate", 5.0, "Embedding calls per second")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	st, err := store.NewWithConfig(store.StoreConfig{
		ConnString: cfg.Database.URL,
		VectorDim:  cfg.Embedding.VectorDim,
	})
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer st.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		VectorDim: cfg.Embedding.VectorDim,
	})
	if err != nil {
		log.Fatalf("failed to initialize embedder: %v", err)
	}

	tags, err := st.TagsMissingEmbeddings(ctx)
	if err != nil {
		log.Fatalf("failed to list tags: %v", err)
	}

	if len(tags) == 0 {
		color.Green("No tags with missing embeddings.")
		return
	}

	color.Blue("Found %d tags with missing embeddings\n", len(tags))

	bar := progressbar.NewOptions(len(tags),
		progressbar.OptionSetDescription("Backfilling tag embeddings..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	limiter := rate.NewLimiter(rate.Limit(embedRate), 1)

	updated := 0
	failed := 0
	for _, tag := range tags {
		if err := limiter.Wait(ctx); err != nil {
			log.Fatal(err)
		}

		embedding, err := embedder.Embed(ctx, tag.Text)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "\ncould not embed tag %q: %v\n", tag.Text, err)
			bar.Add(1)
			continue
		}

		if err := st.SetTagEmbedding(ctx, tag.ID, embedding); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "\ncould not update tag %q: %v\n", tag.Text, err)
			bar.Add(1)
			continue
		}

		updated++
		bar.Add(1)
	}
	bar.Finish()

	fmt.Println()
	color.Green("✓ Updated %d tags", updated)
	if failed > 0 {
		color.Red("✗ Failed to update %d tags", failed)
		os.Exit(1)
	}
}
