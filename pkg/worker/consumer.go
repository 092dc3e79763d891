package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/xhad/scribe/internal/models"
	"github.com/xhad/scribe/internal/types"
)

// Processor is one worker type's message handler. It never returns an error:
// every outcome is a state transition on its axis.
type Processor interface {
	Process(ctx context.Context, msg DocumentReady) models.AnnotationStatus
}

type ConsumerConfig struct {
	BatchSize      int
	FetchWait      time.Duration
	IdleSleep      time.Duration
	MessageTimeout time.Duration
}

// Consumer is the long-running polling loop for one queue. Messages are
// processed sequentially within a batch and acknowledged after exactly one
// attempt regardless of outcome; re-driving a failed axis means re-enqueuing
// the ready message.
type Consumer struct {
	config ConsumerConfig
	queue  types.Queue
	worker Processor
	logger *slog.Logger
}

func NewConsumerWithConfig(config ConsumerConfig, queue types.Queue, worker Processor, logger *slog.Logger) *Consumer {
	if config.BatchSize == 0 {
		config.BatchSize = 5
	}
	if config.FetchWait == 0 {
		config.FetchWait = 10 * time.Second
	}
	if config.IdleSleep == 0 {
		config.IdleSleep = 2 * time.Second
	}
	if config.MessageTimeout == 0 {
		config.MessageTimeout = 2 * time.Minute
	}

	return &Consumer{
		config: config,
		queue:  queue,
		worker: worker,
		logger: logger,
	}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped")
			return
		default:
		}

		messages, err := c.queue.Fetch(ctx, c.config.BatchSize, c.config.FetchWait)
		if err != nil {
			c.logger.Error("queue fetch failed", slog.Any("error", err))
			sleepCtx(ctx, c.config.IdleSleep)
			continue
		}

		if len(messages) == 0 {
			sleepCtx(ctx, c.config.IdleSleep)
			continue
		}

		for _, msg := range messages {
			c.handle(ctx, msg)
		}

		sleepCtx(ctx, c.config.IdleSleep)
	}
}

func (c *Consumer) handle(ctx context.Context, msg types.Message) {
	// The message is deleted after one attempt whatever happens below, so a
	// malformed or failed message can never loop forever.
	defer func() {
		if err := msg.Ack(); err != nil {
			c.logger.Error("could not acknowledge message", slog.Any("error", err))
		}
	}()

	payload, err := ParseDocumentReady(msg.Data())
	if err != nil {
		c.logger.Warn("skipping malformed message",
			slog.String("body", string(msg.Data())),
			slog.Any("error", err))
		return
	}

	// Bound every external call the worker makes; a timeout surfaces as the
	// generic failure path on the document's axis.
	mctx, cancel := context.WithTimeout(ctx, c.config.MessageTimeout)
	defer cancel()

	result := c.worker.Process(mctx, payload)
	if result == "" {
		return
	}

	c.logger.Info("message processed",
		slog.String("documentID", payload.DocumentID.String()),
		slog.String("result", string(result)))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
