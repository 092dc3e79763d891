package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/xhad/scribe/internal/types"
)

type QueueConfig struct {
	URL     string
	Stream  string
	Durable string
}

// Queue is a NATS JetStream stream with one durable pull consumer. Explicit
// acks give the at-least-once contract the pipeline is built around: an
// unacked message comes back after its ack wait.
type Queue struct {
	config   QueueConfig
	conn     *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	subject  string
}

type message struct {
	msg jetstream.Msg
}

func (m message) Data() []byte { return m.msg.Data() }
func (m message) Ack() error   { return m.msg.Ack() }

func NewWithConfig(ctx context.Context, config QueueConfig) (*Queue, error) {
	if config.URL == "" {
		config.URL = nats.DefaultURL
	}
	if config.Durable == "" {
		config.Durable = "workers"
	}

	conn, err := nats.Connect(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %v", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %v", err)
	}

	subject := fmt.Sprintf("%s.ready", config.Stream)
	stream, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     config.Stream,
		Subjects: []string{subject},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream %s: %v", config.Stream, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:   config.Durable,
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create consumer on %s: %v", config.Stream, err)
	}

	return &Queue{
		config:   config,
		conn:     conn,
		js:       js,
		consumer: consumer,
		subject:  subject,
	}, nil
}

// Publish enqueues one document-ready payload.
func (q *Queue) Publish(ctx context.Context, payload []byte) error {
	if _, err := q.js.Publish(ctx, q.subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %v", q.subject, err)
	}
	return nil
}

// Fetch pulls up to max messages, waiting at most wait for the first one.
// An empty batch is not an error.
func (q *Queue) Fetch(ctx context.Context, max int, wait time.Duration) ([]types.Message, error) {
	batch, err := q.consumer.Fetch(max, jetstream.FetchMaxWait(wait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch from %s: %v", q.config.Stream, err)
	}

	var messages []types.Message
	for msg := range batch.Messages() {
		messages = append(messages, message{msg: msg})
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return messages, fmt.Errorf("fetch from %s: %v", q.config.Stream, err)
	}

	return messages, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}
