package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermarker/internal/config"
	"github.com/aliskhannn/watermarker/internal/model"
)

// writer is the subset of *kafka.Writer used by Producer.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes batch progress snapshots to a Kafka topic.
type Producer struct {
	Client   writer
	strategy retry.Strategy
	timeout  time.Duration
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{Client: w, strategy: s, timeout: 5 * time.Second}
}

// Produce serializes the snapshot to JSON and sends it to Kafka.
// The run ID is used as the message key so a run's events stay ordered
// within one partition.
func (p *Producer) Produce(ctx context.Context, progress model.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(progress.RunID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "state", Value: []byte(progress.State)},
		},
	}

	err = retry.Do(func() error {
		sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.Client.WriteMessages(sendCtx, msg)
	}, p.strategy)
	if err != nil {
		return fmt.Errorf("failed to send progress: %w", err)
	}

	return nil
}

// Observer returns a progress callback that publishes every snapshot.
// Send failures are logged and never interrupt the run.
func (p *Producer) Observer(ctx context.Context) func(model.Progress) {
	return func(progress model.Progress) {
		if err := p.Produce(ctx, progress); err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("run_id", progress.RunID).
				Msg("failed to publish progress")
		}
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.Client.Close()
}
