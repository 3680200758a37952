package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r        *kafka.Reader
	workers  int
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:        r,
		workers:  workers,
		attempts: 5,
		backoff:  200 * time.Millisecond,
		log:      log.With(zap.String("topic", topic), zap.String("group", group)),
	}
}

// handle retries h in place with doubling backoff. Kafka does not redeliver a
// single failed offset inside a running group, so this is the only retry.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	attempts := c.attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := c.backoff
	var err error
	for i := 0; i < attempts; i++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		c.log.Warn("handler error, retrying", zap.Int64("offset", m.Offset), zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, c.workers*4)

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				if err := c.handle(ctx, h, m); err != nil {
					if ctx.Err() != nil {
						// shutdown: offset belum di-commit, dibaca ulang saat start berikutnya
						continue
					}
					// reader sudah maju; commit berikutnya melewati offset ini
					c.log.Error("message dropped after retries", zap.Int64("offset", m.Offset),
						zap.Int("attempts", c.attempts), zap.Error(err))
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			close(jobs)
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}
	}
}
