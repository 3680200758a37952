package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sixstreet/storefront/internal/events"
	"github.com/sixstreet/storefront/internal/redisx"
)

// Deduper remembers processed event ids.
type Deduper interface {
	First(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type RedisDeduper struct {
	RDB     redis.Cmdable
	Service string
}

func (d RedisDeduper) key(id string) string { return fmt.Sprintf(redisx.KeyDedup, d.Service, id) }

func (d RedisDeduper) First(ctx context.Context, id string) (bool, error) {
	return redisx.MarkOnce(ctx, d.RDB, d.key(id), redisx.TTLDedup)
}

func (d RedisDeduper) Forget(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, d.key(id)).Err()
}

// OutcomeConsumer applies payment.outcome events relayed from the gateway.
type OutcomeConsumer struct {
	Service *Service
	Dedup   Deduper
	Log     *zap.Logger
}

// Handle is a kafka.Handler. An error asks the consumer to retry the message;
// the dedup mark is released first so the retry is not mistaken for a duplicate.
func (c *OutcomeConsumer) Handle(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		c.Log.Warn("skip undecodable outcome message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != events.EventPaymentOutcome {
		return nil
	}
	p, err := events.UnwrapPayload[events.PaymentOutcomePayload](env.Payload)
	if err != nil {
		c.Log.Warn("skip outcome with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	first, err := c.Dedup.First(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	_, err = c.Service.ApplyOutcome(ctx, p.TransactionUUID, p.Outcome)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrInvalidOutcome), errors.Is(err, ErrUnknownOutcome):
		// bukan milik instance ini atau sudah diproses lewat HTTP
		c.Log.Info("outcome ignored",
			zap.String("transaction_uuid", p.TransactionUUID), zap.String("outcome", p.Outcome), zap.Error(err))
		return nil
	default:
		if ferr := c.Dedup.Forget(ctx, env.EventID); ferr != nil {
			c.Log.Warn("dedup rollback failed", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		return err
	}
}
