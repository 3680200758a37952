package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// KafkaNotifier publishes notices as enveloped events on TopicStorefrontEvents.
type KafkaNotifier struct {
	Producer publisher
	Service  string
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notice) {
	corr := n.TransactionUUID
	if corr == "" {
		corr = n.UserID
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     n.Type,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      k.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: corr,
		Payload:       MustMarshal(n),
	}
	k.Producer.Publish(PartitionKey(corr), MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(n.Type)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	Log *zap.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notice) {
	fields := []zap.Field{
		zap.String("type", n.Type),
		zap.String("user_id", n.UserID),
		zap.String("transaction_uuid", n.TransactionUUID),
		zap.String("request_id", middleware.GetReqID(ctx)),
	}
	switch n.Level {
	case LevelError:
		l.Log.Error(n.Message, fields...)
	case LevelWarning:
		l.Log.Warn(n.Message, fields...)
	default:
		l.Log.Info(n.Message, fields...)
	}
}

type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, x := range m {
		x.Notify(ctx, n)
	}
}

type Nop struct{}

func (Nop) Notify(context.Context, Notice) {}

// Recorder keeps notices in memory; handy for tests and debug endpoints.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Types returns the recorded notice types in order.
func (r *Recorder) Types() []string {
	ns := r.Notices()
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Type
	}
	return out
}
