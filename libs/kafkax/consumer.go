package kafkax

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DedupeRecorder remembers event ids so replayed messages are dropped.
// Record returns false for an id it has seen before.
type DedupeRecorder interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

type MessageHandler func(ctx context.Context, msg kafka.Message) error

type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// Consumer tails one topic and hands each fresh message to the handler
// inside a trace span. Handler errors leave the message for redelivery
// semantics at the group level; duplicates are acknowledged and skipped.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	dedupe  DedupeRecorder
	handler MessageHandler
}

func NewConsumer(logger *slog.Logger, dedupe DedupeRecorder, cfg ConsumerConfig, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		dedupe:  dedupe,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := ExtractEventMeta(msg)

		ok, err := c.dedupe.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handler(ctxSpan, msg); err != nil {
			c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()
	}
}
