package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries is the number of handler attempts per message.
const maxHandlerRetries = 3

// Handler processes a decoded event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig selects the topic and group a Consumer joins.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic in a consumer group and feeds events to a Handler.
type Consumer struct {
	reader    MessageReader
	topic     string
	group     string
	logger    *slog.Logger
	handler   Handler
	backoff   time.Duration
	closeOnce sync.Once
}

// NewConsumer creates a consumer backed by a kafka-go Reader.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return NewConsumerWithReader(r, cfg.Topic, cfg.GroupID, handler, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(r MessageReader, topic, group string, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		group:   group,
		logger:  logger,
		handler: handler,
		backoff: 100 * time.Millisecond,
	}
}

// Start reads and handles messages until ctx is canceled, then closes the
// reader. A message is committed once it was handled, found malformed, or
// given up on after maxHandlerRetries attempts.
func (c *Consumer) Start(ctx context.Context) error {
	log := c.logger.With(slog.String("topic", c.topic), slog.String("group", c.group))
	log.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			log.Info("consumer stopping")
			return c.Close()
		}
		if err != nil {
			log.Error("fetch failed", slog.String("error", err.Error()))
			continue
		}

		outcome := c.process(ctx, msg)
		if outcome == outcomeInterrupted {
			return c.Close()
		}
		eventsConsumed.WithLabelValues(msg.Topic, c.group, outcome).Inc()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit failed",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

const (
	outcomeOK          = "ok"
	outcomeMalformed   = "malformed"
	outcomeDropped     = "dropped"
	outcomeInterrupted = "interrupted"
)

// process decodes msg and runs the handler with linear backoff between
// attempts. outcomeInterrupted means ctx ended mid-retry and msg must stay
// uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) string {
	start := time.Now()
	defer func() {
		handleDuration.WithLabelValues(msg.Topic, c.group).Observe(time.Since(start).Seconds())
	}()

	log := c.logger.With(
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		log.Error("skipping undecodable message", slog.String("error", err.Error()))
		return outcomeMalformed
	}
	log = log.With(
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
	)
	ctx = extractTrace(ctx, &msg)

	for attempt := 1; ; attempt++ {
		err = c.handler(ctx, event)
		if err == nil {
			return outcomeOK
		}
		if attempt == maxHandlerRetries {
			break
		}
		log.Warn("handler failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		wait := time.NewTimer(time.Duration(attempt) * c.backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			return outcomeInterrupted
		case <-wait.C:
		}
	}

	log.Error("handler gave up, dropping message",
		slog.Int("attempts", maxHandlerRetries),
		slog.String("error", err.Error()),
	)
	return outcomeDropped
}

// Close closes the reader once; later calls return nil.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
