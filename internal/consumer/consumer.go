// Package consumer reads change envelopes from Kafka and feeds them to the
// dispatch registry. Delivery is at-least-once: a message commits only
// after its envelope dispatched cleanly, and a failing envelope is retried
// in place so per-partition commit order is preserved.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/peerloop/relay/internal/config"
	"github.com/peerloop/relay/internal/dispatch"
	"github.com/peerloop/relay/internal/envelope"
	logmask "github.com/peerloop/relay/internal/observability/logger"
	"github.com/peerloop/relay/internal/observability/metrics"
)

type Consumer struct {
	reader   *kafka.Reader
	parser   *envelope.Parser
	registry *dispatch.Registry
	deps     *dispatch.Deps
	log      *zap.Logger
	cfg      config.KafkaConfig
	metrics  *metrics.EngineMetrics
}

func New(cfg config.Config, parser *envelope.Parser, registry *dispatch.Registry, deps *dispatch.Deps, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: cfg.Kafka.MinBytes,
		MaxBytes: cfg.Kafka.MaxBytes,
	})
	return &Consumer{
		reader:   reader,
		parser:   parser,
		registry: registry,
		deps:     deps,
		log:      log.Named("consumer"),
		cfg:      cfg.Kafka,
		metrics:  metrics.Engine(),
	}
}

// RunForever consumes until the context is canceled.
func (c *Consumer) RunForever(ctx context.Context) error {
	c.log.Info("consuming change envelopes",
		zap.Strings("brokers", c.cfg.Brokers),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.processUntilDone(ctx, msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// processUntilDone retries one message until it dispatches cleanly. After
// the configured attempt threshold the message is flagged as a repeated
// failure so operators can spot poison envelopes; processing still does not
// skip it, matching the delivery contract.
func (c *Consumer) processUntilDone(ctx context.Context, msg kafka.Message) error {
	attempts := 0
	for {
		err := c.processOne(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}

		attempts++
		fields := []zap.Field{
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempts", attempts),
			zap.Error(err),
		}
		if attempts >= c.cfg.PoisonAttempts {
			c.metrics.IncRepeatedFailure(c.cfg.Topic)
			fields = append(fields, zap.Any("payload", logmask.MaskPayload(msg.Value)))
			c.log.Warn("envelope keeps failing, possible poison message", fields...)
		} else {
			c.log.Info("envelope failed, retrying", fields...)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
}

func (c *Consumer) processOne(ctx context.Context, msg kafka.Message) error {
	env, err := c.parser.Parse(msg.Value)
	if err != nil {
		c.metrics.IncEnvelope("parse_error")
		return err
	}
	started := time.Now()
	if err := c.registry.Dispatch(ctx, c.deps, env); err != nil {
		c.metrics.IncEnvelope("dispatch_error")
		c.metrics.IncHandlerFailure(env.Table)
		return err
	}
	c.metrics.ObserveDispatch(time.Since(started))
	c.metrics.IncEnvelope("ok")
	return nil
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
