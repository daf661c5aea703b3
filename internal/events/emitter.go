package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peerloop/relay/internal/cache"
	"github.com/peerloop/relay/internal/observability/metrics"
)

// defaultDedupeWindow bounds how long an exact repeat of a keyed event is
// suppressed. Best effort only: the window is per-process, so this is not
// an exactly-once guarantee.
const defaultDedupeWindow = 10 * time.Minute

var ErrNilPublisher = errors.New("nil_publisher")

// Emitter publishes a handler's events in the order they were returned.
type Emitter struct {
	publisher Publisher
	log       *zap.Logger
	window    time.Duration
	seen      *cache.TTLCache[string, struct{}]
}

func NewEmitter(publisher Publisher, log *zap.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		log:       log.Named("emitter"),
		window:    defaultDedupeWindow,
		seen:      cache.NewTTLCache[string, struct{}](),
	}
}

// Emit publishes one event, suppressing keyed repeats inside the dedupe
// window. The key is marked seen only after a successful publish, so a
// failed publish stays retryable.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if e == nil || e.publisher == nil {
		return ErrNilPublisher
	}
	if event.DedupeKey != "" {
		if _, ok := e.seen.Get(event.DedupeKey); ok {
			e.log.Debug("suppressed duplicate event",
				zap.String("topic", event.Topic),
				zap.String("dedupe_key", event.DedupeKey),
			)
			return nil
		}
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Topic, err)
	}
	metrics.Engine().IncEventPublished(event.Topic)
	if event.DedupeKey != "" {
		e.seen.Set(event.DedupeKey, struct{}{}, e.window)
	}
	return nil
}

// EmitAll publishes events in order, stopping at the first failure so the
// delivery layer retries the envelope from the top.
func (e *Emitter) EmitAll(ctx context.Context, batch []Event) error {
	for _, event := range batch {
		if err := e.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
