package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/peerloop/relay/internal/cache"
	"github.com/peerloop/relay/internal/clock"
	"github.com/peerloop/relay/internal/config"
	"github.com/peerloop/relay/internal/dispatch"
	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/observability/metrics"
	"github.com/peerloop/relay/internal/store"
)

func newTestConsumer(t *testing.T) (*Consumer, *events.Recorder) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	rec := &events.Recorder{}
	deps := &dispatch.Deps{
		Store:         store.NewMemory(),
		Emitter:       events.NewEmitter(rec, zap.NewNop()),
		Log:           zap.NewNop(),
		Clock:         clock.Fixed{At: time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)},
		GenID:         node,
		RecoveryCache: cache.NewTTLCache[string, int](),
	}
	c := &Consumer{
		parser:   envelope.NewParser(zap.NewNop()),
		registry: dispatch.BuildRegistry(zap.NewNop()),
		deps:     deps,
		log:      zap.NewNop(),
		cfg: config.KafkaConfig{
			Topic:          "db.changes",
			RetryBackoff:   time.Millisecond,
			PoisonAttempts: 2,
		},
		metrics: metrics.Engine(),
	}
	return c, rec
}

func TestProcessOneDispatches(t *testing.T) {
	c, rec := newTestConsumer(t)

	msg := kafka.Message{Value: []byte(`{
		"table": "post_votes",
		"op": "c",
		"after": {"post_id": "p1", "user_id": "u1", "vote": "up"},
		"ts_us": 1710000000000000
	}`)}
	if err := c.processOne(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}

	topics := rec.Topics()
	if len(topics) != 1 || topics[0] != events.TopicPostUpvoted {
		t.Fatalf("unexpected topics: %v", topics)
	}
}

func TestProcessOneParseError(t *testing.T) {
	c, _ := newTestConsumer(t)

	msg := kafka.Message{Value: []byte(`not json`)}
	if err := c.processOne(context.Background(), msg); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestProcessUntilDoneStopsOnCancel(t *testing.T) {
	c, _ := newTestConsumer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A permanently failing message must exit once the context is gone
	// instead of spinning forever.
	msg := kafka.Message{Value: []byte(`not json`)}
	if err := c.processUntilDone(ctx, msg); err == nil {
		t.Fatalf("expected context error")
	}
}
