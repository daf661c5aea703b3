// Package dispatch maps change envelopes to the per-table business rules
// that interpret them. Each table registers an ordered list of independent
// rules; a rule returns ordered (side-effect, event) emissions which the
// dispatcher applies and publishes in sequence.
package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/peerloop/relay/internal/cache"
	"github.com/peerloop/relay/internal/clock"
	"github.com/peerloop/relay/internal/diff"
	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/store"
)

// Deps bundles the collaborators a rule may touch. It is passed explicitly
// into every invocation; rules hold no shared state of their own.
type Deps struct {
	Store         store.Store
	Emitter       *events.Emitter
	Log           *zap.Logger
	Clock         clock.Clock
	GenID         *snowflake.Node
	RecoveryCache cache.Cache[string, int]
}

// SideEffect is one idempotent write against the relational store.
type SideEffect func(ctx context.Context) error

// Emission pairs an optional side effect with an optional event. The side
// effect applies before the event publishes, so a crash between the two
// leaves a retry that re-applies a no-op write and then re-emits.
type Emission struct {
	Event *events.Event
	Apply SideEffect
}

// HandlerFunc interprets one envelope for one rule.
type HandlerFunc func(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error)

// Rule is one independently testable predicate/handler pair.
type Rule struct {
	Name   string
	Handle HandlerFunc
}

// Registry maps table names to their ordered rules.
type Registry struct {
	log   *zap.Logger
	rules map[string][]Rule
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:   log.Named("dispatch"),
		rules: make(map[string][]Rule),
	}
}

// Register appends rules for a table, preserving order.
func (r *Registry) Register(table string, rules ...Rule) {
	r.rules[table] = append(r.rules[table], rules...)
}

// Tables lists every registered table, sorted.
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.rules))
	for table := range r.rules {
		out = append(out, table)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs every rule registered for the envelope's table. An unknown
// table is acknowledged and dropped with a log line so new tables can ship
// ahead of their handlers. Any error aborts the envelope; the delivery
// layer retries it from the top.
func (r *Registry) Dispatch(ctx context.Context, d *Deps, env envelope.Envelope) error {
	rules, ok := r.rules[env.Table]
	if !ok {
		r.log.Debug("no rules registered for table, dropping envelope",
			zap.String("table", env.Table),
			zap.String("op", string(env.Op)),
		)
		return nil
	}

	for _, rule := range rules {
		emissions, err := rule.Handle(ctx, d, env)
		if err != nil {
			return fmt.Errorf("rule %s/%s: %w", env.Table, rule.Name, err)
		}
		for _, emission := range emissions {
			if emission.Apply != nil {
				if err := emission.Apply(ctx); err != nil {
					return fmt.Errorf("rule %s/%s side effect: %w", env.Table, rule.Name, err)
				}
			}
			if emission.Event != nil {
				if err := d.Emitter.Emit(ctx, *emission.Event); err != nil {
					return fmt.Errorf("rule %s/%s: %w", env.Table, rule.Name, err)
				}
			}
		}
	}
	return nil
}

func emit(event events.Event) Emission {
	return Emission{Event: &event}
}

func effect(apply SideEffect) Emission {
	return Emission{Apply: apply}
}

// anyColumnChanged reports whether any column across both images changed.
func anyColumnChanged(before, after envelope.Row) bool {
	for column := range before {
		if diff.Changed(before, after, column) {
			return true
		}
	}
	for column := range after {
		if !before.Has(column) {
			return true
		}
	}
	return false
}
