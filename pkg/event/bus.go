package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type subscription struct {
	name    string
	handler Handler
}

// Bus dispatches events synchronously to subscribers in registration order.
type Bus struct {
	mu      sync.RWMutex
	byType  map[Type][]subscription
	all     []subscription
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewBus(log *logger.Logger, m *metrics.Metrics) *Bus {
	return &Bus{
		byType:  make(map[Type][]subscription),
		logger:  log,
		metrics: m,
	}
}

// Subscribe registers h for the given types, or for every type when none are given.
func (b *Bus) Subscribe(name string, h Handler, types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{name: name, handler: h}
	if len(types) == 0 {
		b.all = append(b.all, sub)
		return
	}
	for _, t := range types {
		b.byType[t] = append(b.byType[t], sub)
	}
}

func (b *Bus) Publish(ctx context.Context, events ...Event) {
	for _, e := range events {
		b.mu.RLock()
		subs := make([]subscription, 0, len(b.byType[e.Type])+len(b.all))
		subs = append(subs, b.byType[e.Type]...)
		subs = append(subs, b.all...)
		b.mu.RUnlock()

		for _, sub := range subs {
			if err := b.dispatch(ctx, sub, e); err != nil {
				b.logger.Error(err, "event subscriber failed",
					"subscriber", sub.name,
					"event_type", string(e.Type),
					"event_id", e.ID.String(),
					"patient_id", e.PatientID)
				if b.metrics != nil {
					b.metrics.EventHandlerFailures.WithLabelValues(string(e.Type)).Inc()
				}
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, e Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s: %v", sub.name, p)
		}
	}()
	return sub.handler(ctx, e)
}
