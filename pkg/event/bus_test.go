package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

func TestBusRoutesByType(t *testing.T) {
	bus := NewBus(logger.Nop(), metrics.NewNop())

	var created, all []Type
	bus.Subscribe("created", func(_ context.Context, e Event) error {
		created = append(created, e.Type)
		return nil
	}, PatientCreated)
	bus.Subscribe("all", func(_ context.Context, e Event) error {
		all = append(all, e.Type)
		return nil
	})

	bus.Publish(context.Background(), New(PatientCreated, 1, 2), New(OutcomeRecorded, 1, 2))

	assert.Equal(t, []Type{PatientCreated}, created)
	assert.Equal(t, []Type{PatientCreated, OutcomeRecorded}, all)
}

func TestBusIsolatesFailingSubscribers(t *testing.T) {
	bus := NewBus(logger.Nop(), metrics.NewNop())

	reached := 0
	bus.Subscribe("fails", func(context.Context, Event) error { return errors.New("down") })
	bus.Subscribe("panics", func(context.Context, Event) error { panic("boom") })
	bus.Subscribe("ok", func(context.Context, Event) error { reached++; return nil })

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), New(PatientDeleted, 1, 1))
	})
	assert.Equal(t, 1, reached)
}
