package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type recordingBroker struct {
	channels []string
	messages []messaging.Message
	err      error
}

func (b *recordingBroker) Publish(_ context.Context, channel string, message interface{}) error {
	if b.err != nil {
		return b.err
	}
	b.channels = append(b.channels, channel)
	b.messages = append(b.messages, message.(messaging.Message))
	return nil
}

func (b *recordingBroker) Close() error { return nil }

func TestForwardPublishesEnvelope(t *testing.T) {
	broker := &recordingBroker{}
	e := New(OutcomeRecorded, 5, 9)
	e.Score = 3

	require.NoError(t, Forward(broker, "intake.events")(context.Background(), e))
	require.Len(t, broker.messages, 1)
	assert.Equal(t, []string{"intake.events"}, broker.channels)
	assert.Equal(t, string(OutcomeRecorded), broker.messages[0].Type)
	assert.Equal(t, e, broker.messages[0].Payload)
}

func TestForwardFailureStaysOnTheBus(t *testing.T) {
	bus := NewBus(logger.Nop(), metrics.NewNop())
	bus.Subscribe("forward", Forward(&recordingBroker{err: errors.New("redis down")}, "intake.events"))

	delivered := false
	bus.Subscribe("local", func(context.Context, Event) error { delivered = true; return nil })

	assert.NotPanics(t, func() { bus.Publish(context.Background(), New(PatientCreated, 1, 1)) })
	assert.True(t, delivered)
}
