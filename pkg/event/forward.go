package event

import (
	"context"
	"fmt"

	"github.com/jwalitptl/intake-api/pkg/messaging"
)

// Forward returns a handler that republishes events on a broker channel for
// consumers outside this process.
func Forward(broker messaging.Broker, channel string) Handler {
	return func(ctx context.Context, e Event) error {
		msg := messaging.Message{Type: string(e.Type), Payload: e}
		if err := broker.Publish(ctx, channel, msg); err != nil {
			return fmt.Errorf("failed to forward %s: %w", e.Type, err)
		}
		return nil
	}
}
