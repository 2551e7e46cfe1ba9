package push

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/pkg/messaging"
)

// MaxTokensPerMessage matches the multicast limit of the downstream push gateway.
const MaxTokensPerMessage = 500

// Pusher delivers a push notification to device tokens.
type Pusher interface {
	Send(ctx context.Context, title, body string, tokens []string) error
}

// Push is the message published for the delivery gateway.
type Push struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Tokens []string `json:"tokens"`
}

// BrokerPusher hands pushes to the gateway through the message broker.
type BrokerPusher struct {
	broker  messaging.Broker
	channel string
}

func NewBrokerPusher(broker messaging.Broker, channel string) *BrokerPusher {
	if channel == "" {
		channel = "push.outbound"
	}
	return &BrokerPusher{broker: broker, channel: channel}
}

func (p *BrokerPusher) Send(ctx context.Context, title, body string, tokens []string) error {
	tokens = lo.Uniq(lo.Compact(tokens))
	if len(tokens) == 0 {
		return nil
	}

	for _, chunk := range lo.Chunk(tokens, MaxTokensPerMessage) {
		msg := messaging.Message{
			Type:    "push",
			Payload: Push{Title: title, Body: body, Tokens: chunk},
		}
		if err := p.broker.Publish(ctx, p.channel, msg); err != nil {
			return fmt.Errorf("failed to publish push: %w", err)
		}
	}
	return nil
}
