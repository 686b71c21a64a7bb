package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/ports"
)

// SessionTopic carries core.SessionEvent payloads
const SessionTopic = "invoicegate.session"

// SessionNotifier implements ports.SessionNotifier on any watermill pub/sub.
// With gochannel it is an in-process bus; with redisstream (no consumer
// group) every subscribed process receives every event.
type SessionNotifier struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
}

// NewSessionNotifier creates a notifier on the given publisher/subscriber pair
func NewSessionNotifier(publisher message.Publisher, subscriber message.Subscriber) *SessionNotifier {
	return &SessionNotifier{
		publisher:  publisher,
		subscriber: subscriber,
		topic:      SessionTopic,
	}
}

// NewInProcessNotifier creates a notifier backed by a watermill gochannel.
// The returned GoChannel must be closed by the caller.
func NewInProcessNotifier(logger watermill.LoggerAdapter) (*SessionNotifier, *gochannel.GoChannel) {
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return NewSessionNotifier(bus, bus), bus
}

// Publish broadcasts event
func (n *SessionNotifier) Publish(ctx context.Context, event core.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := n.publisher.Publish(n.topic, msg); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	return nil
}

// Subscribe delivers decoded events until ctx is done
func (n *SessionNotifier) Subscribe(ctx context.Context) (<-chan core.SessionEvent, error) {
	messages, err := n.subscriber.Subscribe(ctx, n.topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	out := make(chan core.SessionEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event core.SessionEvent
				err := json.Unmarshal(msg.Payload, &event)
				msg.Ack()
				if err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ ports.SessionNotifier = (*SessionNotifier)(nil)
