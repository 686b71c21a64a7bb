package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
)

// NewRedisStreamNotifier creates a notifier shared by every process using
// client. Subscribers read without a consumer group so each one sees every event.
func NewRedisStreamNotifier(client redis.UniversalClient, logger watermill.LoggerAdapter) (*SessionNotifier, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client: client,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream subscriber: %w", err)
	}

	return NewSessionNotifier(publisher, subscriber), nil
}
