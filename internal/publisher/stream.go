package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

const (
	// GlobalStream receives every sport's load events
	GlobalStream = "catalog.events"

	publishTimeout = 5 * time.Second
	streamMaxLen   = 1000
)

// StreamKey returns the sport-specific stream for load events
func StreamKey(sport models.Sport) string {
	return fmt.Sprintf("catalog.events.%s", sport.FeedKey())
}

// StreamPublisher publishes catalog load events to Redis Streams
type StreamPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(client *redis.Client, logger *zap.Logger) *StreamPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamPublisher{
		client: client,
		logger: logger,
	}
}

// Publish writes event to its sport stream and to the global stream
func (p *StreamPublisher) Publish(ctx context.Context, event models.LoadEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal load event: %w", err)
	}

	for _, stream := range []string{StreamKey(event.Sport), GlobalStream} {
		_, err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"event": string(eventJSON),
			},
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
		}
	}

	return nil
}

// Observe publishes event in the background. It matches catalog.Observer,
// which must not block on Redis.
func (p *StreamPublisher) Observe(event models.LoadEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish load event",
				zap.String("sport", string(event.Sport)),
				zap.String("state", string(event.State)),
				zap.Error(err))
		}
	}()
}
