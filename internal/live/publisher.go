package live

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultStreamLength bounds each committee's activity history
const DefaultStreamLength = 1000

// StreamPublisher appends committee activity to one Redis stream per committee.
type StreamPublisher struct {
	rdb    redis.Cmdable
	maxLen int64
}

func NewStreamPublisher(rdb redis.Cmdable, maxLen int64) *StreamPublisher {
	if maxLen <= 0 {
		maxLen = DefaultStreamLength
	}
	return &StreamPublisher{rdb: rdb, maxLen: maxLen}
}

// Publish adds an event to the committee's stream, trimming old entries.
func (p *StreamPublisher) Publish(ctx context.Context, committeeID primitive.ObjectID, kind string, payload any) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis client not available")
	}
	event, err := NewEvent(committeeID.Hex(), kind, payload)
	if err != nil {
		return err
	}
	data, err := MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(event.CommitteeID),
		Values: map[string]interface{}{
			"type": event.Type,
			"data": data,
		},
		MaxLen: p.maxLen,
		Approx: true,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Recent returns up to count of the newest events for a committee, newest first.
func (p *StreamPublisher) Recent(ctx context.Context, committeeID primitive.ObjectID, count int64) ([]*Event, error) {
	if p == nil || p.rdb == nil {
		return nil, fmt.Errorf("redis client not available")
	}
	messages, err := p.rdb.XRevRangeN(ctx, streamKey(committeeID.Hex()), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}
	events := make([]*Event, 0, len(messages))
	for _, message := range messages {
		data, ok := message.Values["data"].(string)
		if !ok {
			continue
		}
		event, err := UnmarshalEvent(data)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
