// Package live publishes committee activity to Redis streams and rate-limits
// the speaker queue.
package live

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one committee activity entry as stored in the stream
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	CommitteeID string          `json:"committeeId"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   int64           `json:"timestamp"`
}

// NewEvent creates a new event with a fresh id and the current time
func NewEvent(committeeID, eventType string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		CommitteeID: committeeID,
		Payload:     payloadBytes,
		Timestamp:   time.Now().UnixMilli(),
	}, nil
}

// MarshalEvent marshals an event to the JSON string stored in the stream
func MarshalEvent(event *Event) (string, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalEvent decodes a stream entry
func UnmarshalEvent(data string) (*Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func streamKey(committeeID string) string {
	return fmt.Sprintf("committee:%s:events", committeeID)
}
