package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrMissingOrigin = errors.New("invalidation message has no origin")
	ErrNoTags        = errors.New("invalidation message has no tags")
)

// InvalidationMessage announces that a process invalidated cache tags.
// Tags travel in their "Type" or "Type:ID" string form.
type InvalidationMessage struct {
	Origin    string    `json:"origin"`
	UserID    string    `json:"userId,omitempty"`
	Tags      []string  `json:"tags"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvalidationMessage(origin, userID string, tags []string) *InvalidationMessage {
	return &InvalidationMessage{
		Origin:    origin,
		UserID:    userID,
		Tags:      tags,
		Timestamp: time.Now(),
	}
}

func (m *InvalidationMessage) Validate() error {
	if m.Origin == "" {
		return ErrMissingOrigin
	}
	if len(m.Tags) == 0 {
		return ErrNoTags
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes and validates a message.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
