package mq

import (
	"context"
	"encoding/json"
)

// voteEventsChannel is the single broker channel carrying tally-changed
// signals between server instances.
const voteEventsChannel = "vote-events"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// TallyEvent announces that a room's votes ledger changed. It carries ids
// only; subscribers recompute the tally from scratch, so redelivery and
// reordering are harmless.
type TallyEvent struct {
	RoomID string `json:"room_id"`
	VoteID string `json:"vote_id,omitempty"`
}

// TallyHandler processes a decoded tally event.
type TallyHandler func(ctx context.Context, event TallyEvent) error

// Bus speaks TallyEvent over whichever broker backend is configured.
type Bus struct {
	backend Backend
}

// NewBus constructs a Bus for the provided backend.
func NewBus(backend Backend) *Bus {
	return &Bus{backend: backend}
}

// PublishTally broadcasts a tally-changed signal for a room.
func (b *Bus) PublishTally(ctx context.Context, event TallyEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = b.backend.Publish(ctx, voteEventsChannel, data, map[string]string{
		"room_id": event.RoomID,
	})
	return err
}

// SubscribeTally consumes tally-changed signals until ctx is cancelled.
// Undecodable payloads are acknowledged and dropped rather than redelivered
// forever.
func (b *Bus) SubscribeTally(ctx context.Context, handler TallyHandler) error {
	return b.backend.Subscribe(ctx, voteEventsChannel, func(ctx context.Context, msg Message) error {
		var event TallyEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		if event.RoomID == "" {
			event.RoomID = msg.Attributes["room_id"]
		}
		if event.RoomID == "" {
			return nil
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}
