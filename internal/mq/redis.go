package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/votehall/apiserver/config"
)

// RedisClient implements Backend over Redis pub/sub. Every subscriber gets
// every message, which matches the fan-out the live update channel needs;
// delivery is at-most-once per connected instance.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient constructs a Redis backend from config.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisClient{client: client}, nil
}

// envelope carries attributes alongside the payload, since Redis pub/sub
// messages have no headers of their own.
type envelope struct {
	ID         string            `json:"id"`
	Data       json.RawMessage   `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publish sends a message to the named channel.
func (r *RedisClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("redis channel is required")
	}

	messageID := newMessageID()
	payload, err := json.Marshal(envelope{
		ID:         messageID,
		Data:       data,
		Attributes: attrs,
	})
	if err != nil {
		return "", err
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named channel until ctx is
// cancelled. Handler errors are dropped: pub/sub has no ack, and the
// consumers of this bus recompute from scratch on the next event anyway.
func (r *RedisClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("redis channel is required")
	}

	sub := r.client.Subscribe(ctx, channel)
	defer sub.Close()

	// Fail fast if the subscription could not be established.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	deliveries := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var env envelope
			if err := json.Unmarshal([]byte(delivery.Payload), &env); err != nil {
				continue
			}
			_ = handler(ctx, Message{
				ID:         env.ID,
				Data:       env.Data,
				Attributes: env.Attributes,
			})
		}
	}
}

// Close closes the underlying Redis client.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
