package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// ConversationChannel is the per-conversation pubsub topic carrying message
// and status deltas.
func ConversationChannel(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

// DashboardChannel is the per-tenant pubsub topic carrying conversation
// snapshots for the agent dashboard.
func DashboardChannel(tenantID string) string {
	return fmt.Sprintf("tenant:%s:dashboard", tenantID)
}
