package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Relay subscribes to the display events channel and feeds every message into the local hub.
type Relay struct {
	client  *redis.Client
	channel string
	hub     LocalHub
}

func NewRelay(client *redis.Client, hub LocalHub) *Relay {
	return &Relay{client: client, channel: ChannelDisplayEvents, hub: hub}
}

// Name identifies the relay in worker logs.
func (r *Relay) Name() string { return "event-relay" }

// Run blocks until ctx is cancelled or the subscription breaks.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to redis: %w", err)
	}
	log.Printf("[Relay] Subscribed: channel=%s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[Relay] unmarshal error on channel %s: %v", r.channel, err)
				continue
			}
			r.hub.Publish(env.Event)
		}
	}
}
