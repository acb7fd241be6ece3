package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"signagehub/internal/realtime"
)

// Publisher hands an event to the live-update channel.
type Publisher interface {
	Publish(ctx context.Context, event realtime.Event) error
}

// LocalHub is the part of realtime.Hub the publishers need.
type LocalHub interface {
	Publish(e realtime.Event)
}

// LocalPublisher delivers straight into this process's hub. Used when Redis is not configured.
type LocalPublisher struct {
	hub LocalHub
}

func NewLocalPublisher(hub LocalHub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(_ context.Context, event realtime.Event) error {
	p.hub.Publish(event)
	return nil
}

// RedisPublisher sends events to the relay channel so displays connected to any
// instance are notified. The local hub receives the event back through the Relay.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	origin  string
	local   LocalHub
}

// NewRedisPublisher creates a publisher on ChannelDisplayEvents. If the Redis publish
// fails the event is still delivered to local subscribers.
func NewRedisPublisher(client *redis.Client, origin string, local LocalHub) *RedisPublisher {
	return &RedisPublisher{client: client, channel: ChannelDisplayEvents, origin: origin, local: local}
}

func (p *RedisPublisher) Publish(ctx context.Context, event realtime.Event) error {
	startTime := time.Now()

	payload, err := json.Marshal(Envelope{Origin: p.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.Printf("[Publisher] Publish FAILED: channel=%s type=%s display=%s err=%v",
			p.channel, event.Type, event.DisplayID, err)
		p.local.Publish(event)
		return fmt.Errorf("publish to redis: %w", err)
	}

	log.Printf("[Publisher] Publish OK: channel=%s type=%s display=%s duration=%v",
		p.channel, event.Type, event.DisplayID, time.Since(startTime))
	return nil
}
