package queue

import (
	"signagehub/internal/realtime"
)

// ChannelDisplayEvents is the Redis pub/sub channel shared by every instance.
const ChannelDisplayEvents = "signagehub:display-events"

// Envelope is what travels over the relay channel. Origin identifies the
// publishing instance for logging; every instance, including the origin,
// delivers the event to its own hub on receipt.
type Envelope struct {
	Origin string         `json:"origin"`
	Event  realtime.Event `json:"event"`
}
