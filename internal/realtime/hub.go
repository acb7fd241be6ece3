package realtime

import (
	"sync"
	"time"

	"signagehub/internal/clock"
	"signagehub/internal/logging"
)

// Observer is notified when subscriptions open and close.
type Observer interface {
	SubscriberAdded()
	SubscriberRemoved()
}

// Hub fans live-update events out to per-display subscribers. Delivery is
// best-effort and in-memory only; nothing is replayed to late subscribers.
//
// Callbacks may be invoked concurrently from Publish and from the subscription's
// heartbeat goroutine, so they must be safe for concurrent use, must not block
// and must not call back into the hub.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscription
	nextID uint64

	heartbeat time.Duration
	clock     clock.Clock
	logger    logging.Logger
	observer  Observer
}

type subscription struct {
	displayID string
	deliver   func(Event)
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

func WithObserver(o Observer) Option { return func(h *Hub) { h.observer = o } }

func WithClock(c clock.Clock) Option { return func(h *Hub) { h.clock = c } }

// NewHub creates a hub that sends a heartbeat to every subscription at the given interval.
func NewHub(heartbeat time.Duration, logger logging.Logger, opts ...Option) *Hub {
	h := &Hub{
		subs:      make(map[string]map[uint64]*subscription),
		heartbeat: heartbeat,
		clock:     clock.System(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers fn for displayID and immediately delivers a connected event.
// The returned function removes the subscription, stops its heartbeat and waits for
// the heartbeat goroutine to exit. It is safe to call more than once.
func (h *Hub) Subscribe(displayID string, fn func(Event)) (unsubscribe func()) {
	sub := &subscription{
		displayID: displayID,
		deliver:   fn,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	// connected goes out before registration so it is always the first event seen
	fn(Event{Type: EventConnected, DisplayID: displayID, At: h.clock.Now()})

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	set, ok := h.subs[displayID]
	if !ok {
		set = make(map[uint64]*subscription)
		h.subs[displayID] = set
	}
	set[id] = sub
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.SubscriberAdded()
	}
	h.logger.WithFields(logging.Fields{"display_id": displayID, "subscription": id}).Debug("stream subscribed")

	go h.runHeartbeat(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[displayID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(h.subs, displayID)
				}
			}
			h.mu.Unlock()

			close(sub.stop)
			<-sub.done

			if h.observer != nil {
				h.observer.SubscriberRemoved()
			}
			h.logger.WithFields(logging.Fields{"display_id": displayID, "subscription": id}).Debug("stream unsubscribed")
		})
	}
}

func (h *Hub) runHeartbeat(sub *subscription) {
	defer close(sub.done)
	if h.heartbeat <= 0 {
		<-sub.stop
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-sub.stop:
			return
		case <-ticker.C:
			sub.deliver(Event{Type: EventHeartbeat, DisplayID: sub.displayID, At: h.clock.Now()})
		}
	}
}

// Publish delivers e to every current subscriber of e.DisplayID. An event without
// a display id is broadcast.
func (h *Hub) Publish(e Event) {
	if e.DisplayID == "" {
		h.Broadcast(e)
		return
	}
	if e.At.IsZero() {
		e.At = h.clock.Now()
	}

	h.mu.RLock()
	targets := make([]func(Event), 0, len(h.subs[e.DisplayID]))
	for _, sub := range h.subs[e.DisplayID] {
		targets = append(targets, sub.deliver)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(e)
	}
}

// Broadcast delivers e to every subscriber of every display, stamping each copy
// with the receiving display's id.
func (h *Hub) Broadcast(e Event) {
	if e.At.IsZero() {
		e.At = h.clock.Now()
	}

	type target struct {
		displayID string
		fn        func(Event)
	}
	h.mu.RLock()
	var targets []target
	for displayID, set := range h.subs {
		for _, sub := range set {
			targets = append(targets, target{displayID, sub.deliver})
		}
	}
	h.mu.RUnlock()

	for _, t := range targets {
		ev := e
		ev.DisplayID = t.displayID
		t.fn(ev)
	}
}

// SubscriberCount returns the number of open subscriptions for a display.
func (h *Hub) SubscriberCount(displayID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[displayID])
}

// DisplayCount returns how many displays have at least one subscriber.
func (h *Hub) DisplayCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
