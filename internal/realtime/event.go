package realtime

import (
	"encoding/json"
	"time"
)

// EventType names a live-update notification.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventHeartbeat       EventType = "heartbeat"
	EventManifestUpdated EventType = "manifest_updated"
	EventScheduleUpdated EventType = "schedule_updated"
	EventPlaylistUpdated EventType = "playlist_updated"
	EventRefresh         EventType = "refresh_requested"
	EventSettingsUpdated EventType = "settings_updated"
)

// ValidAdminEvent reports whether t may be injected through the admin events endpoint.
func ValidAdminEvent(t EventType) bool {
	switch t {
	case EventManifestUpdated, EventScheduleUpdated, EventPlaylistUpdated, EventRefresh, EventSettingsUpdated:
		return true
	}
	return false
}

// Event is a single notification. An empty DisplayID addresses every display.
type Event struct {
	Type      EventType       `json:"type"`
	DisplayID string          `json:"displayId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	At        time.Time       `json:"at"`
}

// NewEvent builds an event with its payload marshalled. A nil payload produces no data.
func NewEvent(t EventType, displayID string, payload any, at time.Time) Event {
	e := Event{Type: t, DisplayID: displayID, At: at}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			e.Data = raw
		}
	}
	return e
}
