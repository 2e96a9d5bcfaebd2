package registry

import (
	"fmt"
	"time"

	"github.com/srg/antscope/internal/profile"
	"github.com/srg/antscope/internal/transport"
)

// EventType marks a device lifecycle transition.
type EventType int

const (
	EventAdded EventType = iota
	EventUpdated
	EventOffline
	EventRemoved
	// EventRegistryOffline is sent once when the transport desynchronised and
	// the whole registry was torn down.
	EventRegistryOffline
)

var eventNames = map[EventType]string{
	EventAdded:           "added",
	EventUpdated:         "updated",
	EventOffline:         "offline",
	EventRemoved:         "removed",
	EventRegistryOffline: "registry_offline",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// MarshalText renders the event name in JSON output.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is one lifecycle notification. Decoder is nil for EventRegistryOffline.
type Event struct {
	Type    EventType           `json:"type"`
	ID      transport.ChannelID `json:"id"`
	Kind    profile.Kind        `json:"kind"`
	Decoder profile.Decoder     `json:"-"`
	Time    time.Time           `json:"time"`
}
