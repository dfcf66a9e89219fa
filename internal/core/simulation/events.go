package simulation

import (
	"github.com/zeusync/kinesim/internal/core/agent"
	"github.com/zeusync/kinesim/internal/core/collision"
	"github.com/zeusync/kinesim/internal/core/events/bus"
	"github.com/zeusync/kinesim/internal/core/sensors"
)

const (
	EventTick            = "tick"
	EventCollision       = "collision"
	EventEpisodeFinished = "episode.finished"
)

// TickFrame is the payload of EventTick.
type TickFrame struct {
	Episode  string              `json:"episode"`
	Tick     int                 `json:"tick"`
	State    agent.State         `json:"state"`
	Mode     string              `json:"mode"`
	Readings []sensors.Reading   `json:"readings"`
	Contacts []collision.Contact `json:"contacts,omitempty"`
}

// CollisionFrame is the payload of EventCollision.
type CollisionFrame struct {
	Episode  string              `json:"episode"`
	Tick     int                 `json:"tick"`
	Mode     string              `json:"mode"`
	Contacts []collision.Contact `json:"contacts"`
}

func publish(b bus.EventBus, episode, typ string, data any) error {
	if b == nil {
		return nil
	}
	return b.Publish(bus.NewEvent(typ, "simulation", data, map[string]any{"episode": episode}))
}
