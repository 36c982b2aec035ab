package event

import (
	"encoding/json"
	"maps"
	"time"
)

// Built-in event kinds.
const (
	KindEngineInitialized Kind = "engine.initialized"
	KindEngineStarted     Kind = "engine.started"
	KindEnginePaused      Kind = "engine.paused"
	KindEngineResumed     Kind = "engine.resumed"
	KindEngineStopped     Kind = "engine.stopped"
	KindFrameCompleted    Kind = "engine.frame_completed"
	KindSystemFailed      Kind = "engine.system_failed"
	KindUIUpdate          Kind = "ui.update"
	KindPing              Kind = "ping"
)

// LifecycleEvent is implemented by the engine state notifications.
// It exists so history queries can select the whole family at once;
// subscriptions still name one concrete kind.
type LifecycleEvent interface {
	Event
	lifecycle()
}

// LifecycleKinds returns the kinds of every LifecycleEvent variant in
// state machine order.
func LifecycleKinds() []Kind {
	return []Kind{
		KindEngineInitialized,
		KindEngineStarted,
		KindEnginePaused,
		KindEngineResumed,
		KindEngineStopped,
	}
}

// EngineInitialized is published once the container has constructed
// every singleton.
type EngineInitialized struct {
	Meta
	Services int
}

// Kind implements Event.
func (EngineInitialized) Kind() Kind { return KindEngineInitialized }
func (EngineInitialized) lifecycle() {}

// EngineStarted is published when the update loop starts.
type EngineStarted struct {
	Meta
	TargetFPS float64
}

// Kind implements Event.
func (EngineStarted) Kind() Kind { return KindEngineStarted }
func (EngineStarted) lifecycle() {}

// EnginePaused is published when the engine pauses.
type EnginePaused struct {
	Meta
	Frame int64
}

// Kind implements Event.
func (EnginePaused) Kind() Kind { return KindEnginePaused }
func (EnginePaused) lifecycle() {}

// EngineResumed is published when a paused engine resumes.
type EngineResumed struct {
	Meta
	Frame int64
}

// Kind implements Event.
func (EngineResumed) Kind() Kind { return KindEngineResumed }
func (EngineResumed) lifecycle() {}

// EngineStopped is published after the loop and background tasks have exited.
type EngineStopped struct {
	Meta
	Frames int64
	Uptime time.Duration
}

// Kind implements Event.
func (EngineStopped) Kind() Kind { return KindEngineStopped }
func (EngineStopped) lifecycle() {}

// FrameCompleted is periodic frame telemetry.
type FrameCompleted struct {
	Meta
	Frame    int64
	Duration time.Duration
	FPS      float64
}

// Kind implements Event.
func (FrameCompleted) Kind() Kind { return KindFrameCompleted }

// SystemFailed reports a per-frame system that returned an error.
type SystemFailed struct {
	Meta
	System string
	Frame  int64
	Error  string
}

// Kind implements Event.
func (SystemFailed) Kind() Kind { return KindSystemFailed }

// Ping is a payload-free event for hosts and health checks.
type Ping struct {
	Meta
}

// NewPing creates a Ping from source.
func NewPing(source string) Ping {
	return Ping{Meta: NewMeta(source)}
}

// Kind implements Event.
func (Ping) Kind() Kind { return KindPing }

// UIUpdate asks a presentation layer to refresh a component.
type UIUpdate struct {
	Meta
	ComponentID string
	UpdateType  string
	data        map[string]any
}

// NewUIUpdate creates a UIUpdate. The data map is copied so later changes
// by the caller do not leak into the published event.
func NewUIUpdate(source, componentID, updateType string, data map[string]any) UIUpdate {
	return UIUpdate{
		Meta:        NewMeta(source),
		ComponentID: componentID,
		UpdateType:  updateType,
		data:        maps.Clone(data),
	}
}

// Kind implements Event.
func (UIUpdate) Kind() Kind { return KindUIUpdate }

// Data returns a copy of the update payload.
func (u UIUpdate) Data() map[string]any {
	return maps.Clone(u.data)
}

// MarshalJSON includes the unexported payload map.
func (u UIUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ComponentID string         `json:"component_id"`
		UpdateType  string         `json:"update_type"`
		Data        map[string]any `json:"data,omitempty"`
	}{u.ComponentID, u.UpdateType, u.data})
}
