package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a concrete event variant. Dispatch matches kinds exactly.
type Kind string

// Event is the core interface for all events on the bus.
// Events are immutable once created; middleware that needs a different
// event returns a new value instead of modifying the one it received.
type Event interface {
	// ID is a unique identifier assigned at construction.
	ID() string

	// Kind names the concrete variant.
	Kind() Kind

	// Source optionally identifies the emitter.
	Source() string

	// Timestamp is the creation time. Valid events have a positive timestamp.
	Timestamp() time.Time
}

// Meta carries the fields shared by every event. Variants embed it.
type Meta struct {
	id        string
	source    string
	timestamp time.Time
}

// NewMeta stamps a new identity, the given source, and the current time.
func NewMeta(source string) Meta {
	return Meta{
		id:        uuid.NewString(),
		source:    source,
		timestamp: time.Now(),
	}
}

// NewMetaAt is NewMeta with an explicit timestamp, for replay and tests.
func NewMetaAt(source string, ts time.Time) Meta {
	m := NewMeta(source)
	m.timestamp = ts
	return m
}

// ID returns the unique event identifier.
func (m Meta) ID() string { return m.id }

// Source returns the event source.
func (m Meta) Source() string { return m.source }

// Timestamp returns when the event was created.
func (m Meta) Timestamp() time.Time { return m.timestamp }

// WithSource returns a copy of m with a different source and a fresh ID.
// Middleware uses it to derive replacement events.
func (m Meta) WithSource(source string) Meta {
	m.id = uuid.NewString()
	m.source = source
	return m
}
