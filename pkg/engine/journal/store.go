// Package journal records bus events to durable storage.
//
// A Recorder subscribes to chosen event kinds and appends each event as a
// Record to a Store. MemoryStore suits tests. SQLiteStore and BoltStore
// persist to a file.
package journal

import (
	"context"
	"errors"
	"time"
)

// Store persists journal records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores rec and returns the sequence number assigned to it.
	// The store ignores rec.Seq. Sequence numbers start at 1 and increase
	// by one per append.
	Append(ctx context.Context, rec Record) (int64, error)

	// List returns records matching q ordered by sequence.
	// Returns an empty slice (not error) when nothing matches.
	List(ctx context.Context, q Query) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources (connections, files).
	// Closing more than once is safe.
	Close() error
}

// Record is one journaled event.
type Record struct {
	Seq       int64
	EventID   string
	Kind      string
	Source    string
	Timestamp time.Time
	// Payload is the JSON encoding of the event.
	Payload []byte
}

// Query selects records from a Store.
type Query struct {
	// Kind keeps only records of this kind. Empty keeps all.
	Kind string
	// AfterSeq keeps only records with a larger sequence number.
	AfterSeq int64
	// Limit caps the number of records returned, oldest first. Zero means no cap.
	Limit int
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("journal store closed")
