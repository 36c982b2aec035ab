package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/rpgengine/pkg/engine/event"
	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
)

// NewRecord converts evt into a Record with a JSON payload.
func NewRecord(evt event.Event) (Record, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s event: %w", evt.Kind(), err)
	}
	return Record{
		EventID:   evt.ID(),
		Kind:      string(evt.Kind()),
		Source:    evt.Source(),
		Timestamp: evt.Timestamp(),
		Payload:   payload,
	}, nil
}

// Recorder is an event.Handler that appends every event it receives to a
// Store. Failed appends are retried per its RetryConfig; a final failure is
// returned to the bus, which logs and counts it like any other handler
// failure.
type Recorder struct {
	store  Store
	logger *slog.Logger
	retry  RetryConfig
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRetry sets the append retry policy.
// Default: DefaultRetry
func WithRetry(cfg RetryConfig) RecorderOption {
	return func(r *Recorder) {
		r.retry = cfg
	}
}

// NewRecorder creates a recorder writing to store. A nil logger uses
// slog.Default().
func NewRecorder(store Store, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  store,
		logger: observability.EnrichLogger(logger, "journal"),
		retry:  DefaultRetry,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle implements event.Handler.
func (r *Recorder) Handle(ctx context.Context, evt event.Event) error {
	rec, err := NewRecord(evt)
	if err != nil {
		return err
	}
	seq, attempts, err := retryCall(ctx, r.retry, func(ctx context.Context) (int64, error) {
		return r.store.Append(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("journal %s: %w", evt.Kind(), err)
	}
	r.logger.Debug("event journaled",
		slog.String("kind", rec.Kind),
		slog.Int64("seq", seq),
		slog.Int("attempts", attempts),
	)
	return nil
}

// Attach subscribes the recorder to each kind on bus and returns a function
// that removes those subscriptions.
func (r *Recorder) Attach(bus *event.Bus, kinds ...event.Kind) (detach func()) {
	subs := make([]*event.Subscription, 0, len(kinds))
	for _, kind := range kinds {
		subs = append(subs, bus.Subscribe(kind, r))
	}
	return func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
}
