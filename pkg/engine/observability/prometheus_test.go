package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_RecordPublish(t *testing.T) {
	m, err := NewPrometheusMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordPublish(ctx, "ping", 3, time.Millisecond, nil)
	m.RecordPublish(ctx, "ping", 2, time.Millisecond, nil)
	m.RecordPublish(ctx, "ping", 0, time.Millisecond, errors.New("rejected"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("ping")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.eventsHandled.WithLabelValues("ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventErrors.WithLabelValues("ping")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.publishDuration))
}

func TestPrometheusMetrics_RecordHandlerError(t *testing.T) {
	m, err := NewPrometheusMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordHandlerError(context.Background(), "system_failed")
	m.RecordHandlerError(context.Background(), "system_failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventErrors.WithLabelValues("system_failed")))
}

func TestPrometheusMetrics_RecordFrame(t *testing.T) {
	m, err := NewPrometheusMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordFrame(ctx, 2*time.Millisecond, 0)
	m.RecordFrame(ctx, 3*time.Millisecond, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.systemErrors))
}

func TestPrometheusMetrics_RecordServiceConstruction(t *testing.T) {
	m, err := NewPrometheusMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordServiceConstruction(ctx, "db", time.Millisecond, nil)
	m.RecordServiceConstruction(ctx, "db", time.Millisecond, errors.New("boom"))
	m.RecordServiceConstruction(ctx, "db", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.constructions.WithLabelValues("db", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.constructions.WithLabelValues("db", "false")))
}

func TestPrometheusMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	_, err = NewPrometheusMetrics(reg)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}

func TestPrometheusMetrics_Gather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	m.RecordFrame(context.Background(), time.Millisecond, 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "rpgengine_loop_frames_total")
	assert.Contains(t, names, "rpgengine_loop_frame_duration_seconds")
}
