package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), 0))
	assert.True(t, sleep(context.Background(), -time.Second), "negative remainders do not wait")
	assert.True(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, 0))

	start := time.Now()
	assert.False(t, sleep(ctx, time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunSystem(t *testing.T) {
	frame := Frame{Number: 7}

	assert.Nil(t, runSystem(context.Background(), "ok", SystemFunc(func(context.Context, Frame) error {
		return nil
	}), frame))

	boom := errors.New("boom")
	serr := runSystem(context.Background(), "bad", SystemFunc(func(context.Context, Frame) error {
		return boom
	}), frame)
	require.NotNil(t, serr)
	assert.ErrorIs(t, serr, boom)
	assert.Equal(t, int64(7), serr.Frame)

	serr = runSystem(context.Background(), "panics", SystemFunc(func(context.Context, Frame) error {
		panic("oops")
	}), frame)
	require.NotNil(t, serr)
	assert.Equal(t, "oops", serr.Panic)
	assert.Equal(t, "system panics panicked at frame 7: oops", serr.Error())
}

func TestLoopErrorMessages(t *testing.T) {
	lerr := &LoopError{Frame: 3, Err: errors.New("sink down")}
	assert.Equal(t, "update loop failed at frame 3: sink down", lerr.Error())
	assert.ErrorIs(t, lerr, ErrLoopFailed)

	lerr = &LoopError{Frame: 4, Panic: "nil map"}
	assert.Equal(t, "update loop panicked at frame 4: nil map", lerr.Error())
	assert.Nil(t, lerr.Unwrap())
}

func TestRunTaskRecoversPanics(t *testing.T) {
	err := runTask(context.Background(), func(context.Context) error {
		panic("bad")
	})
	assert.EqualError(t, err, "panicked: bad")
}
