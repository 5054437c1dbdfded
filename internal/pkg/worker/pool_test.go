package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	assert := assert.New(t)

	p := NewPool("test", 3, 16)
	p.Start()

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func(context.Context) { n.Add(1) }))
	}
	assert.NoError(p.Stop(context.Background()))
	assert.Equal(int32(10), n.Load())
}

func TestPoolQueueFull(t *testing.T) {
	assert := assert.New(t)

	p := NewPool("test", 1, 1)
	p.Start()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func(context.Context) {
		close(started)
		<-block
	}))
	<-started

	assert.NoError(p.Submit(func(context.Context) {}))
	assert.ErrorIs(p.Submit(func(context.Context) {}), ErrQueueFull)
	assert.Equal(1, p.Pending())

	close(block)
	assert.NoError(p.Stop(context.Background()))
	assert.ErrorIs(p.Submit(func(context.Context) {}), ErrPoolStopped)
}

func TestPoolRecoversPanic(t *testing.T) {
	p := NewPool("test", 1, 4)
	p.Start()

	var ran atomic.Bool
	require.NoError(t, p.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(func(context.Context) { ran.Store(true) }))
	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, ran.Load())
}

func TestPoolStopDeadlineCancelsTasks(t *testing.T) {
	assert := assert.New(t)

	p := NewPool("test", 1, 1)
	p.Start()

	var cancelled atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) {
		<-ctx.Done()
		cancelled.Store(true)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(p.Stop(ctx), context.DeadlineExceeded)
	assert.True(cancelled.Load())
}
