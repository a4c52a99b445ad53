package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreBlocksAtCapacity(t *testing.T) {
	s := NewSemaphore(2)
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx))
	require.NoError(t, s.Acquire(ctx))

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Acquire(blocked), context.DeadlineExceeded)

	s.Release()
	require.NoError(t, s.Acquire(ctx))
}

func TestSemaphoreRespectsCancelledContext(t *testing.T) {
	s := NewSemaphore(1)
	require.NoError(t, s.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Acquire(ctx), context.Canceled)
}

func TestSemaphoreMinimumCapacity(t *testing.T) {
	s := NewSemaphore(0)
	require.NoError(t, s.Acquire(context.Background()))
	s.Release()
}
