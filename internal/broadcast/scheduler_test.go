package broadcast

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeai-booster/internal/domain"
)

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(_ context.Context) (*domain.BroadcastRun, error) {
	r.calls.Add(1)
	return &domain.BroadcastRun{}, nil
}

func TestScheduler_InitialRunAfterDelay(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, 20*time.Millisecond, zerolog.Nop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, int32(0), runner.calls.Load())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopBeforeFirstRun(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, time.Hour, zerolog.Nop())

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()

	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestScheduler_DoubleStart(t *testing.T) {
	s := NewScheduler(&countingRunner{}, time.Hour, time.Hour, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_CancelledContextSkipsRun(t *testing.T) {
	runner := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(runner, time.Hour, 0, zerolog.Nop())
	require.NoError(t, s.Start(ctx))
	s.Stop()

	assert.Equal(t, int32(0), runner.calls.Load())
}
