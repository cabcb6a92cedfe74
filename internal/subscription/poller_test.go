package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChecker returns premium starting at call number premiumAt (1-based).
// premiumAt <= 0 never confirms.
type scriptedChecker struct {
	mu        sync.Mutex
	premiumAt int
	calls     int
}

func (c *scriptedChecker) IsPremium(_ context.Context, _ string) (bool, *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.premiumAt > 0 && c.calls >= c.premiumAt {
		exp := time.Unix(2_000_000_000, 0)
		return true, &exp
	}
	return false, nil
}

func (c *scriptedChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingAfter fires immediately and records requested waits.
type recordingAfter struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingAfter) after(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func neverAfter(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func waitTask(t *testing.T, task *Task) Result {
	t.Helper()
	select {
	case <-task.Done():
		return task.Result()
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not finish")
		return Result{}
	}
}

func TestPoller_ConfirmsOnThirdAttempt(t *testing.T) {
	checker := &scriptedChecker{premiumAt: 3}
	clock := &recordingAfter{}
	p := NewPoller(checker, PollerConfig{MaxAttempts: 10, Interval: 30 * time.Second}, zerolog.Nop(), WithAfter(clock.after))

	var got Result
	task := p.Start(context.Background(), testWallet, func(r Result) { got = r })
	res := waitTask(t, task)

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, 3, checker.count())
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second, 30 * time.Second}, clock.waits)
	assert.Equal(t, res, got, "callback sees the terminal result")
}

func TestPoller_TimesOut(t *testing.T) {
	checker := &scriptedChecker{}
	clock := &recordingAfter{}
	p := NewPoller(checker, PollerConfig{MaxAttempts: 10, Interval: time.Second}, zerolog.Nop(), WithAfter(clock.after))

	res := waitTask(t, p.Start(context.Background(), testWallet, nil))

	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, 10, res.Attempts)
	assert.Nil(t, res.ExpiresAt)
	assert.Equal(t, 10, checker.count())
	assert.Len(t, clock.waits, 10)
}

func TestPoller_Defaults(t *testing.T) {
	p := NewPoller(&scriptedChecker{}, PollerConfig{}, zerolog.Nop())
	assert.Equal(t, DefaultMaxAttempts, p.maxAttempts)
	assert.Equal(t, DefaultInterval, p.interval)
}

func TestPoller_StartDoesNotBlock(t *testing.T) {
	p := NewPoller(&scriptedChecker{}, PollerConfig{}, zerolog.Nop(), WithAfter(neverAfter))

	ctx, cancel := context.WithCancel(context.Background())
	task := p.Start(ctx, testWallet, nil)

	select {
	case <-task.Done():
		t.Fatal("task should still be polling")
	default:
	}

	cancel()
	res := waitTask(t, task)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 0, res.Attempts)
}

func TestPoller_OverlappingTasksIndependent(t *testing.T) {
	checker := &scriptedChecker{premiumAt: 1}
	clock := &recordingAfter{}
	p := NewPoller(checker, PollerConfig{MaxAttempts: 3, Interval: time.Second}, zerolog.Nop(), WithAfter(clock.after))

	a := p.Start(context.Background(), testWallet, nil)
	b := p.Start(context.Background(), testWallet, nil)

	assert.Equal(t, OutcomeConfirmed, waitTask(t, a).Outcome)
	assert.Equal(t, OutcomeConfirmed, waitTask(t, b).Outcome)
}

// chanWatcher hands out a test-controlled wake channel.
type chanWatcher struct {
	wake    chan struct{}
	stopped chan struct{}
	err     error
}

func (w *chanWatcher) Watch(_ context.Context, _ string) (<-chan struct{}, func(), error) {
	if w.err != nil {
		return nil, nil, w.err
	}
	return w.wake, func() { close(w.stopped) }, nil
}

func TestPoller_WakeTriggersImmediateAttempt(t *testing.T) {
	checker := &scriptedChecker{premiumAt: 1}
	watcher := &chanWatcher{wake: make(chan struct{}, 1), stopped: make(chan struct{})}
	watcher.wake <- struct{}{}

	p := NewPoller(checker, PollerConfig{MaxAttempts: 10, Interval: time.Hour}, zerolog.Nop(),
		WithAfter(neverAfter), WithWatcher(watcher))

	res := waitTask(t, p.Start(context.Background(), testWallet, nil))
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, 1, res.Attempts)

	select {
	case <-watcher.stopped:
	default:
		t.Error("watch not released after terminal state")
	}
}

func TestPoller_WakeCountsAgainstAttempts(t *testing.T) {
	checker := &scriptedChecker{}
	wake := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		wake <- struct{}{}
	}
	close(wake)
	watcher := &chanWatcher{wake: wake, stopped: make(chan struct{})}

	p := NewPoller(checker, PollerConfig{MaxAttempts: 3, Interval: time.Hour}, zerolog.Nop(),
		WithAfter(neverAfter), WithWatcher(watcher))

	res := waitTask(t, p.Start(context.Background(), testWallet, nil))
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, checker.count())
}

func TestPoller_WatchErrorFallsBackToPolling(t *testing.T) {
	checker := &scriptedChecker{premiumAt: 2}
	clock := &recordingAfter{}
	watcher := &chanWatcher{err: assert.AnError}

	p := NewPoller(checker, PollerConfig{MaxAttempts: 5, Interval: time.Second}, zerolog.Nop(),
		WithAfter(clock.after), WithWatcher(watcher))

	res := waitTask(t, p.Start(context.Background(), testWallet, nil))
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
}
