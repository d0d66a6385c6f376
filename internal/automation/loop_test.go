package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidforge/internal/generate"
	logx "vidforge/pkg/logx"
)

func newLoop(t *testing.T, coord *Coordinator) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Enabled:         true,
		Interval:        time.Minute,
		DueWindow:       6 * time.Minute,
		DefaultTimezone: "Asia/Jakarta",
	}, coord, logx.Nop())
	require.NoError(t, err)
	return svc
}

func TestConfigNormalize(t *testing.T) {
	t.Parallel()

	var cfg Config
	require.NoError(t, cfg.normalize())
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 6*time.Minute, cfg.DueWindow)
	assert.Equal(t, time.Hour, cfg.StaleLockAge)

	bad := Config{Interval: 10 * time.Minute, DueWindow: 5 * time.Minute}
	assert.Error(t, bad.normalize(), "window not exceeding the interval must be rejected")
}

func TestTickRunsDueChannels(t *testing.T) {
	t.Parallel()
	due1 := enabledChannel("ch1")
	due2 := enabledChannel("ch2")
	notDue := enabledChannel("ch3")
	notDue.Times = []string{"18:00"}
	ms := newMemStore(due1, due2, notDue)
	gen := &fakeGen{}
	svc := newLoop(t, newCoordinator(ms, gen, &recordingNotifier{}))

	sum := svc.Tick(context.Background())
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.JobsCreated)
	assert.Zero(t, sum.Errors)
	require.Len(t, sum.Results, 2)
	for _, res := range sum.Results {
		assert.NotEmpty(t, res.JobID)
		assert.Empty(t, res.Error)
	}

	// each due channel got exactly one job and released its lock
	for _, id := range []string{"ch1", "ch2"} {
		ch := ms.channel(t, id)
		assert.False(t, ch.IsRunning)
		assert.True(t, ch.LastRunAt.Valid)
	}
	assert.False(t, ms.channel(t, "ch3").LastRunAt.Valid)
}

func TestTickIsolatesFailures(t *testing.T) {
	t.Parallel()
	ms := newMemStore(enabledChannel("a"), enabledChannel("b"), enabledChannel("c"))
	gen := &fakeGen{
		failIdeasFor: map[string]error{"Channel b": errors.New("quota exhausted")},
	}
	svc := newLoop(t, newCoordinator(ms, gen, &recordingNotifier{}))

	sum := svc.Tick(context.Background())
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 2, sum.JobsCreated)
	assert.Equal(t, 1, sum.Errors)
	require.Len(t, sum.Results, 3)

	byID := map[string]RunResult{}
	for _, res := range sum.Results {
		byID[res.ChannelID] = res
	}
	assert.NotEmpty(t, byID["a"].JobID)
	assert.NotEmpty(t, byID["c"].JobID)
	assert.Contains(t, byID["b"].Error, "quota exhausted")

	// the failed channel is back to a runnable state
	ch := ms.channel(t, "b")
	assert.False(t, ch.IsRunning)
	assert.False(t, ch.LastRunAt.Valid)
}

func TestTickSkipsRunningChannel(t *testing.T) {
	t.Parallel()
	running := enabledChannel("ch1")
	running.IsRunning = true
	rid := "r1"
	running.RunID = &rid
	ms := newMemStore(running)
	svc := newLoop(t, newCoordinator(ms, &fakeGen{}, &recordingNotifier{}))

	sum := svc.Tick(context.Background())
	assert.Zero(t, sum.Processed, "running channel is not due")
	assert.Empty(t, sum.Results)
}

func TestTickSecondPassSuppressed(t *testing.T) {
	t.Parallel()
	ms := newMemStore(enabledChannel("ch1"))
	gen := &fakeGen{batches: [][]generate.Idea{
		{{Title: "First"}},
		{{Title: "Second"}},
	}}
	svc := newLoop(t, newCoordinator(ms, gen, &recordingNotifier{}))
	ctx := context.Background()

	first := svc.Tick(ctx)
	assert.Equal(t, 1, first.JobsCreated)

	// same slot, one polling period later: last_run_at suppresses the rerun
	second := svc.Tick(ctx)
	assert.Zero(t, second.Processed)
	assert.Zero(t, second.JobsCreated)
}
