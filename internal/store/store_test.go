package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "vidforge/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "vidforge.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChannel(id string) Channel {
	return Channel{
		ID:             id,
		Name:           "Daily Shorts",
		Context:        "bite-size science explainers",
		Enabled:        true,
		Times:          StringList{"10:00"},
		DaysOfWeek:     StringList{"Mon", "Wed"},
		Timezone:       "Asia/Jakarta",
		MaxActiveTasks: 2,
	}
}

func TestChannelRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateChannel(ctx, testChannel("ch1"))
	require.NoError(t, err)

	got, err := s.GetChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "Daily Shorts", got.Name)
	assert.Equal(t, StringList{"10:00"}, got.Times)
	assert.Equal(t, StringList{"Mon", "Wed"}, got.DaysOfWeek)
	assert.True(t, got.Enabled)
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.RunID)
	assert.False(t, got.LastRunAt.Valid)

	_, err = s.GetChannel(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEnabledChannels(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		ch := testChannel(id)
		if id == "c" {
			ch.Enabled = false
		}
		_, err := s.CreateChannel(ctx, ch)
		require.NoError(t, err)
	}

	got, err := s.ListEnabledChannels(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestUpdateChannelFields(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateChannel(ctx, testChannel("ch1"))
	require.NoError(t, err)

	name := "Renamed"
	times := StringList{"08:00", "20:00"}
	require.NoError(t, s.UpdateChannelFields(ctx, "ch1", ChannelPatch{
		Name:  &name,
		Times: &times,
	}))

	got, err := s.GetChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, times, got.Times)
	// untouched fields survive the patch
	assert.Equal(t, StringList{"Mon", "Wed"}, got.DaysOfWeek)
	assert.True(t, got.Enabled)

	assert.ErrorIs(t, s.UpdateChannelFields(ctx, "missing", ChannelPatch{Name: &name}), ErrNotFound)
	// empty patch is a no-op, not an error
	assert.NoError(t, s.UpdateChannelFields(ctx, "ch1", ChannelPatch{}))
}

func TestRunLock(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateChannel(ctx, testChannel("ch1"))
	require.NoError(t, err)

	require.NoError(t, s.TryLockRun(ctx, "ch1", "run-1"))

	got, err := s.GetChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.True(t, got.IsRunning)
	require.NotNil(t, got.RunID)
	assert.Equal(t, "run-1", *got.RunID)

	// second claim loses without mutating the holder
	err = s.TryLockRun(ctx, "ch1", "run-2")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	got, err = s.GetChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", *got.RunID)

	assert.ErrorIs(t, s.TryLockRun(ctx, "missing", "run-3"), ErrNotFound)

	require.NoError(t, s.UnlockRun(ctx, "ch1"))
	got, err = s.GetChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.RunID)

	require.NoError(t, s.TryLockRun(ctx, "ch1", "run-2"))
}

func TestCommitRun(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateChannel(ctx, testChannel("ch1"))
	require.NoError(t, err)
	require.NoError(t, s.TryLockRun(ctx, "ch1", "run-1"))

	last := time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC)
	next := time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC)
	require.NoError(t, s.CommitRun(ctx, "ch1", last, next))

	got, err := s.GetChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.RunID)
	require.True(t, got.LastRunAt.Valid)
	assert.True(t, got.LastRunAt.Time.Equal(last))
	require.True(t, got.NextRunAt.Valid)
	assert.True(t, got.NextRunAt.Time.Equal(next))
}

func TestReleaseStaleLocks(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateChannel(ctx, testChannel("ch1"))
	require.NoError(t, err)
	require.NoError(t, s.TryLockRun(ctx, "ch1", "run-1"))

	// a fresh lock is not stale
	n, err := s.ReleaseStaleLocks(ctx, time.Hour, logx.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)

	// with a zero max age every held lock is stale
	n, err = s.ReleaseStaleLocks(ctx, -time.Second, logx.Nop())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.False(t, got.IsRunning)
}

func TestJobs(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateChannel(ctx, testChannel("ch1"))
	require.NoError(t, err)

	j1, err := s.CreateJob(ctx, Job{
		ChannelID:   "ch1",
		ChannelName: "Daily Shorts",
		Prompt:      "render prompt",
		IdeaText:    "Volcano lightning: how ash storms spark",
		Title:       "Volcano Lightning",
		AutoCreated: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, j1.ID)
	assert.Equal(t, JobStatusPending, j1.Status)

	got, err := s.GetJob(ctx, j1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Volcano Lightning", got.Title)
	assert.True(t, got.AutoCreated)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// active count tracks non-terminal statuses only
	n, err := s.CountActiveJobs(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done := JobStatusCompleted
	require.NoError(t, s.UpdateJobFields(ctx, j1.ID, JobPatch{Status: &done}))
	n, err = s.CountActiveJobs(ctx, "ch1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.CreateJob(ctx, Job{ChannelID: "ch1", Status: JobStatusRendering})
	require.NoError(t, err)
	_, err = s.CreateJob(ctx, Job{ChannelID: "ch1", Status: JobStatusFailed})
	require.NoError(t, err)
	n, err = s.CountActiveJobs(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.ListJobsByChannel(ctx, "ch1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
