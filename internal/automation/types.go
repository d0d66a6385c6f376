package automation

import (
	"context"
	"errors"
	"time"

	"vidforge/internal/store"
	logx "vidforge/pkg/logx"
)

// ErrChannelDisabled is returned by RunNow for channels with automation off.
var ErrChannelDisabled = errors.New("channel is disabled")

// ChannelStore is the slice of the persistence layer the automation core
// needs for channel state and the run lock.
type ChannelStore interface {
	GetChannel(ctx context.Context, id string) (store.Channel, error)
	ListEnabledChannels(ctx context.Context) ([]store.Channel, error)
	TryLockRun(ctx context.Context, id, runID string) error
	UnlockRun(ctx context.Context, id string) error
	CommitRun(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error
	ReleaseStaleLocks(ctx context.Context, maxAge time.Duration, log logx.Logger) (int64, error)
}

// JobStore covers job creation and the reads the capacity check and the
// fresh-idea filter depend on.
type JobStore interface {
	CreateJob(ctx context.Context, j store.Job) (store.Job, error)
	CountActiveJobs(ctx context.Context, channelID string) (int, error)
	ListJobsByChannel(ctx context.Context, channelID string) ([]store.Job, error)
}

// Notifier delivers best-effort status messages. Implementations must never
// block the caller; run outcomes do not depend on delivery.
type Notifier interface {
	Notify(chatID int64, text string)
}

// RunResult is the per-channel outcome of one tick.
type RunResult struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	JobID       string `json:"jobId,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TickSummary aggregates one scheduler pass over all enabled channels.
type TickSummary struct {
	Processed   int           `json:"processed"`
	JobsCreated int           `json:"jobsCreated"`
	Errors      int           `json:"errors"`
	Duration    time.Duration `json:"duration"`
	Results     []RunResult   `json:"results,omitempty"`
}
