package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a JSON-encoded TEXT column holding an ordered string slice.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	default:
		return fmt.Errorf("StringList: unsupported source type %T", src)
	}
}

// NullMillis is a nullable INTEGER column holding an instant as epoch
// milliseconds (UTC).
type NullMillis struct {
	Time  time.Time
	Valid bool
}

func Millis(t time.Time) NullMillis {
	if t.IsZero() {
		return NullMillis{}
	}
	return NullMillis{Time: t, Valid: true}
}

func (m NullMillis) Value() (driver.Value, error) {
	if !m.Valid {
		return nil, nil
	}
	return m.Time.UnixMilli(), nil
}

func (m *NullMillis) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = NullMillis{}
		return nil
	case int64:
		*m = NullMillis{Time: time.UnixMilli(v).UTC(), Valid: true}
		return nil
	default:
		return fmt.Errorf("NullMillis: unsupported source type %T", src)
	}
}

// MarshalJSON renders the instant as epoch milliseconds, or null when unset,
// matching the on-disk representation.
func (m NullMillis) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Time.UnixMilli())
}

func (m *NullMillis) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = NullMillis{}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*m = NullMillis{Time: time.UnixMilli(ms).UTC(), Valid: true}
	return nil
}

// Channel is one content channel plus its automation schedule state.
//
// Run-lock invariant: IsRunning is true iff RunID is non-empty. The pair is
// only mutated through TryLockRun / UnlockRun / CommitRun so the invariant
// holds across process restarts and concurrent triggers.
type Channel struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Context string `db:"context" json:"context,omitempty"`
	ChatID  int64  `db:"chat_id" json:"chatId,omitempty"`

	Enabled    bool       `db:"enabled" json:"enabled"`
	Times      StringList `db:"times" json:"times"`
	DaysOfWeek StringList `db:"days_of_week" json:"daysOfWeek"`
	Timezone   string     `db:"timezone" json:"timezone"`

	LastRunAt NullMillis `db:"last_run_at" json:"lastRunAt"`
	NextRunAt NullMillis `db:"next_run_at" json:"nextRunAt"`
	IsRunning bool       `db:"is_running" json:"isRunning"`
	RunID     *string    `db:"run_id" json:"runId,omitempty"`

	MaxActiveTasks    int  `db:"max_active_tasks" json:"maxActiveTasks"`
	UseOnlyFreshIdeas bool `db:"use_only_fresh_ideas" json:"useOnlyFreshIdeas"`
	AutoApproveUpload bool `db:"auto_approve_upload" json:"autoApproveUpload"`

	CreatedAt int64 `db:"created_at" json:"createdAt"`
	UpdatedAt int64 `db:"updated_at" json:"updatedAt"`
}

// Job statuses. Everything before a terminal status counts against a
// channel's max_active_tasks ceiling.
const (
	JobStatusPending   = "pending"
	JobStatusRendering = "rendering"
	JobStatusUploading = "uploading"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// activeStatuses are the non-terminal job states.
var activeStatuses = []string{JobStatusPending, JobStatusRendering, JobStatusUploading}

// Job is one render/upload job created for a channel.
type Job struct {
	ID          string `db:"id" json:"id"`
	ChannelID   string `db:"channel_id" json:"channelId"`
	ChannelName string `db:"channel_name" json:"channelName"`
	Prompt      string `db:"prompt" json:"prompt"`
	IdeaText    string `db:"idea_text" json:"ideaText"`
	Title       string `db:"title" json:"title"`
	Status      string `db:"status" json:"status"`
	AutoCreated bool   `db:"auto_created" json:"autoCreated"`
	CreatedAt   int64  `db:"created_at" json:"createdAt"`
	UpdatedAt   int64  `db:"updated_at" json:"updatedAt"`
}

// ChannelPatch is a field-level partial update: only non-nil fields are
// written, so concurrent writers touching disjoint fields don't clobber
// each other.
type ChannelPatch struct {
	Name              *string
	Context           *string
	ChatID            *int64
	Enabled           *bool
	Times             *StringList
	DaysOfWeek        *StringList
	Timezone          *string
	LastRunAt         *NullMillis
	NextRunAt         *NullMillis
	MaxActiveTasks    *int
	UseOnlyFreshIdeas *bool
	AutoApproveUpload *bool
}

// JobPatch mirrors ChannelPatch for job rows.
type JobPatch struct {
	Status      *string
	AutoCreated *bool
	Title       *string
}
