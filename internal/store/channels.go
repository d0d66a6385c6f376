package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	logx "vidforge/pkg/logx"
)

const channelColumns = `id, name, context, chat_id, enabled, times, days_of_week, timezone,
	last_run_at, next_run_at, is_running, run_id, max_active_tasks,
	use_only_fresh_ideas, auto_approve_upload, created_at, updated_at`

// CreateChannel inserts a new channel row. Schedule fields may be empty;
// the channel is never due until it is enabled with a usable schedule.
func (s *Store) CreateChannel(ctx context.Context, ch Channel) (Channel, error) {
	if strings.TrimSpace(ch.ID) == "" {
		return Channel{}, errors.New("channel id is required")
	}
	if ch.MaxActiveTasks <= 0 {
		ch.MaxActiveTasks = 1
	}
	now := nowMillis()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels(`+channelColumns+`)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ch.ID, ch.Name, ch.Context, ch.ChatID, ch.Enabled, ch.Times, ch.DaysOfWeek, ch.Timezone,
		ch.LastRunAt, ch.NextRunAt, ch.IsRunning, ch.RunID, ch.MaxActiveTasks,
		ch.UseOnlyFreshIdeas, ch.AutoApproveUpload, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return Channel{}, err
	}
	return ch, nil
}

// GetChannel returns the channel or ErrNotFound.
func (s *Store) GetChannel(ctx context.Context, id string) (Channel, error) {
	var ch Channel
	err := s.db.GetContext(ctx, &ch,
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, err
	}
	return ch, nil
}

// ListEnabledChannels returns all channels with automation enabled, in stable
// id order so tick summaries are deterministic.
func (s *Store) ListEnabledChannels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+channelColumns+` FROM channels WHERE enabled = 1 ORDER BY id`)
	return out, err
}

// ListChannels returns every channel.
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+channelColumns+` FROM channels ORDER BY id`)
	return out, err
}

// UpdateChannelFields applies a field-level partial update. Fields left nil
// in the patch are not touched. Returns ErrNotFound for unknown ids.
func (s *Store) UpdateChannelFields(ctx context.Context, id string, p ChannelPatch) error {
	sets := make([]string, 0, 12)
	args := make([]any, 0, 13)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Context != nil {
		add("context", *p.Context)
	}
	if p.ChatID != nil {
		add("chat_id", *p.ChatID)
	}
	if p.Enabled != nil {
		add("enabled", *p.Enabled)
	}
	if p.Times != nil {
		add("times", *p.Times)
	}
	if p.DaysOfWeek != nil {
		add("days_of_week", *p.DaysOfWeek)
	}
	if p.Timezone != nil {
		add("timezone", *p.Timezone)
	}
	if p.LastRunAt != nil {
		add("last_run_at", *p.LastRunAt)
	}
	if p.NextRunAt != nil {
		add("next_run_at", *p.NextRunAt)
	}
	if p.MaxActiveTasks != nil {
		add("max_active_tasks", *p.MaxActiveTasks)
	}
	if p.UseOnlyFreshIdeas != nil {
		add("use_only_fresh_ideas", *p.UseOnlyFreshIdeas)
	}
	if p.AutoApproveUpload != nil {
		add("auto_approve_upload", *p.AutoApproveUpload)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", nowMillis())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return mustAffectOne(res, ErrNotFound)
}

// TryLockRun acquires the channel's run lock by flipping is_running only when
// it is currently clear. The conditional write is the linearization point for
// concurrent triggers: exactly one caller wins, everyone else gets
// ErrAlreadyRunning without mutating anything.
func (s *Store) TryLockRun(ctx context.Context, id, runID string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET is_running = 1, run_id = ?, updated_at = ?
		 WHERE id = ? AND is_running = 0`,
		runID, nowMillis(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Distinguish "missing" from "locked".
	if _, gerr := s.GetChannel(ctx, id); gerr != nil {
		return gerr
	}
	return ErrAlreadyRunning
}

// UnlockRun releases the run lock unconditionally. Used on every failure path
// and on capacity skips so the lock can never outlive its run.
func (s *Store) UnlockRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET is_running = 0, run_id = NULL, updated_at = ?
		 WHERE id = ?`,
		nowMillis(), id)
	if err != nil {
		return err
	}
	return mustAffectOne(res, ErrNotFound)
}

// CommitRun finishes a successful run: advances the run bookkeeping and
// releases the lock in one write.
func (s *Store) CommitRun(ctx context.Context, id string, lastRunAt time.Time, nextRunAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET last_run_at = ?, next_run_at = ?, is_running = 0, run_id = NULL, updated_at = ?
		 WHERE id = ?`,
		Millis(lastRunAt), Millis(nextRunAt), nowMillis(), id)
	if err != nil {
		return err
	}
	return mustAffectOne(res, ErrNotFound)
}

// ReleaseStaleLocks clears run locks older than maxAge. A crashed process can
// leave is_running set; without this sweep those channels would never run
// again. Called from the scheduler loop before each tick.
func (s *Store) ReleaseStaleLocks(ctx context.Context, maxAge time.Duration, log logx.Logger) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET is_running = 0, run_id = NULL
		 WHERE is_running = 1 AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 && !log.IsZero() {
		log.Warn("released stale run locks", logx.Int64("count", n))
	}
	return n, nil
}

func mustAffectOne(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
