package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateJob inserts a new pending render job and returns it with its id set.
func (s *Store) CreateJob(ctx context.Context, j Job) (Job, error) {
	if strings.TrimSpace(j.ChannelID) == "" {
		return Job{}, errors.New("job channel id is required")
	}
	if strings.TrimSpace(j.ID) == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	now := nowMillis()
	j.CreatedAt = now
	j.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(id, channel_id, channel_name, prompt, idea_text, title, status, auto_created, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.ChannelID, j.ChannelName, j.Prompt, j.IdeaText, j.Title, j.Status, j.AutoCreated, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	return j, nil
}

// GetJob returns the job or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	var j Job
	err := s.db.GetContext(ctx, &j, `SELECT * FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return j, nil
}

// UpdateJobFields applies a field-level partial update to a job row.
func (s *Store) UpdateJobFields(ctx context.Context, id string, p JobPatch) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.AutoCreated != nil {
		add("auto_created", *p.AutoCreated)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", nowMillis())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return mustAffectOne(res, ErrNotFound)
}

// CountActiveJobs counts this channel's jobs in a non-terminal status.
func (s *Store) CountActiveJobs(ctx context.Context, channelID string) (int, error) {
	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM jobs WHERE channel_id = ? AND status IN (?)`,
		channelID, activeStatuses)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

// ListJobsByChannel returns all jobs ever created for a channel, newest
// first. Used to derive the set of already-used ideas.
func (s *Store) ListJobsByChannel(ctx context.Context, channelID string) ([]Job, error) {
	var out []Job
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM jobs WHERE channel_id = ? ORDER BY created_at DESC`, channelID)
	return out, err
}

// ListJobs returns every job, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	var out []Job
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM jobs ORDER BY created_at DESC`)
	return out, err
}
