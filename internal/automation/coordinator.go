package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidforge/internal/generate"
	"vidforge/internal/schedule"
	"vidforge/internal/store"
	"vidforge/internal/tzclock"
	logx "vidforge/pkg/logx"
)

// Coordinator executes one automated run for a channel: acquire the run lock,
// check job capacity, generate an idea and a render prompt, persist the job,
// then commit the run bookkeeping. Any failure after the lock is taken reverts
// to the pre-run state (lock released, last_run_at untouched).
type Coordinator struct {
	Channels ChannelStore
	Jobs     JobStore
	Ideas    generate.IdeaGenerator
	Prompts  generate.PromptGenerator
	Notifier Notifier
	Eval     schedule.Evaluator

	// IdeaBatchSize is how many candidates to request per attempt.
	IdeaBatchSize int

	Log logx.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) notify(chatID int64, text string) {
	if c.Notifier != nil {
		c.Notifier.Notify(chatID, text)
	}
}

// RunNow triggers a run immediately, bypassing the schedule. The channel must
// exist, be enabled, and not be mid-run; those checks happen before any state
// is mutated so a rejected trigger leaves no trace.
func (c *Coordinator) RunNow(ctx context.Context, channelID string) (*store.Job, error) {
	ch, err := c.Channels.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ch.Enabled {
		return nil, ErrChannelDisabled
	}
	if ch.IsRunning {
		return nil, store.ErrAlreadyRunning
	}
	return c.Run(ctx, ch)
}

// Run performs the full pipeline for one channel. A nil job with a nil error
// means the run was skipped (capacity ceiling reached). The lock acquired here
// is released on every path: CommitRun on success, revert on failure, UnlockRun
// on skip.
func (c *Coordinator) Run(ctx context.Context, ch store.Channel) (*store.Job, error) {
	runID := uuid.NewString()
	log := c.Log.With(
		logx.String("channel_id", ch.ID),
		logx.String("channel", ch.Name),
		logx.String("run_id", runID),
	)

	if err := c.Channels.TryLockRun(ctx, ch.ID, runID); err != nil {
		return nil, err
	}
	log.Info("run started")

	active, err := c.Jobs.CountActiveJobs(ctx, ch.ID)
	if err != nil {
		return nil, c.revert(ctx, ch, log, "count active jobs", err)
	}
	if active >= ch.MaxActiveTasks {
		// Not a failure: the channel is saturated, try again next slot.
		// last_run_at stays put so the slot is retried on the next tick.
		if uerr := c.Channels.UnlockRun(ctx, ch.ID); uerr != nil {
			log.Error("unlock after capacity skip failed", logx.Err(uerr))
		}
		log.Info("run skipped at capacity",
			logx.Int("active", active), logx.Int("max", ch.MaxActiveTasks))
		return nil, nil
	}

	idea, err := c.pickIdea(ctx, ch)
	if err != nil {
		return nil, c.revert(ctx, ch, log, "idea selection", err)
	}

	prompt, err := c.Prompts.GeneratePrompt(ctx, channelContext(ch), idea)
	if err != nil {
		return nil, c.revert(ctx, ch, log, "prompt generation", err)
	}

	job, err := c.Jobs.CreateJob(ctx, store.Job{
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		Prompt:      prompt.RenderPrompt,
		IdeaText:    ideaText(idea),
		Title:       prompt.DisplayTitle,
		Status:      store.JobStatusPending,
		AutoCreated: true,
	})
	if err != nil {
		return nil, c.revert(ctx, ch, log, "job creation", err)
	}

	startedAt := c.now()
	next, _ := c.Eval.NextRun(specFor(ch, startedAt), startedAt)
	if err := c.Channels.CommitRun(ctx, ch.ID, startedAt, next); err != nil {
		return nil, c.revert(ctx, ch, log, "commit run", err)
	}

	log.Info("run completed",
		logx.String("job_id", job.ID),
		logx.String("title", job.Title),
		logx.Time("next_run_at", next),
	)
	loc, lerr := tzclock.Load(ch.Timezone)
	if lerr != nil {
		loc = tzclock.MustDefault()
	}
	c.notify(ch.ChatID, fmt.Sprintf("🎬 %s: queued %q (job %s) at %s",
		ch.Name, job.Title, job.ID, tzclock.Format(startedAt, loc)))
	return &job, nil
}

// revert rolls the channel back to its pre-run state after a failed step.
// The unlock is unconditional; if it also fails we log it and still surface
// the original error, since that is what the operator needs to see.
func (c *Coordinator) revert(ctx context.Context, ch store.Channel, log logx.Logger, step string, cause error) error {
	if uerr := c.Channels.UnlockRun(ctx, ch.ID); uerr != nil {
		log.Error("run lock release failed during revert", logx.Err(uerr))
	}
	log.Error("run failed", logx.String("step", step), logx.Err(cause))
	c.notify(ch.ChatID, fmt.Sprintf("⚠️ %s: automated run failed during %s: %v", ch.Name, step, cause))
	return fmt.Errorf("%s: %w", step, cause)
}

// pickIdea requests a batch of ideas and returns the first usable one. When
// the channel insists on fresh ideas, candidates matching any past job are
// filtered out; if nothing survives, one more batch is requested and taken
// as-is rather than failing the run on an over-aggressive filter.
func (c *Coordinator) pickIdea(ctx context.Context, ch store.Channel) (generate.Idea, error) {
	batch := c.IdeaBatchSize
	if batch <= 0 {
		batch = 5
	}

	var previous string
	var used []string
	history, err := c.Jobs.ListJobsByChannel(ctx, ch.ID)
	if err != nil {
		return generate.Idea{}, fmt.Errorf("load job history: %w", err)
	}
	for i, j := range history {
		if i == 0 {
			previous = j.IdeaText
		}
		if t := strings.TrimSpace(j.Title); t != "" {
			used = append(used, strings.ToLower(t))
		}
		if t := strings.TrimSpace(j.IdeaText); t != "" {
			used = append(used, strings.ToLower(t))
		}
	}

	ideas, err := c.Ideas.GenerateIdeas(ctx, channelContext(ch), previous, batch)
	if err != nil {
		return generate.Idea{}, err
	}
	if len(ideas) == 0 {
		return generate.Idea{}, errors.New("no ideas returned")
	}

	if !ch.UseOnlyFreshIdeas {
		return ideas[0], nil
	}
	for _, idea := range ideas {
		if isFresh(idea, used) {
			return idea, nil
		}
	}

	// Every candidate collided with history. Ask once more and accept the
	// result unfiltered.
	ideas, err = c.Ideas.GenerateIdeas(ctx, channelContext(ch), previous, batch)
	if err != nil {
		return generate.Idea{}, fmt.Errorf("fallback idea request: %w", err)
	}
	if len(ideas) == 0 {
		return generate.Idea{}, errors.New("no ideas available after fallback request")
	}
	return ideas[0], nil
}

// isFresh rejects an idea when its title or description and a past-job text
// contain each other in either direction, case-insensitively. Containment
// rather than equality catches retitled near-duplicates ("Top 5 X" vs
// "Top 5 X in 2025").
func isFresh(idea generate.Idea, used []string) bool {
	title := strings.ToLower(strings.TrimSpace(idea.Title))
	if title == "" {
		return false
	}
	texts := []string{title}
	if d := strings.ToLower(strings.TrimSpace(idea.Description)); d != "" {
		texts = append(texts, d)
	}
	for _, u := range used {
		for _, t := range texts {
			if strings.Contains(u, t) || strings.Contains(t, u) {
				return false
			}
		}
	}
	return true
}

func ideaText(idea generate.Idea) string {
	desc := strings.TrimSpace(idea.Description)
	if desc == "" {
		return idea.Title
	}
	return idea.Title + ": " + desc
}

func channelContext(ch store.Channel) generate.ChannelContext {
	return generate.ChannelContext{ID: ch.ID, Name: ch.Name, Context: ch.Context}
}

// specFor maps a channel row to a schedule spec. lastRun overrides the stored
// last_run_at when the caller is computing next_run_at for a run that just
// finished but is not committed yet.
func specFor(ch store.Channel, lastRun time.Time) schedule.Spec {
	sp := schedule.Spec{
		Enabled:    ch.Enabled,
		IsRunning:  ch.IsRunning,
		Times:      ch.Times,
		DaysOfWeek: ch.DaysOfWeek,
		Timezone:   ch.Timezone,
	}
	if !lastRun.IsZero() {
		sp.LastRunAt = lastRun
	} else if ch.LastRunAt.Valid {
		sp.LastRunAt = ch.LastRunAt.Time
	}
	return sp
}
