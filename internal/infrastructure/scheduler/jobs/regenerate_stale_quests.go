// Package jobs contains the scheduled jobs of the quest engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/application/command"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/pkg/retry"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGENERATE STALE QUESTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ClassRefresher refreshes one class. Implemented by command.RefreshClassQuestsHandler.
type ClassRefresher interface {
	Handle(ctx context.Context, cmd command.RefreshClassQuestsCommand) (*command.RefreshClassQuestsResult, error)
}

// RegenerateStaleQuestsJob finds classes whose quests went stale and refreshes them.
// Each class is refreshed in its own transaction, so one failing class does
// not hold back the others.
type RegenerateStaleQuestsJob struct {
	uow       store.UnitOfWork
	refresher ClassRefresher
	clock     timeutil.Clock
	retrier   *retry.Retrier
	logger    *slog.Logger
	config    RegenerateStaleQuestsConfig

	lastStats atomic.Value // *RegenerateStats
}

// RegenerateStaleQuestsConfig contains configuration for the job.
type RegenerateStaleQuestsConfig struct {
	// WindowDays must match the engine window.
	WindowDays int

	// Target is how many quests a class should have. Zero means the engine default.
	Target int

	// Timeout is the maximum duration of one run.
	Timeout time.Duration
}

// DefaultRegenerateStaleQuestsConfig returns sensible defaults.
func DefaultRegenerateStaleQuestsConfig() RegenerateStaleQuestsConfig {
	return RegenerateStaleQuestsConfig{
		WindowDays: quest.WindowDays,
		Timeout:    10 * time.Minute,
	}
}

// RegenerateStats contains statistics from one run.
type RegenerateStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	ClassesFound   int
	ClassesChanged int
	ClassesSkipped int
	Errors         []error
}

// NewRegenerateStaleQuestsJob creates the job.
func NewRegenerateStaleQuestsJob(
	uow store.UnitOfWork,
	refresher ClassRefresher,
	clock timeutil.Clock,
	logger *slog.Logger,
	config RegenerateStaleQuestsConfig,
) *RegenerateStaleQuestsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	if config.WindowDays <= 0 {
		config.WindowDays = quest.WindowDays
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}
	return &RegenerateStaleQuestsJob{
		uow:       uow,
		refresher: refresher,
		clock:     clock,
		retrier:   retry.DatabaseRetrier(shared.IsRetryable),
		logger:    logger.With("job", "regenerate_stale_quests"),
		config:    config,
	}
}

// Name returns the job name.
func (j *RegenerateStaleQuestsJob) Name() string {
	return "regenerate_stale_quests"
}

// Description returns a human-readable description.
func (j *RegenerateStaleQuestsJob) Description() string {
	return "Retires class quests whose weekly window expired and assigns fresh ones"
}

// Run executes the job.
func (j *RegenerateStaleQuestsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &RegenerateStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	today := timeutil.Today(j.clock)
	cutoff := today.AddDate(0, 0, -j.config.WindowDays)

	var classes []quest.ClassAssignment
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		return j.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
			var err error
			classes, err = repos.Quests.ListStaleClasses(ctx, cutoff)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("failed to list stale classes: %w", err)
	}
	stats.ClassesFound = len(classes)

	for _, class := range classes {
		if ctx.Err() != nil {
			stats.Errors = append(stats.Errors, ctx.Err())
			break
		}

		result, err := retry.DoWithData(ctx, func(ctx context.Context) (*command.RefreshClassQuestsResult, error) {
			res, err := j.refresher.Handle(ctx, command.RefreshClassQuestsCommand{
				ClassID:   class.ClassID,
				TeacherID: class.TeacherID,
				Target:    j.config.Target,
			})
			// A class locked by a teacher's manual regeneration is left for the next run.
			if errors.Is(err, shared.ErrRegenerationLocked) {
				return nil, retry.Permanent(err)
			}
			return res, err
		},
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(100*time.Millisecond),
			retry.WithRetryIf(shared.IsRetryable),
		)
		if err != nil {
			if errors.Is(err, shared.ErrRegenerationLocked) {
				stats.ClassesSkipped++
				j.logger.Info("class skipped, regeneration in progress", "class_id", class.ClassID)
				continue
			}
			stats.Errors = append(stats.Errors, fmt.Errorf("class %s: %w", class.ClassID, err))
			j.logger.Warn("failed to refresh class quests", "class_id", class.ClassID, "error", err)
			continue
		}
		if result.Changed {
			stats.ClassesChanged++
		}
	}

	j.logger.Info("stale quest regeneration finished",
		"classes_found", stats.ClassesFound,
		"classes_changed", stats.ClassesChanged,
		"classes_skipped", stats.ClassesSkipped,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("regenerate_stale_quests: %d of %d classes failed: %w",
			len(stats.Errors), stats.ClassesFound, errors.Join(stats.Errors...))
	}
	return nil
}

// LastStats returns statistics of the previous run, or nil.
func (j *RegenerateStaleQuestsJob) LastStats() *RegenerateStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*RegenerateStats)
	}
	return nil
}
