package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// QuestTracker accumulates class contributions into QuestProgress rows and
// replaces rows whose weekly window expired.
type QuestTracker struct {
	catalog     quest.Catalog
	recommender *Recommender
	ledger      *PointLedger
	windowDays  int
	logger      *slog.Logger
}

// NewQuestTracker creates a QuestTracker.
func NewQuestTracker(
	catalog quest.Catalog,
	recommender *Recommender,
	ledger *PointLedger,
	windowDays int,
	logger *slog.Logger,
) *QuestTracker {
	if windowDays <= 0 {
		windowDays = quest.WindowDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestTracker{
		catalog:     catalog,
		recommender: recommender,
		ledger:      ledger,
		windowDays:  windowDays,
		logger:      logger.With("component", "quest_tracker"),
	}
}

// WindowStart returns the earliest assignment date still inside the window.
func (qt *QuestTracker) WindowStart(today time.Time) time.Time {
	return today.AddDate(0, 0, -qt.windowDays)
}

// ApplyContribution credits amount from a verified task to the class's quest.
//
// Fresh row: the amount is added; reaching the target (overshoot is clipped)
// completes the quest and awards class points once.
// Stale row: the row is retired and replaced by one recommendation dated today;
// the amount is seeded only when the replacement is the task's own quest.
// Missing row: ErrQuestProgressNotFound, a consistency violation.
func (qt *QuestTracker) ApplyContribution(
	ctx context.Context,
	repos store.Repositories,
	classID, studentID string,
	t task.Task,
	amount int,
	today time.Time,
) (*quest.ContributionOutcome, []shared.Event, error) {
	if amount < 0 {
		return nil, nil, shared.ErrInvalidContribution
	}

	p, err := repos.Quests.GetLatestForUpdate(ctx, classID, t.QuestID)
	if err != nil {
		return nil, nil, err
	}

	outcome := &quest.ContributionOutcome{ClassID: classID, QuestID: t.QuestID, Progress: p}

	if p.Completed {
		outcome.Case = quest.CaseAlreadyCompleted
		return outcome, nil, nil
	}

	if p.IsStale(today, qt.windowDays) {
		return qt.replaceStale(ctx, repos, p, t, studentID, amount, today)
	}

	q, err := qt.catalog.GetQuest(ctx, t.QuestID)
	if err != nil {
		return nil, nil, err
	}

	done, err := p.Contribute(amount, q.TotalAmountToComplete)
	if err != nil {
		return nil, nil, err
	}
	if err := repos.Quests.Update(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("update quest progress: %w", err)
	}

	if !done {
		outcome.Case = quest.CasePartial
		return outcome, nil, nil
	}

	outcome.Case = quest.CaseCompleted
	events, awarded, err := qt.complete(ctx, repos, p, *q, studentID, today)
	if err != nil {
		return nil, nil, err
	}
	outcome.ClassPointsAwarded = awarded
	return outcome, events, nil
}

// complete awards class points for a row that has just reached its target.
func (qt *QuestTracker) complete(
	ctx context.Context,
	repos store.Repositories,
	p *quest.Progress,
	q quest.Quest,
	studentID string,
	today time.Time,
) ([]shared.Event, bool, error) {
	events := []shared.Event{
		shared.NewQuestCompletedEvent(p.ClassID, q.ID, q.Title, p.TeacherID, studentID, q.Points),
	}

	_, err := qt.ledger.AwardClassPoints(ctx, repos.Ledger, p.ClassID, q.ID, today, studentID, q.Points)
	switch {
	case errors.Is(err, shared.ErrAlreadyAwarded):
		qt.logger.Warn("class points already awarded for completion",
			"class_id", p.ClassID,
			"quest_id", q.ID,
			"student_id", studentID,
		)
		return events, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("award class points: %w", err)
	}

	events = append(events, shared.NewClassPointsAwardedEvent(p.ClassID, q.ID, studentID, q.Points))
	return events, true, nil
}

func (qt *QuestTracker) replaceStale(
	ctx context.Context,
	repos store.Repositories,
	stale *quest.Progress,
	t task.Task,
	studentID string,
	amount int,
	today time.Time,
) (*quest.ContributionOutcome, []shared.Event, error) {
	classID := stale.ClassID
	outcome := &quest.ContributionOutcome{
		Case:           quest.CaseRegenerated,
		ClassID:        classID,
		QuestID:        t.QuestID,
		RetiredQuestID: stale.QuestID,
	}

	if err := repos.Quests.Delete(ctx, stale); err != nil {
		return nil, nil, fmt.Errorf("retire stale quest progress: %w", err)
	}

	active, err := repos.Quests.ListByClassSince(ctx, classID, qt.WindowStart(today))
	if err != nil {
		return nil, nil, fmt.Errorf("list class quests: %w", err)
	}

	recs, err := qt.recommender.ForClass(ctx, repos.Ledger, classID, 1, progressQuestIDs(active))
	if err != nil {
		return nil, nil, err
	}

	if len(recs) == 0 {
		qt.logger.Warn("no replacement quest available",
			"class_id", classID,
			"retired_quest_id", stale.QuestID,
		)
		event := shared.NewQuestRegeneratedEvent(classID, stale.TeacherID, []string{stale.QuestID}, nil, shared.RegenerationStale)
		return outcome, []shared.Event{event}, nil
	}

	replacement := recs[0]
	fresh := quest.NewProgress(replacement.ID, classID, stale.TeacherID, today)
	outcome.ReplacementQuestID = replacement.ID
	outcome.Progress = fresh

	done := false
	if replacement.ID == t.QuestID {
		outcome.ContributionSeeded = true
		done, err = fresh.Contribute(amount, replacement.TotalAmountToComplete)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := repos.Quests.Insert(ctx, fresh); err != nil {
		return nil, nil, fmt.Errorf("assign replacement quest: %w", err)
	}

	events := []shared.Event{
		shared.NewQuestRegeneratedEvent(classID, stale.TeacherID, []string{stale.QuestID}, []string{replacement.ID}, shared.RegenerationStale),
	}

	if done {
		completion, awarded, err := qt.complete(ctx, repos, fresh, replacement, studentID, today)
		if err != nil {
			return nil, nil, err
		}
		outcome.ClassPointsAwarded = awarded
		events = append(events, completion...)
	}

	qt.logger.Info("stale quest replaced",
		"class_id", classID,
		"retired_quest_id", stale.QuestID,
		"replacement_quest_id", replacement.ID,
		"seeded", outcome.ContributionSeeded,
	)

	return outcome, events, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REGENERATION
// ══════════════════════════════════════════════════════════════════════════════

// Regenerate replaces every uncompleted row inside the window with fresh
// recommendations. Completed rows are kept. count <= 0 means one replacement
// per retired row. Returns ErrNothingToRegenerate when nothing is uncompleted.
func (qt *QuestTracker) Regenerate(
	ctx context.Context,
	repos store.Repositories,
	classID, teacherID string,
	count int,
	today time.Time,
	reason shared.RegenerationReason,
) (*quest.ClassQuestsView, []shared.Event, error) {
	rows, err := repos.Quests.ListByClassSince(ctx, classID, qt.WindowStart(today))
	if err != nil {
		return nil, nil, fmt.Errorf("list class quests: %w", err)
	}

	completed, uncompleted := splitCompleted(rows)
	if len(uncompleted) == 0 {
		return nil, nil, shared.ErrNothingToRegenerate
	}

	for _, p := range uncompleted {
		if err := repos.Quests.Delete(ctx, p); err != nil {
			return nil, nil, fmt.Errorf("retire quest progress: %w", err)
		}
	}

	if count <= 0 {
		count = len(uncompleted)
	}

	assigned, err := qt.assign(ctx, repos, classID, teacherID, count, progressQuestIDs(completed), today)
	if err != nil {
		return nil, nil, err
	}

	view, err := qt.buildView(ctx, classID, completed, assigned)
	if err != nil {
		return nil, nil, err
	}

	event := shared.NewQuestRegeneratedEvent(classID, teacherID, progressQuestIDs(uncompleted), progressQuestIDs(assigned), reason)
	return view, []shared.Event{event}, nil
}

// Seed provisions the first quests of a class. Fails with ErrClassQuestsExist
// when the class already has rows inside the window.
func (qt *QuestTracker) Seed(
	ctx context.Context,
	repos store.Repositories,
	classID, teacherID string,
	count int,
	today time.Time,
) (*quest.ClassQuestsView, []shared.Event, error) {
	rows, err := repos.Quests.ListByClassSince(ctx, classID, qt.WindowStart(today))
	if err != nil {
		return nil, nil, fmt.Errorf("list class quests: %w", err)
	}
	if len(rows) > 0 {
		return nil, nil, shared.ErrClassQuestsExist
	}

	assigned, err := qt.assign(ctx, repos, classID, teacherID, count, nil, today)
	if err != nil {
		return nil, nil, err
	}

	view, err := qt.buildView(ctx, classID, nil, assigned)
	if err != nil {
		return nil, nil, err
	}

	event := shared.NewQuestRegeneratedEvent(classID, teacherID, nil, progressQuestIDs(assigned), shared.RegenerationSeeded)
	return view, []shared.Event{event}, nil
}

// Refresh retires every stale row of the class and tops the window up to
// target quests. It is the periodic counterpart of Regenerate: rows that are
// still inside the window are never touched.
func (qt *QuestTracker) Refresh(
	ctx context.Context,
	repos store.Repositories,
	classID, teacherID string,
	target int,
	today time.Time,
) (*quest.ClassQuestsView, []shared.Event, error) {
	rows, err := repos.Quests.ListByClassSince(ctx, classID, time.Time{})
	if err != nil {
		return nil, nil, fmt.Errorf("list class quests: %w", err)
	}

	retired := make([]*quest.Progress, 0)
	current := make([]*quest.Progress, 0, len(rows))
	for _, p := range rows {
		switch {
		case p.IsStale(today, qt.windowDays):
			if err := repos.Quests.Delete(ctx, p); err != nil {
				return nil, nil, fmt.Errorf("retire stale quest progress: %w", err)
			}
			retired = append(retired, p)
		case p.InWindow(today, qt.windowDays):
			current = append(current, p)
		}
	}

	var assigned []*quest.Progress
	if need := target - len(current); need > 0 {
		assigned, err = qt.assign(ctx, repos, classID, teacherID, need, progressQuestIDs(current), today)
		if err != nil {
			return nil, nil, err
		}
	}

	completed, active := splitCompleted(current)
	view, err := qt.buildView(ctx, classID, completed, append(active, assigned...))
	if err != nil {
		return nil, nil, err
	}

	if len(retired) == 0 && len(assigned) == 0 {
		return view, nil, nil
	}
	event := shared.NewQuestRegeneratedEvent(classID, teacherID, progressQuestIDs(retired), progressQuestIDs(assigned), shared.RegenerationScheduled)
	return view, []shared.Event{event}, nil
}

// View returns the class's rows inside the window joined with catalog data.
func (qt *QuestTracker) View(
	ctx context.Context,
	repos store.Repositories,
	classID string,
	today time.Time,
) (*quest.ClassQuestsView, error) {
	rows, err := repos.Quests.ListByClassSince(ctx, classID, qt.WindowStart(today))
	if err != nil {
		return nil, fmt.Errorf("list class quests: %w", err)
	}
	completed, active := splitCompleted(rows)
	return qt.buildView(ctx, classID, completed, active)
}

func (qt *QuestTracker) assign(
	ctx context.Context,
	repos store.Repositories,
	classID, teacherID string,
	count int,
	exclude []string,
	today time.Time,
) ([]*quest.Progress, error) {
	recs, err := qt.recommender.ForClass(ctx, repos.Ledger, classID, count, exclude)
	if err != nil {
		return nil, err
	}
	if len(recs) < count {
		qt.logger.Warn("quest catalog exhausted for class",
			"class_id", classID,
			"requested", count,
			"available", len(recs),
		)
	}

	assigned := make([]*quest.Progress, 0, len(recs))
	for _, q := range recs {
		p := quest.NewProgress(q.ID, classID, teacherID, today)
		if err := repos.Quests.Insert(ctx, p); err != nil {
			return nil, fmt.Errorf("assign quest %s: %w", q.ID, err)
		}
		assigned = append(assigned, p)
	}
	return assigned, nil
}

func (qt *QuestTracker) buildView(
	ctx context.Context,
	classID string,
	completed, active []*quest.Progress,
) (*quest.ClassQuestsView, error) {
	view := &quest.ClassQuestsView{
		ClassID:   classID,
		Completed: make([]quest.AssignedQuest, 0, len(completed)),
		Active:    make([]quest.AssignedQuest, 0, len(active)),
	}

	for _, p := range completed {
		q, err := qt.catalog.GetQuest(ctx, p.QuestID)
		if err != nil {
			return nil, err
		}
		view.Completed = append(view.Completed, quest.AssignedQuest{Quest: *q, Progress: *p})
	}
	for _, p := range active {
		q, err := qt.catalog.GetQuest(ctx, p.QuestID)
		if err != nil {
			return nil, err
		}
		view.Active = append(view.Active, quest.AssignedQuest{Quest: *q, Progress: *p})
	}
	return view, nil
}

func splitCompleted(rows []*quest.Progress) (completed, uncompleted []*quest.Progress) {
	completed = make([]*quest.Progress, 0, len(rows))
	uncompleted = make([]*quest.Progress, 0, len(rows))
	for _, p := range rows {
		if p.Completed {
			completed = append(completed, p)
		} else {
			uncompleted = append(uncompleted, p)
		}
	}
	return completed, uncompleted
}

func progressQuestIDs(rows []*quest.Progress) []string {
	ids := make([]string, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.QuestID)
	}
	return ids
}
