// Package progress contains the in-transaction building blocks of the quest engine:
// the point ledger, the task and quest trackers and the recommender.
// Every method takes the transaction-bound repositories explicitly; none of them
// opens or commits a transaction.
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT LEDGER
// Exactly-once awarding. The ledger row is written first; its unique key is
// the guard, the aggregate is only touched when the insert succeeded.
// ══════════════════════════════════════════════════════════════════════════════

// PointLedger awards student and class points.
type PointLedger struct {
	newID func() string
}

// NewPointLedger creates a ledger that assigns random entry IDs.
func NewPointLedger() *PointLedger {
	return &PointLedger{newID: uuid.NewString}
}

// AwardStudentPoints records the award and increments current and total points.
// Returns shared.ErrAlreadyAwarded when (studentID, taskID, day) was already awarded;
// in that case nothing is written and the caller must skip downstream effects.
func (l *PointLedger) AwardStudentPoints(
	ctx context.Context,
	repo ledger.Repository,
	studentID, taskID string,
	day time.Time,
	points int,
) (*ledger.StudentPoints, error) {
	entry := ledger.StudentPointsEntry{
		ID:            l.newID(),
		StudentID:     studentID,
		TaskID:        taskID,
		DateCompleted: timeutil.StartOfDay(day),
		PointsAwarded: points,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := repo.InsertStudentPoints(ctx, entry); err != nil {
		return nil, err
	}

	totals, err := repo.IncrementStudentPoints(ctx, studentID, points)
	if err != nil {
		return nil, fmt.Errorf("increment student points: %w", err)
	}
	return totals, nil
}

// AwardClassPoints records the class award for a completed quest.
// Returns shared.ErrAlreadyAwarded when the four-part key already exists.
func (l *PointLedger) AwardClassPoints(
	ctx context.Context,
	repo ledger.Repository,
	classID, questID string,
	day time.Time,
	contributingStudentID string,
	points int,
) (*ledger.ClassPointsEntry, error) {
	entry := ledger.ClassPointsEntry{
		ID:            l.newID(),
		ClassID:       classID,
		QuestID:       questID,
		DateCompleted: timeutil.StartOfDay(day),
		StudentID:     contributingStudentID,
		PointsAwarded: points,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := repo.InsertClassPoints(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
