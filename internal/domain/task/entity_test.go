package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

func newAssigned() *Progress {
	return NewProgress("task-1", "student-1", "teacher-1", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))
}

func TestProgress_Verify(t *testing.T) {
	p := newAssigned()
	assert.Equal(t, StatusAssigned, p.Status())

	require.NoError(t, p.Verify("teacher-1"))
	assert.True(t, p.Verified)
	assert.False(t, p.VerificationPending)
	assert.Equal(t, StatusVerified, p.Status())
	assert.True(t, p.Status().IsTerminal())
}

func TestProgress_VerifyWrongTeacher(t *testing.T) {
	p := newAssigned()

	err := p.Verify("teacher-2")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.False(t, p.Verified)
	assert.True(t, p.VerificationPending)
}

func TestProgress_VerifyTwice(t *testing.T) {
	p := newAssigned()
	require.NoError(t, p.Verify("teacher-1"))

	err := p.Verify("teacher-1")
	assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)
}

func TestProgress_OwnerCheckedBeforeIdempotency(t *testing.T) {
	p := newAssigned()
	require.NoError(t, p.Verify("teacher-1"))

	err := p.Verify("teacher-2")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestProgress_TerminalStatesAreExclusive(t *testing.T) {
	verified := newAssigned()
	require.NoError(t, verified.Verify("teacher-1"))
	assert.ErrorIs(t, verified.Reject("teacher-1"), shared.ErrAlreadyProcessed)
	assert.False(t, verified.Rejected)

	rejected := newAssigned()
	require.NoError(t, rejected.Reject("teacher-1"))
	assert.ErrorIs(t, rejected.Verify("teacher-1"), shared.ErrAlreadyProcessed)
	assert.False(t, rejected.Verified)
	assert.Equal(t, StatusRejected, rejected.Status())
}

func TestProgress_NotPending(t *testing.T) {
	p := newAssigned()
	p.VerificationPending = false

	assert.ErrorIs(t, p.Verify("teacher-1"), shared.ErrAlreadyProcessed)
	assert.Equal(t, StatusInvalid, p.Status())
}

func TestProgress_AttachEvidence(t *testing.T) {
	p := newAssigned()

	assert.ErrorIs(t, p.AttachEvidence(nil), shared.ErrInvalidInput)

	require.NoError(t, p.AttachEvidence([]string{"https://cdn/a.jpg"}))
	require.NoError(t, p.AttachEvidence([]string{"https://cdn/b.jpg"}))
	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, p.ImageURLs)

	require.NoError(t, p.Reject("teacher-1"))
	assert.ErrorIs(t, p.AttachEvidence([]string{"https://cdn/c.jpg"}), shared.ErrAlreadyProcessed)
}

func TestPickReviewable(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }

	older := NewProgress("task-1", "student-1", "teacher-1", day(1))
	newer := NewProgress("task-1", "student-1", "teacher-1", day(2))
	newer.Verified, newer.VerificationPending = true, false

	assert.Same(t, older, PickReviewable([]*Progress{newer, older}), "pending beats newer terminal")

	older.Rejected, older.VerificationPending = true, false
	assert.Same(t, newer, PickReviewable([]*Progress{older, newer}), "newest when nothing is pending")

	newest := NewProgress("task-1", "student-1", "teacher-1", day(3))
	oldest := NewProgress("task-1", "student-1", "teacher-1", day(0))
	assert.Same(t, newest, PickReviewable([]*Progress{oldest, newer, newest}))

	assert.Nil(t, PickReviewable(nil))
}

func TestTask_Validate(t *testing.T) {
	assert.NoError(t, Task{ID: "t1", Points: 10, QuestContribution: 1}.Validate())
	assert.ErrorIs(t, Task{ID: " "}.Validate(), shared.ErrInvalidID)
	assert.ErrorIs(t, Task{ID: "t1", Points: -1}.Validate(), shared.ErrNegativeValue)
	assert.ErrorIs(t, Task{ID: "t1", QuestContribution: -1}.Validate(), shared.ErrNegativeValue)
}
