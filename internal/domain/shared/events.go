package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are collected inside a transaction and
// published only after it commits.
const (
	// Task events
	EventTaskVerified         EventType = "task.verified"
	EventTaskRejected         EventType = "task.rejected"
	EventTaskEvidenceAttached EventType = "task.evidence_attached"

	// Ledger events
	EventStudentPointsAwarded EventType = "ledger.student_points_awarded"
	EventClassPointsAwarded   EventType = "ledger.class_points_awarded"

	// Quest events
	EventQuestCompleted   EventType = "quest.completed"
	EventQuestRegenerated EventType = "quest.regenerated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Task Events
// ═══════════════════════════════════════════════════════════════════════════

// TaskVerifiedEvent is emitted when a teacher verifies a student's task.
// Inside the transaction it drives the point ledger and the quest tracker.
type TaskVerifiedEvent struct {
	BaseEvent
	StudentID          string    `json:"student_id"`
	TaskID             string    `json:"task_id"`
	TeacherID          string    `json:"teacher_id"`
	TaskTitle          string    `json:"task_title"`
	Points             int       `json:"points"`
	QuestID            string    `json:"quest_id"`
	ContributionAmount int       `json:"contribution_amount"`
	DateCompleted      time.Time `json:"date_completed"`
}

// Payload implements Event interface.
func (e TaskVerifiedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":          e.StudentID,
		"task_id":             e.TaskID,
		"teacher_id":          e.TeacherID,
		"task_title":          e.TaskTitle,
		"points":              e.Points,
		"quest_id":            e.QuestID,
		"contribution_amount": e.ContributionAmount,
		"date_completed":      e.DateCompleted.Format(time.DateOnly),
	}
}

// NewTaskVerifiedEvent creates a new TaskVerifiedEvent.
func NewTaskVerifiedEvent(studentID, taskID, teacherID string) TaskVerifiedEvent {
	return TaskVerifiedEvent{
		BaseEvent: NewBaseEvent(EventTaskVerified, studentID),
		StudentID: studentID,
		TaskID:    taskID,
		TeacherID: teacherID,
	}
}

// TaskRejectedEvent is emitted when a teacher rejects a student's task.
// It is used for notifications only.
type TaskRejectedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	TaskID    string `json:"task_id"`
	TeacherID string `json:"teacher_id"`
	TaskTitle string `json:"task_title"`
	Reason    string `json:"reason"`
}

// Payload implements Event interface.
func (e TaskRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"task_id":    e.TaskID,
		"teacher_id": e.TeacherID,
		"task_title": e.TaskTitle,
		"reason":     e.Reason,
	}
}

// NewTaskRejectedEvent creates a new TaskRejectedEvent.
func NewTaskRejectedEvent(studentID, taskID, teacherID, reason string) TaskRejectedEvent {
	return TaskRejectedEvent{
		BaseEvent: NewBaseEvent(EventTaskRejected, studentID),
		StudentID: studentID,
		TaskID:    taskID,
		TeacherID: teacherID,
		Reason:    reason,
	}
}

// TaskEvidenceAttachedEvent is emitted when a student attaches evidence images.
type TaskEvidenceAttachedEvent struct {
	BaseEvent
	StudentID string   `json:"student_id"`
	TaskID    string   `json:"task_id"`
	TeacherID string   `json:"teacher_id"`
	ImageURLs []string `json:"image_urls"`
}

// Payload implements Event interface.
func (e TaskEvidenceAttachedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"task_id":    e.TaskID,
		"teacher_id": e.TeacherID,
		"image_urls": e.ImageURLs,
	}
}

// NewTaskEvidenceAttachedEvent creates a new TaskEvidenceAttachedEvent.
func NewTaskEvidenceAttachedEvent(studentID, taskID, teacherID string, urls []string) TaskEvidenceAttachedEvent {
	return TaskEvidenceAttachedEvent{
		BaseEvent: NewBaseEvent(EventTaskEvidenceAttached, studentID),
		StudentID: studentID,
		TaskID:    taskID,
		TeacherID: teacherID,
		ImageURLs: urls,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentPointsAwardedEvent is emitted after a new StudentPoints ledger entry.
type StudentPointsAwardedEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	ClassID       string `json:"class_id"`
	TaskID        string `json:"task_id"`
	Points        int    `json:"points"`
	CurrentPoints int    `json:"current_points"`
	TotalPoints   int    `json:"total_points"`
}

// Payload implements Event interface.
func (e StudentPointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"class_id":       e.ClassID,
		"task_id":        e.TaskID,
		"points":         e.Points,
		"current_points": e.CurrentPoints,
		"total_points":   e.TotalPoints,
	}
}

// NewStudentPointsAwardedEvent creates a new StudentPointsAwardedEvent.
func NewStudentPointsAwardedEvent(studentID, classID, taskID string, points, current, total int) StudentPointsAwardedEvent {
	return StudentPointsAwardedEvent{
		BaseEvent:     NewBaseEvent(EventStudentPointsAwarded, studentID),
		StudentID:     studentID,
		ClassID:       classID,
		TaskID:        taskID,
		Points:        points,
		CurrentPoints: current,
		TotalPoints:   total,
	}
}

// ClassPointsAwardedEvent is emitted after a new ClassPoints ledger entry.
type ClassPointsAwardedEvent struct {
	BaseEvent
	ClassID   string `json:"class_id"`
	QuestID   string `json:"quest_id"`
	StudentID string `json:"contributing_student_id"`
	Points    int    `json:"points"`
}

// Payload implements Event interface.
func (e ClassPointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_id":                e.ClassID,
		"quest_id":                e.QuestID,
		"contributing_student_id": e.StudentID,
		"points":                  e.Points,
	}
}

// NewClassPointsAwardedEvent creates a new ClassPointsAwardedEvent.
func NewClassPointsAwardedEvent(classID, questID, studentID string, points int) ClassPointsAwardedEvent {
	return ClassPointsAwardedEvent{
		BaseEvent: NewBaseEvent(EventClassPointsAwarded, classID),
		ClassID:   classID,
		QuestID:   questID,
		StudentID: studentID,
		Points:    points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quest Events
// ═══════════════════════════════════════════════════════════════════════════

// QuestCompletedEvent is emitted when a class reaches a quest's target.
type QuestCompletedEvent struct {
	BaseEvent
	ClassID    string `json:"class_id"`
	QuestID    string `json:"quest_id"`
	QuestTitle string `json:"quest_title"`
	TeacherID  string `json:"teacher_id"`
	StudentID  string `json:"completed_by"`
	Points     int    `json:"points"`
}

// Payload implements Event interface.
func (e QuestCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_id":     e.ClassID,
		"quest_id":     e.QuestID,
		"quest_title":  e.QuestTitle,
		"teacher_id":   e.TeacherID,
		"completed_by": e.StudentID,
		"points":       e.Points,
	}
}

// NewQuestCompletedEvent creates a new QuestCompletedEvent.
func NewQuestCompletedEvent(classID, questID, questTitle, teacherID, studentID string, points int) QuestCompletedEvent {
	return QuestCompletedEvent{
		BaseEvent:  NewBaseEvent(EventQuestCompleted, classID),
		ClassID:    classID,
		QuestID:    questID,
		QuestTitle: questTitle,
		TeacherID:  teacherID,
		StudentID:  studentID,
		Points:     points,
	}
}

// RegenerationReason explains why a class got new quests.
type RegenerationReason string

const (
	RegenerationStale     RegenerationReason = "stale"
	RegenerationManual    RegenerationReason = "manual"
	RegenerationScheduled RegenerationReason = "scheduled"
	RegenerationSeeded    RegenerationReason = "seeded"
)

// QuestRegeneratedEvent is emitted when quest progress rows are replaced.
type QuestRegeneratedEvent struct {
	BaseEvent
	ClassID          string             `json:"class_id"`
	TeacherID        string             `json:"teacher_id"`
	RetiredQuestIDs  []string           `json:"retired_quest_ids"`
	AssignedQuestIDs []string           `json:"assigned_quest_ids"`
	Reason           RegenerationReason `json:"reason"`
}

// Payload implements Event interface.
func (e QuestRegeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_id":           e.ClassID,
		"teacher_id":         e.TeacherID,
		"retired_quest_ids":  e.RetiredQuestIDs,
		"assigned_quest_ids": e.AssignedQuestIDs,
		"reason":             string(e.Reason),
	}
}

// NewQuestRegeneratedEvent creates a new QuestRegeneratedEvent.
func NewQuestRegeneratedEvent(classID, teacherID string, retired, assigned []string, reason RegenerationReason) QuestRegeneratedEvent {
	return QuestRegeneratedEvent{
		BaseEvent:        NewBaseEvent(EventQuestRegenerated, classID),
		ClassID:          classID,
		TeacherID:        teacherID,
		RetiredQuestIDs:  retired,
		AssignedQuestIDs: assigned,
		Reason:           reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
