// Package memory provides an in-process implementation of the engine store.
// Each transaction works on a private copy of the data and swaps it in on
// success, so a failed or panicking transaction leaves no trace. A single
// mutex serializes transactions, which gives the same "one winner" behavior
// as row locks in PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// Store is an in-memory store.UnitOfWork.
type Store struct {
	mu   sync.Mutex
	data *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

type state struct {
	tasks    map[string]task.Progress
	quests   map[string]quest.Progress
	students map[string]ledger.StudentPoints
	spEntry  map[string]ledger.StudentPointsEntry
	cpEntry  map[string]ledger.ClassPointsEntry
	contacts map[string]notification.StudentContact
	teachers map[string]notification.TeacherContact
}

func newState() *state {
	return &state{
		tasks:    make(map[string]task.Progress),
		quests:   make(map[string]quest.Progress),
		students: make(map[string]ledger.StudentPoints),
		spEntry:  make(map[string]ledger.StudentPointsEntry),
		cpEntry:  make(map[string]ledger.ClassPointsEntry),
		contacts: make(map[string]notification.StudentContact),
		teachers: make(map[string]notification.TeacherContact),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.tasks {
		v.ImageURLs = append([]string(nil), v.ImageURLs...)
		c.tasks[k] = v
	}
	for k, v := range s.quests {
		c.quests[k] = v
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.spEntry {
		c.spEntry[k] = v
	}
	for k, v := range s.cpEntry {
		c.cpEntry[k] = v
	}
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	for k, v := range s.teachers {
		c.teachers[k] = v
	}
	return c
}

// Do implements store.UnitOfWork.
func (s *Store) Do(ctx context.Context, fn store.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return shared.StorageError("memory", "Begin", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	repos := store.Repositories{
		Tasks:  &taskRepo{st: work},
		Quests: &questRepo{st: work},
		Ledger: &ledgerRepo{st: work},
	}

	if err := fn(ctx, repos); err != nil {
		return shared.StorageError("memory", "Do", err)
	}

	// A transaction whose deadline passed must not commit.
	if err := ctx.Err(); err != nil {
		return shared.StorageError("memory", "Commit", err)
	}

	s.data = work
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING AND INSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// AddStudent registers a student in a class with zero points.
func (s *Store) AddStudent(contact notification.StudentContact, classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.students[contact.StudentID] = ledger.StudentPoints{StudentID: contact.StudentID, ClassID: classID}
	s.data.contacts[contact.StudentID] = contact
}

// AddTeacher registers a teacher contact.
func (s *Store) AddTeacher(contact notification.TeacherContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.teachers[contact.TeacherID] = contact
}

// PutTaskProgress inserts or replaces a TaskProgress row.
func (s *Store) PutTaskProgress(p task.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ImageURLs = append([]string(nil), p.ImageURLs...)
	s.data.tasks[taskKey(p.TaskID, p.StudentID, p.DateAssigned)] = p
}

// PutQuestProgress inserts or replaces a QuestProgress row.
func (s *Store) PutQuestProgress(p quest.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.quests[questKey(p.QuestID, p.ClassID, p.DateAssigned)] = p
}

// PutClassPoints inserts a ClassPoints entry, e.g. to build completion history.
func (s *Store) PutClassPoints(e ledger.ClassPointsEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.cpEntry[e.Key()] = e
}

// Student returns a copy of the student aggregate.
func (s *Store) Student(studentID string) (ledger.StudentPoints, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.data.students[studentID]
	return sp, ok
}

// StudentEntries returns every StudentPoints entry.
func (s *Store) StudentEntries() []ledger.StudentPointsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.StudentPointsEntry, 0, len(s.data.spEntry))
	for _, e := range s.data.spEntry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// ClassEntries returns every ClassPoints entry.
func (s *Store) ClassEntries() []ledger.ClassPointsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.ClassPointsEntry, 0, len(s.data.cpEntry))
	for _, e := range s.data.cpEntry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// TaskProgressRows returns every TaskProgress row.
func (s *Store) TaskProgressRows() []task.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.Progress, 0, len(s.data.tasks))
	for _, p := range s.data.tasks {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return taskKey(out[i].TaskID, out[i].StudentID, out[i].DateAssigned) <
			taskKey(out[j].TaskID, out[j].StudentID, out[j].DateAssigned)
	})
	return out
}

// QuestProgressRows returns the class's QuestProgress rows by date, then quest.
func (s *Store) QuestProgressRows(classID string) []quest.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]quest.Progress, 0)
	for _, p := range s.data.quests {
		if p.ClassID == classID {
			out = append(out, p)
		}
	}
	sortQuestRows(out)
	return out
}

// StudentContact implements notification.ContactDirectory.
func (s *Store) StudentContact(_ context.Context, studentID string) (notification.StudentContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.contacts[studentID]
	if !ok {
		return notification.StudentContact{}, shared.ErrStudentNotFound
	}
	return c, nil
}

// TeacherContact implements notification.ContactDirectory.
func (s *Store) TeacherContact(_ context.Context, teacherID string) (notification.TeacherContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.teachers[teacherID]
	if !ok {
		return notification.TeacherContact{}, shared.NewDomainError("roster", "FindTeacher", shared.ErrNotFound, "teacher not found")
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type taskRepo struct {
	st *state
}

func taskKey(taskID, studentID string, day time.Time) string {
	return fmt.Sprintf("%s|%s|%s", taskID, studentID, timeutil.FormatDate(day))
}

func (r *taskRepo) GetReviewableForUpdate(_ context.Context, studentID, taskID string) (*task.Progress, error) {
	rows := make([]*task.Progress, 0)
	for _, p := range r.st.tasks {
		if p.StudentID != studentID || p.TaskID != taskID {
			continue
		}
		cp := p
		cp.ImageURLs = append([]string(nil), p.ImageURLs...)
		rows = append(rows, &cp)
	}
	picked := task.PickReviewable(rows)
	if picked == nil {
		return nil, shared.ErrTaskProgressNotFound
	}
	return picked, nil
}

func (r *taskRepo) Save(_ context.Context, p *task.Progress) error {
	key := taskKey(p.TaskID, p.StudentID, p.DateAssigned)
	if _, ok := r.st.tasks[key]; !ok {
		return shared.ErrTaskProgressNotFound
	}
	if p.Verified && p.Rejected {
		return shared.NewDomainError("task", "Save", shared.ErrConsistencyViolation, "task both verified and rejected")
	}
	cp := *p
	cp.ImageURLs = append([]string(nil), p.ImageURLs...)
	r.st.tasks[key] = cp
	return nil
}

func (r *taskRepo) ListPendingByTeacher(_ context.Context, teacherID string) ([]*task.Progress, error) {
	out := make([]*task.Progress, 0)
	for _, p := range r.st.tasks {
		if p.TeacherID == teacherID && p.VerificationPending && !p.Verified && !p.Rejected {
			cp := p
			cp.ImageURLs = append([]string(nil), p.ImageURLs...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if d := timeutil.DaysBetween(out[j].DateAssigned, out[i].DateAssigned); d != 0 {
			return d < 0
		}
		return taskKey(out[i].TaskID, out[i].StudentID, out[i].DateAssigned) <
			taskKey(out[j].TaskID, out[j].StudentID, out[j].DateAssigned)
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUEST PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type questRepo struct {
	st *state
}

func questKey(questID, classID string, day time.Time) string {
	return fmt.Sprintf("%s|%s|%s", questID, classID, timeutil.FormatDate(day))
}

func sortQuestRows(rows []quest.Progress) {
	sort.Slice(rows, func(i, j int) bool {
		if d := timeutil.DaysBetween(rows[j].DateAssigned, rows[i].DateAssigned); d != 0 {
			return d < 0
		}
		return rows[i].QuestID < rows[j].QuestID
	})
}

func (r *questRepo) GetLatestForUpdate(_ context.Context, classID, questID string) (*quest.Progress, error) {
	var latest *quest.Progress
	for _, p := range r.st.quests {
		if p.ClassID != classID || p.QuestID != questID {
			continue
		}
		if latest == nil || timeutil.DaysBetween(latest.DateAssigned, p.DateAssigned) > 0 {
			cp := p
			latest = &cp
		}
	}
	if latest == nil {
		return nil, shared.ErrQuestProgressNotFound
	}
	return latest, nil
}

func (r *questRepo) ListByClassSince(_ context.Context, classID string, since time.Time) ([]*quest.Progress, error) {
	rows := make([]quest.Progress, 0)
	for _, p := range r.st.quests {
		if p.ClassID != classID {
			continue
		}
		if !since.IsZero() && timeutil.DaysBetween(since, p.DateAssigned) < 0 {
			continue
		}
		rows = append(rows, p)
	}
	sortQuestRows(rows)

	out := make([]*quest.Progress, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (r *questRepo) Insert(_ context.Context, p *quest.Progress) error {
	key := questKey(p.QuestID, p.ClassID, p.DateAssigned)
	if _, ok := r.st.quests[key]; ok {
		return shared.NewDomainError("quest", "Insert", shared.ErrAlreadyExists, "quest progress already exists")
	}
	r.st.quests[key] = *p
	return nil
}

func (r *questRepo) Update(_ context.Context, p *quest.Progress) error {
	key := questKey(p.QuestID, p.ClassID, p.DateAssigned)
	if _, ok := r.st.quests[key]; !ok {
		return shared.ErrQuestProgressNotFound
	}
	r.st.quests[key] = *p
	return nil
}

func (r *questRepo) Delete(_ context.Context, p *quest.Progress) error {
	key := questKey(p.QuestID, p.ClassID, p.DateAssigned)
	if _, ok := r.st.quests[key]; !ok {
		return shared.ErrQuestProgressNotFound
	}
	delete(r.st.quests, key)
	return nil
}

func (r *questRepo) ListStaleClasses(_ context.Context, before time.Time) ([]quest.ClassAssignment, error) {
	type agg struct {
		latest quest.Progress
		stale  bool
	}
	byClass := make(map[string]*agg)
	for _, p := range r.st.quests {
		a, ok := byClass[p.ClassID]
		if !ok {
			a = &agg{latest: p}
			byClass[p.ClassID] = a
		} else if timeutil.DaysBetween(a.latest.DateAssigned, p.DateAssigned) > 0 {
			a.latest = p
		}
		if !p.Completed && timeutil.DaysBetween(p.DateAssigned, before) > 0 {
			a.stale = true
		}
	}

	out := make([]quest.ClassAssignment, 0)
	for classID, a := range byClass {
		if a.stale || timeutil.DaysBetween(a.latest.DateAssigned, before) > 0 {
			out = append(out, quest.ClassAssignment{ClassID: classID, TeacherID: a.latest.TeacherID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

type ledgerRepo struct {
	st *state
}

func (r *ledgerRepo) InsertStudentPoints(_ context.Context, e ledger.StudentPointsEntry) error {
	if _, ok := r.st.spEntry[e.Key()]; ok {
		return shared.ErrAlreadyAwarded
	}
	r.st.spEntry[e.Key()] = e
	return nil
}

func (r *ledgerRepo) InsertClassPoints(_ context.Context, e ledger.ClassPointsEntry) error {
	if _, ok := r.st.cpEntry[e.Key()]; ok {
		return shared.ErrAlreadyAwarded
	}
	r.st.cpEntry[e.Key()] = e
	return nil
}

func (r *ledgerRepo) IncrementStudentPoints(_ context.Context, studentID string, points int) (*ledger.StudentPoints, error) {
	sp, ok := r.st.students[studentID]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	sp.Add(points)
	r.st.students[studentID] = sp
	return &sp, nil
}

func (r *ledgerRepo) GetStudent(_ context.Context, studentID string) (*ledger.StudentPoints, error) {
	sp, ok := r.st.students[studentID]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return &sp, nil
}

func (r *ledgerRepo) CompletedQuestIDs(_ context.Context, classID string) ([]string, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, e := range r.st.cpEntry {
		if e.ClassID != classID {
			continue
		}
		if _, ok := seen[e.QuestID]; ok {
			continue
		}
		seen[e.QuestID] = struct{}{}
		ids = append(ids, e.QuestID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *ledgerRepo) ListStudentEntries(_ context.Context, studentID string) ([]ledger.StudentPointsEntry, error) {
	out := make([]ledger.StudentPointsEntry, 0)
	for _, e := range r.st.spEntry {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (r *ledgerRepo) ListClassEntries(_ context.Context, classID string) ([]ledger.ClassPointsEntry, error) {
	out := make([]ledger.ClassPointsEntry, 0)
	for _, e := range r.st.cpEntry {
		if e.ClassID == classID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

var _ store.UnitOfWork = (*Store)(nil)
var _ notification.ContactDirectory = (*Store)(nil)
