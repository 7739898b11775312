package postgres

import (
	"context"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

// ContactDirectory reads notification addresses from the roster tables.
type ContactDirectory struct {
	conn *Connection
}

// NewContactDirectory creates a ContactDirectory.
func NewContactDirectory(conn *Connection) *ContactDirectory {
	return &ContactDirectory{conn: conn}
}

// StudentContact implements notification.ContactDirectory.
func (d *ContactDirectory) StudentContact(ctx context.Context, studentID string) (notification.StudentContact, error) {
	var c notification.StudentContact
	err := d.conn.Pool().QueryRow(ctx,
		`SELECT student_id, display_name, email, parent_email FROM students WHERE student_id = $1`,
		studentID,
	).Scan(&c.StudentID, &c.DisplayName, &c.Email, &c.ParentEmail)
	if err != nil {
		if IsNoRows(err) {
			return notification.StudentContact{}, shared.ErrStudentNotFound
		}
		return notification.StudentContact{}, storageError("StudentContact", err)
	}
	return c, nil
}

// TeacherContact implements notification.ContactDirectory.
func (d *ContactDirectory) TeacherContact(ctx context.Context, teacherID string) (notification.TeacherContact, error) {
	var c notification.TeacherContact
	err := d.conn.Pool().QueryRow(ctx,
		`SELECT teacher_id, display_name, email FROM teachers WHERE teacher_id = $1`,
		teacherID,
	).Scan(&c.TeacherID, &c.DisplayName, &c.Email)
	if err != nil {
		if IsNoRows(err) {
			return notification.TeacherContact{}, shared.NewDomainError("roster", "FindTeacher", shared.ErrNotFound, "teacher not found")
		}
		return notification.TeacherContact{}, storageError("TeacherContact", err)
	}
	return c, nil
}

var _ notification.ContactDirectory = (*ContactDirectory)(nil)
