package models

import (
	"time"

	"github.com/lib/pq"
)

// Enrollment links a student to a course. Unique per (student_id, course_id);
// the uniqueness constraint lives in the store so concurrent enrolls resolve
// to a deterministic conflict.
//
// Progress is always derived from completed_lessons against the course's
// current lesson total. It is never edited independently.
type Enrollment struct {
	ID               string         `db:"id" json:"id"`
	StudentID        string         `db:"student_id" json:"student_id"`
	CourseID         string         `db:"course_id" json:"course_id"`
	Progress         float64        `db:"progress" json:"progress"`
	CompletedLessons pq.StringArray `db:"completed_lessons" json:"completed_lessons"`
	EnrolledAt       time.Time      `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail embeds a snapshot of the referenced course read at query time.
type EnrollmentDetail struct {
	Enrollment
	Course *Course `json:"course,omitempty"`
}

// EnrollmentFilter captures list scoping. Zero values mean no filter.
type EnrollmentFilter struct {
	StudentID    string
	CourseID     string
	InstructorID string
}

// ProgressRow is one student's progress within a course report.
type ProgressRow struct {
	StudentID      string    `db:"student_id" json:"student_id"`
	StudentEmail   string    `db:"student_email" json:"student_email"`
	Progress       float64   `db:"progress" json:"progress"`
	CompletedCount int       `db:"completed_count" json:"completed_count"`
	EnrolledAt     time.Time `db:"enrolled_at" json:"enrolled_at"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}
