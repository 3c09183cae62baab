package models

import "time"

// LessonType distinguishes lesson content kinds.
type LessonType string

const (
	LessonTypeText  LessonType = "text"
	LessonTypeVideo LessonType = "video"
)

// Valid reports whether the lesson type is a known value.
func (t LessonType) Valid() bool {
	switch t {
	case LessonTypeText, LessonTypeVideo:
		return true
	}
	return false
}

// Lesson belongs to exactly one course. The parent course's existence is
// verified at each mutating operation, not maintained as a live constraint.
type Lesson struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Title     string     `db:"title" json:"title"`
	Content   string     `db:"content" json:"content"`
	Type      LessonType `db:"lesson_type" json:"lesson_type"`
	VideoURL  string     `db:"video_url" json:"video_url"`
	Order     int        `db:"position" json:"order"`
	Duration  int        `db:"duration" json:"duration"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
