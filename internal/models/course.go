package models

import "time"

// Course represents a course owned by exactly one instructor.
// Ownership (instructor_id) is fixed at creation and never changes.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Category     string    `db:"category" json:"category"`
	Price        float64   `db:"price" json:"price"`
	Duration     int       `db:"duration" json:"duration"`
	Level        string    `db:"level" json:"level"`
	IsPublished  bool      `db:"is_published" json:"is_published"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail embeds the course together with its lessons.
type CourseDetail struct {
	Course
	Lessons     []Lesson `json:"lessons"`
	LessonCount int      `json:"lesson_count"`
}

// CourseSummary is a course row enriched with its lesson count.
type CourseSummary struct {
	Course
	LessonCount int `db:"lesson_count" json:"lesson_count"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	InstructorID string
	Category     string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
