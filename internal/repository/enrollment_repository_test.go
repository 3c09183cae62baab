package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

func TestEnrollmentRepositoryCreateDuplicatePair(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505"})

	first := &models.Enrollment{StudentID: "s1", CourseID: "c1"}
	require.NoError(t, repo.Create(context.Background(), first))
	require.NotNil(t, first.CompletedLessons)

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "s1", CourseID: "c1"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByPair(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "progress", "completed_lessons", "enrolled_at", "updated_at"}).
		AddRow("e1", "s1", "c1", 50.0, "{l1}", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE student_id = $1 AND course_id = $2")).
		WithArgs("s1", "c1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByPair(context.Background(), "s1", "c1")
	require.NoError(t, err)
	require.Equal(t, 50.0, enrollment.Progress)
	require.Equal(t, pq.StringArray{"l1"}, enrollment.CompletedLessons)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateProgress(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET completed_lessons = $2, progress = $3")).
		WithArgs("e1", pq.StringArray{"l1", "l2"}, 66.67, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProgress(context.Background(), "e1", pq.StringArray{"l1", "l2"}, 66.67))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2")).
		WithArgs("s1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "s1", "c1")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListWithCourseSnapshot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "course_id", "progress", "completed_lessons", "enrolled_at", "updated_at",
		"c_id", "c_title", "c_description", "c_instructor_id", "c_category", "c_price", "c_duration",
		"c_level", "c_is_published", "c_created_at", "c_updated_at",
	}).AddRow("e1", "s1", "c1", 25.0, "{l1}", now, now,
		"c1", "Go Basics", "intro", "inst-1", "dev", 10.0, 30, "Beginner", true, now, now)
	mock.ExpectQuery("LEFT JOIN courses c ON c.id = e.course_id").
		WithArgs("s1").
		WillReturnRows(rows)

	details, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.NotNil(t, details[0].Course)
	require.Equal(t, "Go Basics", details[0].Course.Title)
	require.Equal(t, "inst-1", details[0].Course.InstructorID)
	require.NoError(t, mock.ExpectationsWereMet())
}
