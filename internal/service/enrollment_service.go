package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateProgress(ctx context.Context, id string, completed pq.StringArray, progress float64) error
	Delete(ctx context.Context, studentID, courseID string) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	ProgressRows(ctx context.Context, courseID string) ([]models.ProgressRow, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentLessonReader interface {
	FindByIDAndCourse(ctx context.Context, id, courseID string) (*models.Lesson, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

// EnrollmentService tracks which students take which courses and how far
// they have come.
type EnrollmentService struct {
	repo    enrollmentRepository
	courses courseReader
	lessons enrollmentLessonReader
	logger  *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, lessons enrollmentLessonReader, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, lessons: lessons, logger: logger}
}

// Enroll registers the student on a course. Enrolling twice in the same
// course is a conflict, enforced by the unique (student, course) index so
// concurrent requests cannot both succeed.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrollment := &models.Enrollment{
		StudentID:        studentID,
		CourseID:         courseID,
		Progress:         0,
		CompletedLessons: pq.StringArray{},
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID))
	return enrollment, nil
}

// SetLessonCompletion marks a lesson complete or incomplete for the calling
// student and recomputes the progress percentage from the live lesson count.
// Repeating the same state is a no-op that still succeeds.
func (s *EnrollmentService) SetLessonCompletion(ctx context.Context, studentID, courseID, lessonID string, completed bool) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByPair(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if _, err := s.lessons.FindByIDAndCourse(ctx, lessonID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	set := make(map[string]struct{}, len(enrollment.CompletedLessons))
	for _, id := range enrollment.CompletedLessons {
		set[id] = struct{}{}
	}
	if completed {
		set[lessonID] = struct{}{}
	} else {
		delete(set, lessonID)
	}

	updated := make(pq.StringArray, 0, len(set))
	for _, id := range enrollment.CompletedLessons {
		if _, ok := set[id]; ok {
			updated = append(updated, id)
			delete(set, id)
		}
	}
	if _, ok := set[lessonID]; ok {
		updated = append(updated, lessonID)
	}

	total, err := s.lessons.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}
	progress := computeProgress(len(updated), total)

	if err := s.repo.UpdateProgress(ctx, enrollment.ID, updated, progress); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}

	enrollment.CompletedLessons = updated
	enrollment.Progress = progress
	return enrollment, nil
}

// Unenroll removes the student's enrollment.
func (s *EnrollmentService) Unenroll(ctx context.Context, studentID, courseID string) error {
	if err := s.repo.Delete(ctx, studentID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "not enrolled in this course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll")
	}
	return nil
}

// ListForCaller returns enrollments scoped by the caller's role: students
// see their own, instructors see enrollments on their courses, admins see
// everything.
func (s *EnrollmentService) ListForCaller(ctx context.Context, userID string, role models.UserRole) ([]models.EnrollmentDetail, error) {
	var filter models.EnrollmentFilter
	switch role {
	case models.RoleStudent:
		filter.StudentID = userID
	case models.RoleInstructor:
		filter.InstructorID = userID
	case models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	details, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}

// CourseProgress returns per-student progress for a course. Only the owning
// instructor or an admin may see it; the course must exist before ownership
// is judged.
func (s *EnrollmentService) CourseProgress(ctx context.Context, actorID string, role models.UserRole, courseID string) ([]models.ProgressRow, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !canModify(course, actorID, role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view progress for your own courses")
	}

	rows, err := s.repo.ProgressRows(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}
	return rows, nil
}

// computeProgress converts a completed count into a percentage rounded to
// two decimals. A course with no lessons reports zero progress.
func computeProgress(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}
