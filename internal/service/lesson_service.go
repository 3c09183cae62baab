package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type lessonRepository interface {
	FindByIDAndCourse(ctx context.Context, id, courseID string) (*models.Lesson, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

// CreateLessonRequest describes the lesson creation payload.
type CreateLessonRequest struct {
	Title    string            `json:"title" validate:"required"`
	Content  string            `json:"content"`
	Type     models.LessonType `json:"type"`
	VideoURL string            `json:"video_url"`
	Order    int               `json:"order"`
	Duration int               `json:"duration"`
}

// UpdateLessonRequest describes a partial lesson update.
type UpdateLessonRequest struct {
	Title    *string            `json:"title"`
	Content  *string            `json:"content"`
	Type     *models.LessonType `json:"type"`
	VideoURL *string            `json:"video_url"`
	Order    *int               `json:"order"`
	Duration *int               `json:"duration"`
}

// LessonService manages lessons within a course. Authorization is
// transitive: whoever may modify the course may modify its lessons.
type LessonService struct {
	repo      lessonRepository
	courses   courseReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs LessonService.
func NewLessonService(repo lessonRepository, courses courseReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, courses: courses, cache: cache, validator: validate, logger: logger}
}

// List returns the lessons of a course in their configured order.
func (s *LessonService) List(ctx context.Context, courseID string) ([]models.Lesson, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	lessons, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// Get returns a single lesson within a course.
func (s *LessonService) Get(ctx context.Context, courseID, lessonID string) (*models.Lesson, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	lesson, err := s.repo.FindByIDAndCourse(ctx, lessonID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// Create adds a lesson to a course owned by the acting user.
func (s *LessonService) Create(ctx context.Context, actorID string, role models.UserRole, courseID string, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !canModify(course, actorID, role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only add lessons to your own courses")
	}

	lessonType := req.Type
	if lessonType == "" {
		lessonType = models.LessonTypeText
	}
	if !lessonType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid lesson type")
	}

	lesson := &models.Lesson{
		CourseID: courseID,
		Title:    req.Title,
		Content:  req.Content,
		Type:     lessonType,
		VideoURL: req.VideoURL,
		Order:    req.Order,
		Duration: req.Duration,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	s.invalidate(ctx)
	return lesson, nil
}

// Update modifies a lesson within a course owned by the acting user.
func (s *LessonService) Update(ctx context.Context, actorID string, role models.UserRole, courseID, lessonID string, req UpdateLessonRequest) (*models.Lesson, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lesson, err := s.repo.FindByIDAndCourse(ctx, lessonID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if !canModify(course, actorID, role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only update lessons on your own courses")
	}

	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.Content != nil {
		lesson.Content = *req.Content
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid lesson type")
		}
		lesson.Type = *req.Type
	}
	if req.VideoURL != nil {
		lesson.VideoURL = *req.VideoURL
	}
	if req.Order != nil {
		lesson.Order = *req.Order
	}
	if req.Duration != nil {
		lesson.Duration = *req.Duration
	}

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	s.invalidate(ctx)
	return lesson, nil
}

// Delete removes a lesson from a course owned by the acting user.
func (s *LessonService) Delete(ctx context.Context, actorID string, role models.UserRole, courseID, lessonID string) error {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return err
	}
	lesson, err := s.repo.FindByIDAndCourse(ctx, lessonID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if !canModify(course, actorID, role) {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only delete lessons on your own courses")
	}

	if err := s.repo.Delete(ctx, lesson.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	s.invalidate(ctx)
	return nil
}

func (s *LessonService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *LessonService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "courses:*"); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Error(err))
	}
}
