package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type lessonReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

type lessonCascader interface {
	DeleteByCourse(ctx context.Context, courseID string) error
}

// CreateCourseRequest describes the course creation payload.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Duration    int     `json:"duration"`
	Level       string  `json:"level"`
	IsPublished bool    `json:"is_published"`
}

// UpdateCourseRequest describes a partial course update. Nil fields keep the
// stored value.
type UpdateCourseRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Duration    *int     `json:"duration"`
	Level       *string  `json:"level"`
	IsPublished *bool    `json:"is_published"`
}

// canModify is the single ownership predicate for course and lesson
// mutation: admins may act on anything, instructors only on their own courses.
func canModify(course *models.Course, userID string, role models.UserRole) bool {
	return role == models.RoleAdmin || course.InstructorID == userID
}

// CourseService orchestrates the course catalog.
type CourseService struct {
	repo      courseRepository
	lessons   lessonReader
	cascade   lessonCascader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, lessons lessonReader, cascade lessonCascader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, lessons: lessons, cascade: cascade, cache: cache, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, *models.Pagination, error) {
	key := courseListCacheKey(filter)
	var cached struct {
		Courses    []models.CourseSummary `json:"courses"`
		Pagination models.Pagination      `json:"pagination"`
	}
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Courses, &cached.Pagination, nil
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	cached.Courses = courses
	cached.Pagination = *pagination
	_ = s.cache.Set(ctx, key, cached, 0)

	return courses, pagination, nil
}

// Get returns a course with its lessons embedded.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	key := "courses:detail:" + id
	var cached models.CourseDetail
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	lessons, err := s.lessons.ListByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}

	detail := &models.CourseDetail{Course: *course, Lessons: lessons, LessonCount: len(lessons)}
	_ = s.cache.Set(ctx, key, detail, 0)
	return detail, nil
}

// Create registers a new course owned by the acting user.
func (s *CourseService) Create(ctx context.Context, actorID string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	level := req.Level
	if level == "" {
		level = "Beginner"
	}
	course := &models.Course{
		Title:        req.Title,
		Description:  req.Description,
		InstructorID: actorID,
		Category:     req.Category,
		Price:        req.Price,
		Duration:     req.Duration,
		Level:        level,
		IsPublished:  req.IsPublished,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidate(ctx)
	return course, nil
}

// Update modifies a course. Existence is checked before ownership so a
// missing course is reported as not-found, never as forbidden.
func (s *CourseService) Update(ctx context.Context, actorID string, role models.UserRole, courseID string, req UpdateCourseRequest) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !canModify(course, actorID, role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only update your own courses")
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Duration != nil {
		course.Duration = *req.Duration
	}
	if req.Level != nil {
		course.Level = *req.Level
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidate(ctx)
	return course, nil
}

// Delete removes a course and cascades to its lessons.
func (s *CourseService) Delete(ctx context.Context, actorID string, role models.UserRole, courseID string) error {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !canModify(course, actorID, role) {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only delete your own courses")
	}

	if err := s.repo.Delete(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if err := s.cascade.DeleteByCourse(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course lessons")
	}
	s.invalidate(ctx)
	return nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "courses:*"); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Error(err))
	}
}

func courseListCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("courses:list:%s:%s:%s:%d:%d:%s:%s",
		filter.InstructorID, filter.Category, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}
