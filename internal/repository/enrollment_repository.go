package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, course_id, progress, completed_lessons, enrolled_at, updated_at`

// FindByPair returns the enrollment for a (student, course) pair.
func (r *EnrollmentRepository) FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// Create inserts a new enrollment. The unique index on
// (student_id, course_id) turns a concurrent double-enroll into ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.CompletedLessons == nil {
		enrollment.CompletedLessons = pq.StringArray{}
	}

	const query = `INSERT INTO enrollments (id, student_id, course_id, progress, completed_lessons, enrolled_at, updated_at)
VALUES (:id, :student_id, :course_id, :progress, :completed_lessons, :enrolled_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateProgress persists the completed set and its derived progress value.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id string, completed pq.StringArray, progress float64) error {
	const query = `UPDATE enrollments SET completed_lessons = $2, progress = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, completed, progress, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

// Delete removes the enrollment for a (student, course) pair. Returns
// sql.ErrNoRows when nothing matched.
func (r *EnrollmentRepository) Delete(ctx context.Context, studentID, courseID string) error {
	const query = `DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2`
	result, err := r.db.ExecContext(ctx, query, studentID, courseID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type enrollmentDetailRow struct {
	models.Enrollment
	CID           sql.NullString  `db:"c_id"`
	CTitle        sql.NullString  `db:"c_title"`
	CDescription  sql.NullString  `db:"c_description"`
	CInstructorID sql.NullString  `db:"c_instructor_id"`
	CCategory     sql.NullString  `db:"c_category"`
	CPrice        sql.NullFloat64 `db:"c_price"`
	CDuration     sql.NullInt64   `db:"c_duration"`
	CLevel        sql.NullString  `db:"c_level"`
	CIsPublished  sql.NullBool    `db:"c_is_published"`
	CCreatedAt    sql.NullTime    `db:"c_created_at"`
	CUpdatedAt    sql.NullTime    `db:"c_updated_at"`
}

// List returns enrollments scoped by the filter, each carrying a course
// snapshot read in the same query.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	base := `SELECT e.id, e.student_id, e.course_id, e.progress, e.completed_lessons, e.enrolled_at, e.updated_at,
        c.id AS c_id, c.title AS c_title, c.description AS c_description, c.instructor_id AS c_instructor_id,
        c.category AS c_category, c.price AS c_price, c.duration AS c_duration, c.level AS c_level,
        c.is_published AS c_is_published, c.created_at AS c_created_at, c.updated_at AS c_updated_at
        FROM enrollments e
        LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.enrolled_at DESC"

	var rows []enrollmentDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	details := make([]models.EnrollmentDetail, 0, len(rows))
	for _, row := range rows {
		detail := models.EnrollmentDetail{Enrollment: row.Enrollment}
		if row.CID.Valid {
			detail.Course = &models.Course{
				ID:           row.CID.String,
				Title:        row.CTitle.String,
				Description:  row.CDescription.String,
				InstructorID: row.CInstructorID.String,
				Category:     row.CCategory.String,
				Price:        row.CPrice.Float64,
				Duration:     int(row.CDuration.Int64),
				Level:        row.CLevel.String,
				IsPublished:  row.CIsPublished.Bool,
				CreatedAt:    row.CCreatedAt.Time,
				UpdatedAt:    row.CUpdatedAt.Time,
			}
		}
		details = append(details, detail)
	}
	return details, nil
}

// ProgressRows returns per-student progress for a course, used by report
// generation.
func (r *EnrollmentRepository) ProgressRows(ctx context.Context, courseID string) ([]models.ProgressRow, error) {
	const query = `SELECT e.student_id, u.email AS student_email, e.progress,
        COALESCE(array_length(e.completed_lessons, 1), 0) AS completed_count,
        e.enrolled_at, e.updated_at AS last_activity_at
        FROM enrollments e
        JOIN users u ON u.id = e.student_id
        WHERE e.course_id = $1
        ORDER BY u.email ASC`
	var rows []models.ProgressRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list progress rows: %w", err)
	}
	return rows, nil
}
