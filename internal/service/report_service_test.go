package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
)

type mockReportStore struct {
	jobs    map[string]models.ReportJob
	updates map[string][]repository.UpdateReportJobParams
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{jobs: make(map[string]models.ReportJob), updates: make(map[string][]repository.UpdateReportJobParams)}
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if j, ok := m.jobs[id]; ok {
		return &j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	j, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		j.Status = *params.Status
	}
	if params.ResultURL != nil {
		j.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		j.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		j.FinishedAt = params.FinishedAt
	}
	m.jobs[id] = j
	m.updates[id] = append(m.updates[id], params)
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, j := range m.jobs {
		if j.Status == models.ReportStatusQueued {
			out = append(out, j)
		}
	}
	return out, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	fail     bool
}

func (m *mockDispatcher) Enqueue(_ context.Context, job jobs.Job) error {
	if m.fail {
		return errors.New("queue full")
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockExporter struct {
	result *ExportResult
	err    error
}

func (m *mockExporter) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newReportFixture(dispatcher *mockDispatcher) (*ReportService, *mockReportStore) {
	store := newMockReportStore()
	courses := &mockCourseReader{courses: map[string]models.Course{
		"c1": {ID: "c1", Title: "Go Basics", InstructorID: "inst-1"},
	}}
	svc := NewReportService(store, courses, dispatcher, nil, zap.NewNop(), ReportServiceConfig{})
	return svc, store
}

func TestReportServiceCreateJob(t *testing.T) {
	dispatcher := &mockDispatcher{}
	svc, store := newReportFixture(dispatcher)

	resp, err := svc.CreateJob(context.Background(), ReportRequest{CourseID: "c1", Format: models.ReportFormatCSV}, "inst-1", models.RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Len(t, dispatcher.enqueued, 1)
	assert.Len(t, store.jobs, 1)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _ := newReportFixture(&mockDispatcher{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{Format: models.ReportFormatCSV}, "inst-1", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), ReportRequest{CourseID: "c1", Format: "xlsx"}, "inst-1", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobOwnership(t *testing.T) {
	svc, _ := newReportFixture(&mockDispatcher{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{CourseID: "c1", Format: models.ReportFormatPDF}, "inst-2", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), ReportRequest{CourseID: "ghost", Format: models.ReportFormatPDF}, "inst-1", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	svc, store := newReportFixture(&mockDispatcher{fail: true})

	_, err := svc.CreateJob(context.Background(), ReportRequest{CourseID: "c1", Format: models.ReportFormatCSV}, "inst-1", models.RoleInstructor)
	require.Error(t, err)
	for _, j := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, j.Status)
	}
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	svc, store := newReportFixture(&mockDispatcher{})
	store.jobs["job-1"] = models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued, CreatedBy: "inst-1"}

	status, err := svc.GetStatus(context.Background(), "job-1", "inst-1", models.RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, status.Status)

	_, err = svc.GetStatus(context.Background(), "job-1", "inst-2", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.GetStatus(context.Background(), "job-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "ghost", "inst-1", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	dispatcher := &mockDispatcher{}
	svc, store := newReportFixture(dispatcher)
	store.jobs["job-1"] = models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}
	store.jobs["job-2"] = models.ReportJob{ID: "job-2", Status: models.ReportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, "job-1", dispatcher.enqueued[0].ID)
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	store := newMockReportStore()
	store.jobs["job-1"] = models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued, Params: models.ReportJobParams{CourseID: "c1", Format: models.ReportFormatCSV}}
	exporter := &mockExporter{result: &ExportResult{URL: "/api/v1/reports/download/tok"}}
	worker := NewReportWorker(store, exporter, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/reports/download/tok", *job.ResultURL)
	require.NotNil(t, job.FinishedAt)
}

func TestReportWorkerHandleRetriesThenFails(t *testing.T) {
	store := newMockReportStore()
	store.jobs["job-1"] = models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}
	exporter := &mockExporter{err: errors.New("render failed")}
	worker := NewReportWorker(store, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.jobs["job-1"].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render failed", *job.ErrorMessage)
}
