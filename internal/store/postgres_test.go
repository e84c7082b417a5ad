// internal/store/postgres_test.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"filing-automation/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	recordCols = []string{"submission_id", "registration_type", "status", "uploaded_documents",
		"generated_drafts", "form_data", "package_path", "created_at", "updated_at"}
	jobCols = []string{"id", "order_id", "type", "current_stage", "status", "logs",
		"failure_reason", "created_at", "updated_at", "completed_at"}
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func recordRow(submissionID string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(recordCols).AddRow(
		submissionID, "PRIVATE_LIMITED_COMPANY_REGISTRATION", "INITIATED",
		[]byte(`{"PAN":"s3://docs/pan.pdf"}`), []byte(`{}`), []byte(`{"companyName":"Acme"}`),
		"", now, now,
	)
}

func TestPostgresRecordStore_FindBySubmissionID(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresRecordStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM application_records WHERE submission_id`).
		WithArgs("SUB-001").
		WillReturnRows(recordRow("SUB-001"))

	rec, err := s.FindBySubmissionID(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusInitiated, rec.Status)
	assert.Equal(t, "s3://docs/pan.pdf", rec.UploadedDocuments["PAN"])
	assert.NotNil(t, rec.GeneratedDrafts)
	assert.Equal(t, "Acme", rec.FormData["companyName"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStore_FindMissing(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresRecordStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM application_records`).
		WithArgs("SUB-404").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindBySubmissionID(context.Background(), "SUB-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRecordStore_CreateExisting(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresRecordStore(db)

	mock.ExpectExec(`INSERT INTO application_records (.+) ON CONFLICT \(submission_id\) DO NOTHING`).
		WithArgs("SUB-001", "PRIVATE_LIMITED_COMPANY_REGISTRATION", "INITIATED",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM application_records`).
		WithArgs("SUB-001").
		WillReturnRows(recordRow("SUB-001"))

	rec, created, err := s.Create(context.Background(),
		models.NewApplicationRecord("SUB-001", "PRIVATE_LIMITED_COMPANY_REGISTRATION"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "s3://docs/pan.pdf", rec.UploadedDocuments["PAN"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStore_SaveUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresRecordStore(db)

	rec := models.NewApplicationRecord("SUB-001", "GST_REGISTRATION")
	rec.GeneratedDrafts["GST_REG_01"] = "drafts/SUB-001/GST_REG_01.json"

	mock.ExpectExec(`INSERT INTO application_records (.+) ON CONFLICT \(submission_id\) DO UPDATE`).
		WithArgs("SUB-001", "GST_REGISTRATION", "INITIATED",
			[]byte(`{}`), []byte(`{"GST_REG_01":"drafts/SUB-001/GST_REG_01.json"}`), []byte(`{}`),
			"", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := s.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStore_UpdateDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresRecordStore(db)

	mock.ExpectExec(`UPDATE application_records SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.Update(context.Background(), models.NewApplicationRecord("SUB-001", "GST_REGISTRATION"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRecordStore_SaveFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresRecordStore(db)

	mock.ExpectExec(`INSERT INTO application_records`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.Save(context.Background(), models.NewApplicationRecord("SUB-001", "GST_REGISTRATION"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func jobRow(id, status, stage string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(jobCols).AddRow(
		id, "SUB-001", "GST_REGISTRATION", stage, status,
		[]byte(`["Validating Documents..."]`), nil, now, now, nil,
	)
}

func TestPostgresJobStore_CreateAssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresJobStore(db)

	mock.ExpectExec(`INSERT INTO automation_jobs`).
		WithArgs(sqlmock.AnyArg(), "SUB-001", "GST_REGISTRATION", "INITIATED", "PENDING",
			[]byte(`[]`), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job, err := s.Create(context.Background(), models.NewJob("SUB-001", "GST_REGISTRATION"))
	require.NoError(t, err)
	assert.Len(t, job.ID, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_Get(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresJobStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM automation_jobs WHERE id`).
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", "PENDING", "VERIFICATION"))

	job, err := s.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageVerification, job.CurrentStage)
	assert.Equal(t, []string{"Validating Documents..."}, job.Logs)
	assert.Nil(t, job.FailureReason)
	assert.Nil(t, job.CompletedAt)
}

func TestPostgresJobStore_UpdatePending(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresJobStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM automation_jobs WHERE id`).
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", "PENDING", "VERIFICATION"))
	mock.ExpectExec(`UPDATE automation_jobs SET (.+) WHERE id = \$1 AND status = 'PENDING'`).
		WithArgs("job-1", "VERIFICATION", "FAILED", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	job := models.NewJob("SUB-001", "GST_REGISTRATION")
	job.ID = "job-1"
	job.CurrentStage = models.StageVerification
	job.Status = models.JobStatusFailed
	job.FailureReason = &models.FailureReason{Code: "STRATEGY_NOT_FOUND", Stage: models.StageVerification}
	now := time.Now().UTC()
	job.CompletedAt = &now

	updated, err := s.Update(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, updated.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_UpdateTerminalRejected(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresJobStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM automation_jobs WHERE id`).
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", "COMPLETED", "COMPLETED"))

	job := models.NewJob("SUB-001", "GST_REGISTRATION")
	job.ID = "job-1"
	job.CurrentStage = models.StageCompleted

	_, err := s.Update(context.Background(), job)
	assert.ErrorIs(t, err, ErrJobTerminal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_UpdateLostRace(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresJobStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM automation_jobs WHERE id`).
		WithArgs("job-1").
		WillReturnRows(jobRow("job-1", "PENDING", "PACKAGING"))
	mock.ExpectExec(`UPDATE automation_jobs SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	job := models.NewJob("SUB-001", "GST_REGISTRATION")
	job.ID = "job-1"
	job.CurrentStage = models.StageCompleted
	job.Status = models.JobStatusCompleted

	_, err := s.Update(context.Background(), job)
	assert.ErrorIs(t, err, ErrJobTerminal)
}

func TestPostgresJobStore_LatestBySubmission(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresJobStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM automation_jobs WHERE order_id = \$1\s+ORDER BY created_at DESC, seq DESC LIMIT 1`).
		WithArgs("SUB-001").
		WillReturnRows(jobRow("job-2", "PENDING", "DRAFTING"))

	job, err := s.LatestBySubmission(context.Background(), "SUB-001")
	require.NoError(t, err)
	assert.Equal(t, "job-2", job.ID)

	mock.ExpectQuery(`SELECT (.+) FROM automation_jobs WHERE order_id`).
		WithArgs("SUB-404").
		WillReturnError(sql.ErrNoRows)
	_, err = s.LatestBySubmission(context.Background(), "SUB-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresJobStore_DeleteBySubmission(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresJobStore(db)

	mock.ExpectExec(`DELETE FROM automation_jobs WHERE order_id`).
		WithArgs("SUB-001").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.DeleteBySubmission(context.Background(), "SUB-001"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
