// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"filing-automation/internal/models"

	"github.com/google/uuid"
)

const recordColumns = `submission_id, registration_type, status, uploaded_documents, generated_drafts, form_data, package_path, created_at, updated_at`

// PostgresRecordStore keeps records in the application_records table.
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) FindBySubmissionID(ctx context.Context, submissionID string) (*models.ApplicationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM application_records WHERE submission_id = $1`,
		submissionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select record %s: %w", submissionID, err)
	}
	return rec, nil
}

func (s *PostgresRecordStore) Create(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, bool, error) {
	args, err := recordArgs(record)
	if err != nil {
		return nil, false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO application_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (submission_id) DO NOTHING`,
		args...)
	if err != nil {
		return nil, false, fmt.Errorf("insert record %s: %w", record.SubmissionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert record %s: %w", record.SubmissionID, err)
	}

	stored, err := s.FindBySubmissionID(ctx, record.SubmissionID)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

func (s *PostgresRecordStore) Save(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, error) {
	rec := record.Clone()
	rec.EnsureMaps()
	rec.UpdatedAt = time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	args, err := recordArgs(rec)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO application_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (submission_id) DO UPDATE SET
		   registration_type = EXCLUDED.registration_type,
		   status = EXCLUDED.status,
		   uploaded_documents = EXCLUDED.uploaded_documents,
		   generated_drafts = EXCLUDED.generated_drafts,
		   form_data = EXCLUDED.form_data,
		   package_path = EXCLUDED.package_path,
		   updated_at = EXCLUDED.updated_at`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("upsert record %s: %w", rec.SubmissionID, err)
	}
	return rec, nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, error) {
	rec := record.Clone()
	rec.EnsureMaps()
	rec.UpdatedAt = time.Now().UTC()

	uploaded, drafts, form, err := marshalRecordMaps(rec)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE application_records SET
		   registration_type = $2, status = $3, uploaded_documents = $4, generated_drafts = $5,
		   form_data = $6, package_path = $7, updated_at = $8
		 WHERE submission_id = $1`,
		rec.SubmissionID, rec.RegistrationType, string(rec.Status), uploaded, drafts, form, rec.PackagePath, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update record %s: %w", rec.SubmissionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update record %s: %w", rec.SubmissionID, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *PostgresRecordStore) Delete(ctx context.Context, submissionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM application_records WHERE submission_id = $1`, submissionID); err != nil {
		return fmt.Errorf("delete record %s: %w", submissionID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.ApplicationRecord, error) {
	var (
		rec                     models.ApplicationRecord
		status                  string
		uploaded, drafts, forms []byte
	)
	if err := row.Scan(&rec.SubmissionID, &rec.RegistrationType, &status, &uploaded, &drafts, &forms,
		&rec.PackagePath, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = models.ApplicationStatus(status)
	if err := unmarshalJSONB(uploaded, &rec.UploadedDocuments); err != nil {
		return nil, fmt.Errorf("decode uploaded_documents: %w", err)
	}
	if err := unmarshalJSONB(drafts, &rec.GeneratedDrafts); err != nil {
		return nil, fmt.Errorf("decode generated_drafts: %w", err)
	}
	if err := unmarshalJSONB(forms, &rec.FormData); err != nil {
		return nil, fmt.Errorf("decode form_data: %w", err)
	}
	rec.EnsureMaps()
	return &rec, nil
}

func recordArgs(rec *models.ApplicationRecord) ([]interface{}, error) {
	uploaded, drafts, form, err := marshalRecordMaps(rec)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		rec.SubmissionID, rec.RegistrationType, string(rec.Status), uploaded, drafts, form,
		rec.PackagePath, rec.CreatedAt, rec.UpdatedAt,
	}, nil
}

func marshalRecordMaps(rec *models.ApplicationRecord) ([]byte, []byte, []byte, error) {
	c := rec.Clone()
	c.EnsureMaps()
	uploaded, err := json.Marshal(c.UploadedDocuments)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode uploaded_documents: %w", err)
	}
	drafts, err := json.Marshal(c.GeneratedDrafts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode generated_drafts: %w", err)
	}
	form, err := json.Marshal(c.FormData)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode form_data: %w", err)
	}
	return uploaded, drafts, form, nil
}

func unmarshalJSONB(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

const jobColumns = `id, order_id, type, current_stage, status, logs, failure_reason, created_at, updated_at, completed_at`

// PostgresJobStore keeps jobs in the automation_jobs table.
type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

func (s *PostgresJobStore) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	stored := job.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt

	logs, failure, err := marshalJobFields(stored)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO automation_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		stored.ID, stored.OrderID, stored.Type, string(stored.CurrentStage), string(stored.Status),
		logs, failure, stored.CreatedAt, stored.UpdatedAt, stored.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return stored, nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM automation_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job %s: %w", id, err)
	}
	return job, nil
}

// Update only touches rows still PENDING, so a terminal job is never overwritten
// even when two writers race.
func (s *PostgresJobStore) Update(ctx context.Context, job *models.Job) (*models.Job, error) {
	stored, err := s.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(stored, job); err != nil {
		return nil, err
	}

	next := job.Clone()
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	logs, failure, err := marshalJobFields(next)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_jobs SET
		   current_stage = $2, status = $3, logs = $4, failure_reason = $5, updated_at = $6, completed_at = $7
		 WHERE id = $1 AND status = 'PENDING'`,
		next.ID, string(next.CurrentStage), string(next.Status), logs, failure, next.UpdatedAt, next.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("update job %s: %w", next.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update job %s: %w", next.ID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrJobTerminal, next.ID)
	}
	return next, nil
}

func (s *PostgresJobStore) LatestBySubmission(ctx context.Context, submissionID string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM automation_jobs WHERE order_id = $1
		 ORDER BY created_at DESC, seq DESC LIMIT 1`,
		submissionID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select latest job for %s: %w", submissionID, err)
	}
	return job, nil
}

func (s *PostgresJobStore) DeleteBySubmission(ctx context.Context, submissionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM automation_jobs WHERE order_id = $1`, submissionID); err != nil {
		return fmt.Errorf("delete jobs for %s: %w", submissionID, err)
	}
	return nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job           models.Job
		stage, status string
		logs, failure []byte
		completedAt   sql.NullTime
	)
	if err := row.Scan(&job.ID, &job.OrderID, &job.Type, &stage, &status, &logs, &failure,
		&job.CreatedAt, &job.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	job.CurrentStage = models.Stage(stage)
	job.Status = models.JobStatus(status)
	if err := unmarshalJSONB(logs, &job.Logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	if job.Logs == nil {
		job.Logs = []string{}
	}
	if len(failure) > 0 && string(failure) != "null" {
		job.FailureReason = &models.FailureReason{}
		if err := json.Unmarshal(failure, job.FailureReason); err != nil {
			return nil, fmt.Errorf("decode failure_reason: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func marshalJobFields(job *models.Job) ([]byte, []byte, error) {
	logs := job.Logs
	if logs == nil {
		logs = []string{}
	}
	rawLogs, err := json.Marshal(logs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode logs: %w", err)
	}
	var rawFailure []byte
	if job.FailureReason != nil {
		if rawFailure, err = json.Marshal(job.FailureReason); err != nil {
			return nil, nil, fmt.Errorf("encode failure_reason: %w", err)
		}
	}
	return rawLogs, rawFailure, nil
}
