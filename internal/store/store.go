// Package store persists application records and automation jobs.
package store

import (
	"context"
	"errors"
	"fmt"

	"filing-automation/internal/models"
)

var (
	// ErrNotFound is returned when a record or job does not exist.
	ErrNotFound = errors.New("not found")
	// ErrJobTerminal is returned when updating a job that already reached COMPLETED or FAILED.
	ErrJobTerminal = errors.New("job is terminal")
	// ErrStageRegression is returned when an update would move a job's stage backwards.
	ErrStageRegression = errors.New("job stage cannot move backwards")
)

// RecordStore persists ApplicationRecords keyed by submission id.
type RecordStore interface {
	FindBySubmissionID(ctx context.Context, submissionID string) (*models.ApplicationRecord, error)
	// Create inserts record unless one exists for its submission. It returns the
	// stored record and whether this call created it.
	Create(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, bool, error)
	// Save upserts record.
	Save(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, error)
	// Update overwrites an existing record and fails with ErrNotFound if it was deleted.
	Update(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, error)
	Delete(ctx context.Context, submissionID string) error
}

// JobStore persists automation jobs.
type JobStore interface {
	// Create assigns an id when the job has none and stores it.
	Create(ctx context.Context, job *models.Job) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	// Update overwrites a pending job. Terminal jobs are immutable.
	Update(ctx context.Context, job *models.Job) (*models.Job, error)
	// LatestBySubmission returns the most recently created job for a submission.
	LatestBySubmission(ctx context.Context, submissionID string) (*models.Job, error)
	DeleteBySubmission(ctx context.Context, submissionID string) error
}

// checkTransition enforces the job lifecycle between the stored and the proposed state.
func checkTransition(stored, next *models.Job) error {
	if stored.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobTerminal, stored.ID, stored.Status)
	}
	if next.CurrentStage.Index() < stored.CurrentStage.Index() {
		return fmt.Errorf("%w: %s -> %s", ErrStageRegression, stored.CurrentStage, next.CurrentStage)
	}
	return nil
}
