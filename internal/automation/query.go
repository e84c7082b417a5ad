// internal/automation/query.go
package automation

import (
	"context"
	"fmt"
	"time"

	"filing-automation/internal/models"
	"filing-automation/internal/store"
)

var stageProgress = map[models.Stage]int{
	models.StageInitiated:    0,
	models.StageVerification: 25,
	models.StageDrafting:     50,
	models.StagePackaging:    75,
	models.StageCompleted:    100,
}

// Progress maps a job to a 0-100 percentage. Failed jobs report the stage they failed in.
func Progress(job *models.Job) int {
	stage := job.CurrentStage
	if job.Status == models.JobStatusFailed && job.FailureReason != nil && job.FailureReason.Stage != "" {
		stage = job.FailureReason.Stage
	}
	return stageProgress[stage]
}

// StatusView is what pollers see for a submission's latest job.
type StatusView struct {
	JobID         string                `json:"jobId"`
	SubmissionID  string                `json:"submissionId"`
	Type          string                `json:"type"`
	Status        models.JobStatus      `json:"status"`
	CurrentStage  models.Stage          `json:"currentStage"`
	Progress      int                   `json:"progress"`
	FailureReason *models.FailureReason `json:"failureReason,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	CompletedAt   *time.Time            `json:"completedAt,omitempty"`
}

// LogsView carries the ordered log lines of the latest job.
type LogsView struct {
	SubmissionID string   `json:"submissionId"`
	JobID        string   `json:"jobId"`
	Logs         []string `json:"logs"`
}

// Query answers polling requests. Missing data is reported with store.ErrNotFound.
type Query struct {
	jobs    store.JobStore
	records store.RecordStore
}

func NewQuery(jobs store.JobStore, records store.RecordStore) *Query {
	return &Query{jobs: jobs, records: records}
}

func (q *Query) Status(ctx context.Context, submissionID string) (*StatusView, error) {
	job, err := q.jobs.LatestBySubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("latest job for %s: %w", submissionID, err)
	}
	return &StatusView{
		JobID:         job.ID,
		SubmissionID:  job.OrderID,
		Type:          job.Type,
		Status:        job.Status,
		CurrentStage:  job.CurrentStage,
		Progress:      Progress(job),
		FailureReason: job.FailureReason,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		CompletedAt:   job.CompletedAt,
	}, nil
}

func (q *Query) Logs(ctx context.Context, submissionID string) (*LogsView, error) {
	job, err := q.jobs.LatestBySubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("latest job for %s: %w", submissionID, err)
	}
	logs := job.Logs
	if logs == nil {
		logs = []string{}
	}
	return &LogsView{SubmissionID: job.OrderID, JobID: job.ID, Logs: logs}, nil
}

func (q *Query) Record(ctx context.Context, submissionID string) (*models.ApplicationRecord, error) {
	rec, err := q.records.FindBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", submissionID, err)
	}
	return rec, nil
}
