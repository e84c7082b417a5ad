// internal/models/job.go
package models

import (
	"strings"
	"time"
)

// Stage is a phase of the automation pipeline.
type Stage string

const (
	StageInitiated    Stage = "INITIATED"
	StageVerification Stage = "VERIFICATION"
	StageDrafting     Stage = "DRAFTING"
	StagePackaging    Stage = "PACKAGING"
	StageCompleted    Stage = "COMPLETED"
)

var stageOrder = map[Stage]int{
	StageInitiated:    0,
	StageVerification: 1,
	StageDrafting:     2,
	StagePackaging:    3,
	StageCompleted:    4,
}

// Index returns the position of the stage in pipeline order, or -1 if unknown.
func (s Stage) Index() int {
	if i, ok := stageOrder[s]; ok {
		return i
	}
	return -1
}

// JobStatus is the terminal-or-not status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// FailureReason is the structured cause recorded alongside the free-text log on failure.
type FailureReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   Stage  `json:"stage"`
}

// Job is one asynchronous pipeline run for a submission.
type Job struct {
	ID            string         `json:"id"`
	OrderID       string         `json:"orderId"`
	Type          string         `json:"type"`
	CurrentStage  Stage          `json:"currentStage"`
	Status        JobStatus      `json:"status"`
	Logs          []string       `json:"logs"`
	FailureReason *FailureReason `json:"failureReason,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

// NewJob returns a pending job at the INITIATED stage. The ID is assigned by the store.
func NewJob(orderID, jobType string) *Job {
	now := time.Now().UTC()
	return &Job{
		OrderID:      orderID,
		Type:         jobType,
		CurrentStage: StageInitiated,
		Status:       JobStatusPending,
		Logs:         []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the job reached COMPLETED or FAILED.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// AppendLog appends a progress line.
func (j *Job) AppendLog(line string) {
	j.Logs = append(j.Logs, line)
}

// LogText returns the logs joined by newlines.
func (j *Job) LogText() string {
	return strings.Join(j.Logs, "\n")
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Logs = append([]string(nil), j.Logs...)
	if out.Logs == nil {
		out.Logs = []string{}
	}
	if j.FailureReason != nil {
		fr := *j.FailureReason
		out.FailureReason = &fr
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
