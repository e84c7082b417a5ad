// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"filing-automation/internal/automation"
	apperrors "filing-automation/internal/common/errors"
	"filing-automation/internal/models"
	"filing-automation/internal/search"
	"filing-automation/internal/store"

	"github.com/gin-gonic/gin"
)

// JobStarter starts automation jobs.
type JobStarter interface {
	Start(ctx context.Context, submissionID, registrationType string) (*models.Job, error)
}

// StatusReader answers polling requests.
type StatusReader interface {
	Status(ctx context.Context, submissionID string) (*automation.StatusView, error)
	Logs(ctx context.Context, submissionID string) (*automation.LogsView, error)
	Record(ctx context.Context, submissionID string) (*models.ApplicationRecord, error)
}

// FailureReporter aggregates failed jobs from the search index.
type FailureReporter interface {
	FailuresSince(ctx context.Context, since time.Time) ([]search.FailureCount, error)
}

// Handler serves the automation HTTP API.
type Handler struct {
	starter  JobStarter
	reader   StatusReader
	failures FailureReporter
}

func NewHandler(starter JobStarter, reader StatusReader, failures FailureReporter) *Handler {
	return &Handler{starter: starter, reader: reader, failures: failures}
}

type startRequest struct {
	SubmissionID     string `json:"submissionId"`
	RegistrationType string `json:"registrationType"`
}

type startResponse struct {
	JobID        string           `json:"jobId"`
	SubmissionID string           `json:"submissionId"`
	Status       models.JobStatus `json:"status"`
	CurrentStage models.Stage     `json:"currentStage"`
}

// StartJob handles POST /api/v1/automation/jobs.
func (h *Handler) StartJob(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(apperrors.ErrCodeInvalidRequest), "Request body must be JSON", err.Error())
		return
	}

	job, err := h.starter.Start(c.Request.Context(), req.SubmissionID, req.RegistrationType)
	if err != nil {
		writeStartError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, startResponse{
		JobID:        job.ID,
		SubmissionID: job.OrderID,
		Status:       job.Status,
		CurrentStage: job.CurrentStage,
	})
}

// Status handles GET /api/v1/automation/submissions/:submissionId/status.
func (h *Handler) Status(c *gin.Context) {
	view, err := h.reader.Status(c.Request.Context(), c.Param("submissionId"))
	if err != nil {
		writeQueryError(c, err, apperrors.ErrCodeJobNotFound, "No automation job for submission")
		return
	}
	respondJSON(c, http.StatusOK, view)
}

// Logs handles GET /api/v1/automation/submissions/:submissionId/logs.
func (h *Handler) Logs(c *gin.Context) {
	view, err := h.reader.Logs(c.Request.Context(), c.Param("submissionId"))
	if err != nil {
		writeQueryError(c, err, apperrors.ErrCodeJobNotFound, "No automation job for submission")
		return
	}
	respondJSON(c, http.StatusOK, view)
}

// Record handles GET /api/v1/automation/submissions/:submissionId/record.
func (h *Handler) Record(c *gin.Context) {
	rec, err := h.reader.Record(c.Request.Context(), c.Param("submissionId"))
	if err != nil {
		writeQueryError(c, err, apperrors.ErrCodeRecordNotFound, "Application record not found")
		return
	}
	respondJSON(c, http.StatusOK, rec)
}

// Failures handles GET /api/v1/automation/failures?since=24h.
func (h *Handler) Failures(c *gin.Context) {
	window := 24 * time.Hour
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(c, http.StatusBadRequest, string(apperrors.ErrCodeInvalidRequest), "since must be a positive duration such as 24h", raw)
			return
		}
		window = d
	}

	since := time.Now().UTC().Add(-window)
	counts, err := h.failures.FailuresSince(c.Request.Context(), since)
	if err != nil {
		respondError(c, http.StatusBadGateway, string(apperrors.ErrCodeInternalError), "Search backend unavailable", err.Error())
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"since": since, "failures": counts})
}

func writeStartError(c *gin.Context, err error) {
	if errors.Is(err, automation.ErrInvalidRequest) {
		details := err.Error()
		if stdErr, ok := apperrors.AsStandardError(err); ok {
			details = stdErr.Details
		}
		respondError(c, http.StatusBadRequest, string(apperrors.ErrCodeInvalidRequest), "Invalid request", details)
		return
	}

	stdErr := apperrors.Normalize(err)
	status := http.StatusInternalServerError
	if apperrors.GetErrorCategory(stdErr.Code) == apperrors.CategoryTransientIO {
		status = http.StatusServiceUnavailable
	}
	respondError(c, status, string(stdErr.Code), stdErr.Message, nil)
}

func writeQueryError(c *gin.Context, err error, notFound apperrors.ErrorCode, message string) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, string(notFound), message, c.Param("submissionId"))
		return
	}
	respondError(c, http.StatusInternalServerError, string(apperrors.ErrCodeInternalError), "Query failed", nil)
}
