// internal/common/errors/handler.go
package errors

import (
	"time"

	"filing-automation/internal/models"
)

// ErrorHandler turns stage errors into retry decisions and job failure reasons.
type ErrorHandler struct {
	logger     Logger
	maxRetries int
	baseDelay  time.Duration
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger, maxRetries int, baseDelay time.Duration) *ErrorHandler {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ErrorHandler{logger: logger, maxRetries: maxRetries, baseDelay: baseDelay}
}

// ShouldRetry reports whether attempt (zero based) may be retried and the delay before it.
func (h *ErrorHandler) ShouldRetry(err error, attempt int) (bool, time.Duration) {
	if err == nil || !IsRetryable(err) || attempt >= h.maxRetries {
		return false, 0
	}
	return true, h.baseDelay * time.Duration(1<<uint(attempt))
}

// HandleStageError normalizes err, logs it and returns the failure reason to record on the job.
func (h *ErrorHandler) HandleStageError(jobID string, stage models.Stage, err error) *models.FailureReason {
	stdErr := Normalize(err)
	if h.logger != nil {
		h.logger.Error("Automation stage failed", map[string]interface{}{
			"jobId":     jobID,
			"stage":     string(stage),
			"errorCode": string(stdErr.Code),
			"category":  GetErrorCategory(stdErr.Code),
			"retryable": stdErr.Retryable,
			"details":   stdErr.Details,
		})
	}
	return ToFailureReason(stdErr, stage)
}

// ToFailureReason builds the structured failure reason stored on a failed job.
func ToFailureReason(err error, stage models.Stage) *models.FailureReason {
	stdErr := Normalize(err)
	if stdErr == nil {
		return nil
	}
	msg := stdErr.Message
	if stdErr.Details != "" && stdErr.Code != ErrCodeStrategyNotFound {
		msg = msg + ": " + stdErr.Details
	}
	return &models.FailureReason{
		Code:    string(stdErr.Code),
		Message: msg,
		Stage:   stage,
	}
}
