// internal/automation/pipeline.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "filing-automation/internal/common/errors"
	"filing-automation/internal/common/logger"
	"filing-automation/internal/common/metrics"
	"filing-automation/internal/models"
	"filing-automation/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Progress log lines.
const (
	LogValidating = "Validating Documents..."
	LogDrafting   = "Generating Government Forms..."
	LogPackaging  = "Zipping Files..."
	LogFinished   = "Automation Finished Successfully"
)

// errJobGone aborts a run whose job was deleted underneath it.
var errJobGone = errors.New("job deleted during run")

// run is the state of one pipeline execution.
type run struct {
	o        *Orchestrator
	job      *models.Job
	record   *models.ApplicationRecord
	strategy RegistrationStrategy
	stage    models.Stage
	logger   logger.Logger
}

func (o *Orchestrator) newRun(job *models.Job) *run {
	return &run{
		o:     o,
		job:   job,
		stage: job.CurrentStage,
		logger: o.logger.WithFields(map[string]interface{}{
			"jobId":        job.ID,
			"submissionId": job.OrderID,
		}),
	}
}

func runAttributes(job *models.Job) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("automation.job_id", job.ID),
		attribute.String("automation.submission_id", job.OrderID),
		attribute.String("automation.registration_type", job.Type),
	}
}

func (r *run) execute(ctx context.Context) {
	stages := []struct {
		stage models.Stage
		fn    func(context.Context) error
	}{
		{models.StageVerification, r.verify},
		{models.StageDrafting, r.draft},
		{models.StagePackaging, r.pack},
	}

	for _, s := range stages {
		r.stage = s.stage
		if err := r.timed(ctx, s.stage, s.fn); err != nil {
			if errors.Is(err, errJobGone) {
				r.logger.Warn("job deleted mid-run, abandoning", map[string]interface{}{"stage": string(s.stage)})
				return
			}
			if ctx.Err() != nil && !apperrors.HasCode(err, apperrors.ErrCodeRunTimeout) {
				err = apperrors.NewRunTimeoutError(fmt.Errorf("%s: %w", s.stage, err))
			}
			r.fail(ctx, s.stage, err)
			return
		}
	}
	r.complete(ctx)
}

func (r *run) timed(ctx context.Context, stage models.Stage, fn func(context.Context) error) error {
	ctx, span := r.o.obs.StartSpan(ctx, "automation.stage."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.AutomationStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// advance persists the job at stage with a new log line.
func (r *run) advance(ctx context.Context, stage models.Stage, line string) error {
	next := r.job.Clone()
	next.CurrentStage = stage
	next.AppendLog(line)
	updated, err := r.o.jobs.Update(ctx, next)
	if errors.Is(err, store.ErrNotFound) {
		return errJobGone
	}
	if errors.Is(err, store.ErrJobTerminal) {
		return errJobGone
	}
	if err != nil {
		return apperrors.NewRecordPersistenceError("update job", err)
	}
	r.job = updated
	return nil
}

func (r *run) verify(ctx context.Context) error {
	if err := r.advance(ctx, models.StageVerification, LogValidating); err != nil {
		return err
	}

	record, err := r.o.records.FindBySubmissionID(ctx, r.job.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewRecordNotFoundError(r.job.OrderID)
	}
	if err != nil {
		return apperrors.NewRecordPersistenceError("load record", err)
	}
	record.EnsureMaps()
	record.Status = models.ApplicationStatusVerificationInProgress
	if err := r.saveRecord(ctx, record); err != nil {
		return err
	}

	strategy, err := r.o.registry.Resolve(r.job.Type)
	if err != nil {
		return err
	}
	r.strategy = strategy
	r.logger.Debug("strategy resolved", map[string]interface{}{"strategy": strategy.Name()})

	if err := strategy.Validate(ctx, r.record.Clone()); err != nil {
		if _, ok := apperrors.AsStandardError(err); ok {
			return err
		}
		return apperrors.NewApplicationValidationError(err.Error(), nil)
	}
	return nil
}

func (r *run) draft(ctx context.Context) error {
	if err := r.advance(ctx, models.StageDrafting, LogDrafting); err != nil {
		return err
	}

	record := r.record.Clone()
	record.Status = models.ApplicationStatusDrafting
	if err := r.saveRecord(ctx, record); err != nil {
		return err
	}

	var drafts map[string]string
	err := r.retry(ctx, models.StageDrafting, func(ctx context.Context) error {
		out, err := r.strategy.GenerateDrafts(ctx, r.record.Clone())
		if err != nil {
			if _, ok := apperrors.AsStandardError(err); ok {
				return err
			}
			return apperrors.NewDraftGenerationError("", err, false)
		}
		drafts = out
		return nil
	})
	if err != nil {
		return err
	}

	record = r.record.Clone()
	record.MergeDrafts(drafts)
	return r.saveRecord(ctx, record)
}

func (r *run) pack(ctx context.Context) error {
	if err := r.advance(ctx, models.StagePackaging, LogPackaging); err != nil {
		return err
	}

	path := PackagePath(r.o.config.BaseDir, r.record.SubmissionID, r.o.config.PackageExt, r.o.now())
	err := r.retry(ctx, models.StagePackaging, func(ctx context.Context) error {
		if err := r.o.packager.Build(ctx, r.record.Clone(), path); err != nil {
			if _, ok := apperrors.AsStandardError(err); ok {
				return err
			}
			return apperrors.NewPackagingError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	record := r.record.Clone()
	record.PackagePath = path
	record.Status = models.ApplicationStatusReadyForFiling
	return r.saveRecord(ctx, record)
}

// saveRecord updates the record, retrying transient store errors. A record
// deleted mid-run fails with RECORD_NOT_FOUND.
func (r *run) saveRecord(ctx context.Context, record *models.ApplicationRecord) error {
	return r.retry(ctx, r.stage, func(ctx context.Context) error {
		saved, err := r.o.records.Update(ctx, record)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewRecordNotFoundError(record.SubmissionID)
		}
		if err != nil {
			return apperrors.NewRecordPersistenceError("update record", err)
		}
		r.record = saved
		return nil
	})
}

// retry repeats fn while it fails with a retryable error, up to the configured budget.
func (r *run) retry(ctx context.Context, stage models.Stage, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		ok, delay := r.o.errs.ShouldRetry(err, attempt)
		if !ok {
			return err
		}
		metrics.AutomationStageRetries.WithLabelValues(string(stage)).Inc()
		r.logger.Warn("transient stage failure, retrying", map[string]interface{}{
			"stage":   string(stage),
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return apperrors.NewRunTimeoutError(ctx.Err())
		}
	}
}

func (r *run) complete(runCtx context.Context) {
	// The run deadline may already have passed once packaging returns.
	ctx := context.WithoutCancel(runCtx)

	next := r.job.Clone()
	next.CurrentStage = models.StageCompleted
	next.Status = models.JobStatusCompleted
	next.AppendLog(LogFinished)
	now := r.o.now()
	next.CompletedAt = &now

	if err := r.writeTerminal(ctx, next); err != nil {
		metrics.AutomationTerminalWriteFailures.WithLabelValues(string(models.JobStatusCompleted)).Inc()
		r.logger.Error("failed to mark job completed", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.AutomationJobsCompleted.WithLabelValues(r.strategy.Name()).Inc()
	r.logger.Info("automation completed", map[string]interface{}{
		"strategy":    r.strategy.Name(),
		"packagePath": r.record.PackagePath,
	})
	r.afterTerminal(ctx)
}

// fail is the single failure transition: the record is marked
// ERROR_IN_AUTOMATION, then the job FAILED with the error in its log.
func (r *run) fail(ctx context.Context, stage models.Stage, cause error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	reason := r.o.errs.HandleStageError(r.job.ID, stage, cause)

	record, err := r.o.records.FindBySubmissionID(fctx, r.job.OrderID)
	if err == nil {
		record.Status = models.ApplicationStatusErrorInAutomation
		record, err = r.o.records.Update(fctx, record)
	}
	if err != nil {
		r.logger.Warn("could not mark record as failed", map[string]interface{}{"error": err.Error()})
		r.record = nil
	} else {
		r.record = record
	}

	next := r.job.Clone()
	next.Status = models.JobStatusFailed
	next.FailureReason = reason
	next.AppendLog("Error: " + reason.Message)
	now := r.o.now()
	next.CompletedAt = &now

	if err := r.writeTerminal(fctx, next); err != nil {
		metrics.AutomationTerminalWriteFailures.WithLabelValues(string(models.JobStatusFailed)).Inc()
		r.logger.Error("failed to mark job failed", map[string]interface{}{"error": err.Error()})
		return
	}
	metrics.AutomationJobsFailed.WithLabelValues(string(stage), reason.Code).Inc()
	r.afterTerminal(fctx)
}

// writeTerminal persists a terminal job. Store errors are retried with
// exponential backoff until TerminalWriteTimeout elapses, independent of the
// caller's deadline, so an outage shorter than that budget cannot leave the job
// PENDING. A deleted or already terminal job is not retried.
func (r *run) writeTerminal(ctx context.Context, next *models.Job) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.config.TerminalWriteTimeout)
	defer cancel()

	delay := r.o.config.RetryBaseDelay
	if delay <= 0 {
		delay = terminalWriteBackoff
	}
	for attempt := 1; ; attempt++ {
		updated, err := r.o.jobs.Update(ctx, next)
		if err == nil {
			r.job = updated
			return nil
		}
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrJobTerminal) {
			return err
		}
		r.logger.Warn("terminal job write failed, retrying", map[string]interface{}{
			"status":  string(next.Status),
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("terminal write abandoned after %d attempts: %w", attempt, err)
		}
		if delay *= 2; delay > terminalWriteMaxBackoff {
			delay = terminalWriteMaxBackoff
		}
	}
}

// afterTerminal runs best-effort side effects once the job is terminal.
func (r *run) afterTerminal(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if r.o.indexer != nil {
		if err := r.o.indexer.IndexJob(sctx, r.job.Clone(), r.record.Clone()); err != nil {
			r.logger.Warn("job indexing failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if r.record == nil {
		return
	}
	r.o.notify(sctx, models.NotificationEvent{
		Type:             models.EventRecordStatusChanged,
		SubmissionID:     r.record.SubmissionID,
		JobID:            r.job.ID,
		RegistrationType: r.record.RegistrationType,
		Status:           r.record.Status,
		Message:          r.job.Logs[len(r.job.Logs)-1],
		OccurredAt:       r.o.now(),
	})
}
