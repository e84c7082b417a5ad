// internal/automation/orchestrator.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "filing-automation/internal/common/errors"
	"filing-automation/internal/common/logger"
	"filing-automation/internal/common/metrics"
	"filing-automation/internal/common/observability"
	"filing-automation/internal/models"
	"filing-automation/internal/store"
)

// ErrInvalidRequest marks caller errors from Start.
var ErrInvalidRequest = errors.New("invalid request")

const (
	defaultRunTimeout           = 10 * time.Minute
	defaultTerminalWriteTimeout = 2 * time.Minute
	sideEffectTimeout           = 10 * time.Second
	terminalWriteBackoff        = 100 * time.Millisecond
	terminalWriteMaxBackoff     = 5 * time.Second
)

// Config tunes the orchestrator.
type Config struct {
	BaseDir              string
	PackageExt           string
	Workers              int
	QueueSize            int
	RunTimeout           time.Duration
	StageRetries         int
	RetryBaseDelay       time.Duration
	SerializeSubmissions bool
	// TerminalWriteTimeout bounds how long a run keeps retrying the write
	// that marks its job COMPLETED or FAILED.
	TerminalWriteTimeout time.Duration
}

// Dependencies are the collaborators the orchestrator drives. Notifier,
// Indexer and Observability are optional.
type Dependencies struct {
	Records       store.RecordStore
	Jobs          store.JobStore
	Registry      *StrategyRegistry
	Packager      Packager
	Notifier      Notifier
	Indexer       JobIndexer
	Observability *observability.Observability
}

// Orchestrator starts automation jobs and runs them through the stage pipeline
// on a bounded worker pool.
type Orchestrator struct {
	config   Config
	records  store.RecordStore
	jobs     store.JobStore
	registry *StrategyRegistry
	packager Packager
	notifier Notifier
	indexer  JobIndexer
	obs      *observability.Observability
	errs     *apperrors.ErrorHandler
	locks    *keyedMutex
	pool     *workerPool
	logger   logger.Logger
	now      func() time.Time
}

func NewOrchestrator(config Config, deps Dependencies, log logger.Logger) (*Orchestrator, error) {
	if deps.Records == nil || deps.Jobs == nil {
		return nil, fmt.Errorf("record and job stores are required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("strategy registry is required")
	}
	if deps.Packager == nil {
		deps.Packager = NewZipPackager()
	}
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaultRunTimeout
	}
	if config.TerminalWriteTimeout <= 0 {
		config.TerminalWriteTimeout = defaultTerminalWriteTimeout
	}
	if config.PackageExt == "" {
		config.PackageExt = "zip"
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = logger.ForComponent(log, "orchestrator")

	o := &Orchestrator{
		config:   config,
		records:  deps.Records,
		jobs:     deps.Jobs,
		registry: deps.Registry,
		packager: deps.Packager,
		notifier: deps.Notifier,
		indexer:  deps.Indexer,
		obs:      deps.Observability,
		errs:     apperrors.NewErrorHandler(log, config.StageRetries, config.RetryBaseDelay),
		pool:     newWorkerPool(config.Workers, config.QueueSize),
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if config.SerializeSubmissions {
		o.locks = newKeyedMutex()
	}
	return o, nil
}

// Start finds or creates the submission's record, creates a PENDING job and
// schedules its run. It returns without waiting for any stage.
func (o *Orchestrator) Start(ctx context.Context, submissionID, rawType string) (*models.Job, error) {
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, apperrors.NewInvalidRequestError("submissionId is required"))
	}
	if strings.TrimSpace(rawType) == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, apperrors.NewInvalidRequestError("registrationType is required"))
	}
	// A type that normalizes to "" is accepted; its run fails with STRATEGY_NOT_FOUND.
	registrationType := NormalizeType(rawType)

	record, created, err := o.records.Create(ctx, models.NewApplicationRecord(submissionID, registrationType))
	if err != nil {
		return nil, apperrors.NewRecordPersistenceError("create record", err)
	}

	job, err := o.jobs.Create(ctx, models.NewJob(submissionID, registrationType))
	if err != nil {
		return nil, apperrors.NewRecordPersistenceError("create job", err)
	}

	log := o.logger.WithFields(map[string]interface{}{
		"jobId":            job.ID,
		"submissionId":     submissionID,
		"registrationType": registrationType,
	})
	log.Info("automation job created", map[string]interface{}{"recordCreated": created})
	metrics.AutomationJobsStarted.WithLabelValues(registrationType).Inc()

	if created {
		o.notifyAsync(models.NotificationEvent{
			Type:             models.EventRecordCreated,
			SubmissionID:     submissionID,
			JobID:            job.ID,
			RegistrationType: record.RegistrationType,
			Status:           record.Status,
			OccurredAt:       o.now(),
		})
	}

	jobID := job.ID
	if err := o.pool.submit(func() { o.Run(context.Background(), jobID) }); err != nil {
		log.Warn("run not scheduled", map[string]interface{}{"error": err.Error()})
		r := o.newRun(job)
		r.fail(ctx, models.StageInitiated, apperrors.NewInternalError(err))
		return r.job.Clone(), nil
	}
	return job, nil
}

// Run drives one job through VERIFICATION, DRAFTING and PACKAGING. It never
// returns an error: every failure becomes a FAILED job. Runs of terminal jobs
// are no-ops.
func (o *Orchestrator) Run(ctx context.Context, jobID string) {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		o.logger.Warn("job not loadable, run skipped", map[string]interface{}{"jobId": jobID, "error": err.Error()})
		return
	}
	if job.Terminal() {
		return
	}

	if o.locks != nil {
		unlock := o.locks.Lock(job.OrderID)
		defer unlock()
	}

	metrics.AutomationRunsActive.Inc()
	defer metrics.AutomationRunsActive.Dec()

	r := o.newRun(job)
	started := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, o.config.RunTimeout)
	defer cancel()
	runCtx, span := o.obs.StartSpan(runCtx, "automation.run", runAttributes(job)...)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("automation run panicked", map[string]interface{}{"panic": fmt.Sprint(rec)})
			r.fail(ctx, r.stage, apperrors.NewInternalError(fmt.Errorf("panic: %v", rec)))
		}
		status := string(r.job.Status)
		o.obs.RecordJobProcessed(context.Background(), status)
		o.obs.RecordJobDuration(context.Background(), time.Since(started), status)
	}()

	r.execute(runCtx)
}

// Shutdown stops accepting new jobs and waits for scheduled runs to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.pool.shutdown(ctx)
}

func (o *Orchestrator) notifyAsync(event models.NotificationEvent) {
	if o.notifier == nil {
		return
	}
	err := o.pool.submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		o.notify(ctx, event)
	})
	if err != nil {
		o.logger.Debug("notification dropped", map[string]interface{}{"event": event.Type, "error": err.Error()})
	}
}

func (o *Orchestrator) notify(ctx context.Context, event models.NotificationEvent) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, event); err != nil {
		o.logger.Warn("notification failed", map[string]interface{}{
			"event":        event.Type,
			"submissionId": event.SubmissionID,
			"error":        err.Error(),
		})
	}
}
