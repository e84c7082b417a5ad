package automation

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "filing-automation/internal/common/errors"
	"filing-automation/internal/models"
	"filing-automation/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func companyEntries(s *fakeStrategy) []Entry {
	return []Entry{{Token: "PRIVATE_LIMITED", Strategy: s}}
}

func TestNewOrchestrator_RequiresStoresAndRegistry(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	_, err = NewOrchestrator(Config{}, Dependencies{Registry: reg}, nil)
	assert.Error(t, err)

	_, err = NewOrchestrator(Config{}, Dependencies{
		Records: store.NewMemoryRecordStore(),
		Jobs:    store.NewMemoryJobStore(),
	}, nil)
	assert.Error(t, err)
}

func TestStart_InvalidInput(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name, submissionID, registrationType string
	}{
		{"blank submission", "  ", "PRIVATE_LIMITED"},
		{"empty type", "SUB-1", ""},
		{"blank type", "SUB-1", " \t "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := h.orch.Start(context.Background(), tt.submissionID, tt.registrationType)
			assert.Nil(t, job)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
		})
	}
}

func TestStart_UnnormalizableTypeFailsAsync(t *testing.T) {
	h := newHarness(t, nil)

	job, err := h.orch.Start(context.Background(), "SUB-020", "!!!")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Empty(t, job.Type)

	done := h.waitTerminal(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.FailureReason)
	assert.Equal(t, string(apperrors.ErrCodeStrategyNotFound), done.FailureReason.Code)
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, h.record(t, "SUB-020").Status)
}

func TestStart_ReturnsPendingJobWithoutWaiting(t *testing.T) {
	release := make(chan struct{})
	s := &fakeStrategy{
		name: "company",
		onValidate: func(ctx context.Context) {
			select {
			case <-release:
			case <-ctx.Done():
			}
		},
	}
	h := newHarness(t, companyEntries(s))

	job, err := h.orch.Start(context.Background(), "SUB-001", "private limited")
	require.NoError(t, err)
	close(release)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "SUB-001", job.OrderID)
	assert.Equal(t, "PRIVATE_LIMITED", job.Type)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.StageInitiated, job.CurrentStage)
	assert.Empty(t, job.Logs)

	h.waitTerminal(t, job.ID)
}

func TestRun_HappyPathBuildsPackage(t *testing.T) {
	draftFile := filepath.Join(t.TempDir(), "spice.txt")
	require.NoError(t, os.WriteFile(draftFile, []byte("SPICe+ part B"), 0o644))

	s := &fakeStrategy{name: "company", drafts: map[string]string{"SPICE_PLUS_PART_B": draftFile}}
	h := newHarness(t, companyEntries(s))

	seed := models.NewApplicationRecord("SUB-001", "PRIVATE_LIMITED_COMPANY")
	seed.GeneratedDrafts["EXISTING"] = "keep-me"
	_, err := h.records.Save(context.Background(), seed)
	require.NoError(t, err)

	job, err := h.orch.Start(context.Background(), "SUB-001", "Private Limited Company")
	require.NoError(t, err)

	done := h.waitTerminal(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, models.StageCompleted, done.CurrentStage)
	assert.Equal(t, []string{LogValidating, LogDrafting, LogPackaging, LogFinished}, done.Logs)
	assert.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.FailureReason)

	rec := h.record(t, "SUB-001")
	assert.Equal(t, models.ApplicationStatusReadyForFiling, rec.Status)
	assert.Equal(t, "keep-me", rec.GeneratedDrafts["EXISTING"])
	assert.Equal(t, draftFile, rec.GeneratedDrafts["SPICE_PLUS_PART_B"])

	prefix := filepath.Join(h.baseDir, "SUB-001", "Final_Package_")
	assert.True(t, strings.HasPrefix(rec.PackagePath, prefix), rec.PackagePath)
	assert.True(t, strings.HasSuffix(rec.PackagePath, ".zip"), rec.PackagePath)

	zr, err := zip.OpenReader(rec.PackagePath)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"manifest.json", "drafts/SPICE_PLUS_PART_B.txt"}, names)

	assert.Eventually(t, func() bool {
		return len(h.notifier.byType(models.EventRecordStatusChanged)) == 1
	}, time.Second, 5*time.Millisecond)
	changed := h.notifier.byType(models.EventRecordStatusChanged)[0]
	assert.Equal(t, models.ApplicationStatusReadyForFiling, changed.Status)
	assert.Equal(t, LogFinished, changed.Message)
	assert.Empty(t, h.notifier.byType(models.EventRecordCreated), "record already existed")
	assert.Equal(t, 1, h.indexer.count())
}

func TestRun_UnknownTypeFailsWithStrategyNotFound(t *testing.T) {
	h := newHarness(t, companyEntries(&fakeStrategy{name: "company"}))

	job, err := h.orch.Start(context.Background(), "SUB-002", "Unknown Type")
	require.NoError(t, err)

	done := h.waitTerminal(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotEmpty(t, done.Logs)
	assert.Contains(t, done.LogText(), "Strategy not found for type: UNKNOWN_TYPE")
	assert.Equal(t, "Error: Strategy not found for type: UNKNOWN_TYPE", done.Logs[len(done.Logs)-1])
	require.NotNil(t, done.FailureReason)
	assert.Equal(t, string(apperrors.ErrCodeStrategyNotFound), done.FailureReason.Code)
	assert.Equal(t, models.StageVerification, done.FailureReason.Stage)

	rec := h.record(t, "SUB-002")
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, rec.Status)

	assert.Eventually(t, func() bool {
		return len(h.notifier.byType(models.EventRecordCreated)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRun_ValidationFailureLeavesDraftsAndPackage(t *testing.T) {
	s := &fakeStrategy{
		name:        "company",
		validateErr: apperrors.NewApplicationValidationError("", []string{"directors: Must be greater than or equal to 2"}),
		drafts:      map[string]string{"E_MOA": "new"},
	}
	h := newHarness(t, companyEntries(s))

	seed := models.NewApplicationRecord("SUB-003", "PRIVATE_LIMITED")
	seed.GeneratedDrafts["E_MOA"] = "old"
	seed.PackagePath = "/packages/SUB-003/previous.zip"
	_, err := h.records.Save(context.Background(), seed)
	require.NoError(t, err)

	job, err := h.orch.Start(context.Background(), "SUB-003", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, string(apperrors.ErrCodeApplicationValidationFailed), done.FailureReason.Code)
	assert.Contains(t, done.LogText(), "directors")

	rec := h.record(t, "SUB-003")
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, rec.Status)
	assert.Equal(t, map[string]string{"E_MOA": "old"}, rec.GeneratedDrafts)
	assert.Equal(t, "/packages/SUB-003/previous.zip", rec.PackagePath)

	validate, draft := s.calls()
	assert.Equal(t, 1, validate, "validation failures are not retried")
	assert.Zero(t, draft)
}

func TestRun_PlainValidationErrorIsClassified(t *testing.T) {
	s := &fakeStrategy{name: "company", validateErr: errors.New("pan missing")}
	h := newHarness(t, companyEntries(s))

	job, err := h.orch.Start(context.Background(), "SUB-004", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, string(apperrors.ErrCodeApplicationValidationFailed), done.FailureReason.Code)
	assert.Equal(t, "Error: Application validation failed: pan missing", done.Logs[len(done.Logs)-1])
}

func TestRun_RetriesTransientDraftErrors(t *testing.T) {
	transient := apperrors.NewDraftGenerationError("E_MOA", errBoom, true)
	s := &fakeStrategy{
		name:      "company",
		drafts:    map[string]string{"E_MOA": "mem://moa"},
		draftErrs: []error{transient, transient},
	}
	h := newHarness(t, companyEntries(s), withPackager(&failingPackager{}))

	job, err := h.orch.Start(context.Background(), "SUB-005", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusCompleted, done.Status)
	_, draft := s.calls()
	assert.Equal(t, 3, draft)
	assert.Equal(t, "mem://moa", h.record(t, "SUB-005").GeneratedDrafts["E_MOA"])
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	transient := apperrors.NewDraftGenerationError("E_MOA", errBoom, true)
	s := &fakeStrategy{
		name:      "company",
		draftErrs: []error{transient, transient, transient, transient},
	}
	h := newHarness(t, companyEntries(s))

	job, err := h.orch.Start(context.Background(), "SUB-006", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, string(apperrors.ErrCodeDraftGenerationFailed), done.FailureReason.Code)
	assert.Equal(t, models.StageDrafting, done.FailureReason.Stage)
	_, draft := s.calls()
	assert.Equal(t, 3, draft, "one attempt plus two retries")
}

func TestRun_PackagingFailure(t *testing.T) {
	s := &fakeStrategy{name: "company", drafts: map[string]string{"E_MOA": "mem://moa"}}
	p := &failingPackager{errs: []error{errBoom, errBoom, errBoom}}
	h := newHarness(t, companyEntries(s), withPackager(p))

	job, err := h.orch.Start(context.Background(), "SUB-007", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, string(apperrors.ErrCodePackagingFailed), done.FailureReason.Code)
	assert.Equal(t, models.StagePackaging, done.FailureReason.Stage)

	rec := h.record(t, "SUB-007")
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, rec.Status)
	assert.Empty(t, rec.PackagePath)
	assert.Equal(t, "mem://moa", rec.GeneratedDrafts["E_MOA"])
}

func TestRun_PanicBecomesFailedJob(t *testing.T) {
	s := &fakeStrategy{
		name:       "company",
		onValidate: func(context.Context) { panic("nil form") },
	}
	h := newHarness(t, companyEntries(s))

	job, err := h.orch.Start(context.Background(), "SUB-008", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, string(apperrors.ErrCodeInternalError), done.FailureReason.Code)
	assert.Contains(t, done.FailureReason.Message, "panic: nil form")
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, h.record(t, "SUB-008").Status)
}

func TestRun_RecordDeletedMidRun(t *testing.T) {
	h := &harness{}
	s := &fakeStrategy{
		name:   "company",
		drafts: map[string]string{"E_MOA": "mem://moa"},
		onDraft: func(ctx context.Context) error {
			return h.records.Delete(ctx, "SUB-009")
		},
	}
	*h = *newHarness(t, companyEntries(s))

	job, err := h.orch.Start(context.Background(), "SUB-009", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, string(apperrors.ErrCodeRecordNotFound), done.FailureReason.Code)

	_, err = h.records.FindBySubmissionID(context.Background(), "SUB-009")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_JobDeletedMidRunIsAbandoned(t *testing.T) {
	h := &harness{}
	deleted := make(chan struct{})
	s := &fakeStrategy{
		name:   "company",
		drafts: map[string]string{"E_MOA": "mem://moa"},
		onDraft: func(ctx context.Context) error {
			defer close(deleted)
			return h.jobs.DeleteBySubmission(ctx, "SUB-010")
		},
	}
	*h = *newHarness(t, companyEntries(s), withPackager(&failingPackager{}))

	_, err := h.orch.Start(context.Background(), "SUB-010", "PRIVATE_LIMITED")
	require.NoError(t, err)
	<-deleted

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.orch.Shutdown(shutdownCtx))

	_, err = h.jobs.LatestBySubmission(context.Background(), "SUB-010")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, h.indexer.count())
}

func TestRun_TimeoutFailsJob(t *testing.T) {
	s := &fakeStrategy{
		name: "company",
		onDraft: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	h := newHarness(t, companyEntries(s), withConfig(func(c *Config) {
		c.RunTimeout = 50 * time.Millisecond
	}))

	job, err := h.orch.Start(context.Background(), "SUB-011", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, string(apperrors.ErrCodeRunTimeout), done.FailureReason.Code)
	assert.Equal(t, models.StageDrafting, done.FailureReason.Stage)
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, h.record(t, "SUB-011").Status)
}

func TestRun_CompletionSurvivesTransientJobStoreErrors(t *testing.T) {
	s := &fakeStrategy{name: "company", drafts: map[string]string{"E_MOA": "mem://moa"}}
	flaky := &flakyJobStore{failures: 8}
	h := newHarness(t, companyEntries(s),
		withPackager(&failingPackager{}),
		withJobStore(func(js store.JobStore) store.JobStore {
			flaky.JobStore = js
			return flaky
		}),
		withConfig(func(c *Config) {
			// Eight backoffs from 1ms outlast the run deadline.
			c.RunTimeout = 100 * time.Millisecond
		}))

	job, err := h.orch.Start(context.Background(), "SUB-021", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Nil(t, done.FailureReason)
	assert.Equal(t, 9, flaky.terminalAttempts())
	assert.Equal(t, models.ApplicationStatusReadyForFiling, h.record(t, "SUB-021").Status)
}

func TestRun_FailureSurvivesTransientJobStoreErrors(t *testing.T) {
	s := &fakeStrategy{name: "company", validateErr: errors.New("pan missing")}
	flaky := &flakyJobStore{failures: 5}
	h := newHarness(t, companyEntries(s), withJobStore(func(js store.JobStore) store.JobStore {
		flaky.JobStore = js
		return flaky
	}))

	job, err := h.orch.Start(context.Background(), "SUB-022", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Equal(t, string(apperrors.ErrCodeApplicationValidationFailed), done.FailureReason.Code)
	assert.Equal(t, 6, flaky.terminalAttempts())
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, h.record(t, "SUB-022").Status)
}

func TestRun_TerminalJobIsNoop(t *testing.T) {
	s := &fakeStrategy{name: "company", drafts: map[string]string{"E_MOA": "mem://moa"}}
	h := newHarness(t, companyEntries(s), withPackager(&failingPackager{}))

	job, err := h.orch.Start(context.Background(), "SUB-012", "PRIVATE_LIMITED")
	require.NoError(t, err)
	done := h.waitTerminal(t, job.ID)

	h.orch.Run(context.Background(), job.ID)
	h.orch.Run(context.Background(), "missing-job")

	again, err := h.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, done.Logs, again.Logs)
	validate, _ := s.calls()
	assert.Equal(t, 1, validate)
}

func TestStart_ConcurrentStartsCreateSeparateJobs(t *testing.T) {
	s := &fakeStrategy{name: "company", drafts: map[string]string{"E_MOA": "mem://moa"}}
	h := newHarness(t, companyEntries(s), withPackager(&failingPackager{}))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []string
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := h.orch.Start(context.Background(), "SUB-013", "PRIVATE_LIMITED")
			require.NoError(t, err)
			mu.Lock()
			ids = append(ids, job.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	for _, id := range ids {
		assert.Equal(t, models.JobStatusCompleted, h.waitTerminal(t, id).Status)
	}
	assert.Eventually(t, func() bool {
		return len(h.notifier.byType(models.EventRecordCreated)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStart_SerializedSubmissionsRunOneAtATime(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	s := &fakeStrategy{
		name:   "company",
		drafts: map[string]string{"E_MOA": "mem://moa"},
		onDraft: func(context.Context) error {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil
		},
	}
	h := newHarness(t, companyEntries(s), withPackager(&failingPackager{}), withConfig(func(c *Config) {
		c.SerializeSubmissions = true
		c.Workers = 4
	}))

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := h.orch.Start(context.Background(), "SUB-014", "PRIVATE_LIMITED")
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		h.waitTerminal(t, id)
	}
	mu.Lock()
	assert.Equal(t, 1, maxSeen)
	mu.Unlock()
	assert.Eventually(t, func() bool { return h.orch.locks.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStart_AfterShutdownFailsJob(t *testing.T) {
	h := newHarness(t, companyEntries(&fakeStrategy{name: "company"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.orch.Shutdown(ctx))

	job, err := h.orch.Start(context.Background(), "SUB-015", "PRIVATE_LIMITED")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, string(apperrors.ErrCodeInternalError), job.FailureReason.Code)
	assert.Contains(t, job.FailureReason.Message, ErrShuttingDown.Error())
	assert.Equal(t, models.ApplicationStatusErrorInAutomation, h.record(t, "SUB-015").Status)
}
