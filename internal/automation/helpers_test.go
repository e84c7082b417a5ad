package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"filing-automation/internal/common/logger"
	"filing-automation/internal/models"
	"filing-automation/internal/store"

	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	name        string
	validateErr error
	drafts      map[string]string
	// draftErrs are returned by successive GenerateDrafts calls before drafts is.
	draftErrs  []error
	onValidate func(ctx context.Context)
	onDraft    func(ctx context.Context) error

	mu            sync.Mutex
	validateCalls int
	draftCalls    int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Validate(ctx context.Context, _ *models.ApplicationRecord) error {
	f.mu.Lock()
	f.validateCalls++
	f.mu.Unlock()
	if f.onValidate != nil {
		f.onValidate(ctx)
	}
	return f.validateErr
}

func (f *fakeStrategy) GenerateDrafts(ctx context.Context, _ *models.ApplicationRecord) (map[string]string, error) {
	f.mu.Lock()
	call := f.draftCalls
	f.draftCalls++
	f.mu.Unlock()

	if f.onDraft != nil {
		if err := f.onDraft(ctx); err != nil {
			return nil, err
		}
	}
	if call < len(f.draftErrs) {
		return nil, f.draftErrs[call]
	}
	out := make(map[string]string, len(f.drafts))
	for k, v := range f.drafts {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStrategy) calls() (validate, draft int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateCalls, f.draftCalls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (n *recordingNotifier) Notify(_ context.Context, e models.NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) byType(eventType string) []models.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.NotificationEvent
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type recordingIndexer struct {
	mu   sync.Mutex
	jobs []*models.Job
}

func (i *recordingIndexer) IndexJob(_ context.Context, job *models.Job, _ *models.ApplicationRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.jobs = append(i.jobs, job)
	return nil
}

func (i *recordingIndexer) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.jobs)
}

type failingPackager struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (p *failingPackager) Build(context.Context, *models.ApplicationRecord, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := p.calls
	p.calls++
	if call < len(p.errs) {
		return p.errs[call]
	}
	return nil
}

// flakyJobStore fails the first failures Updates that would make a job terminal.
type flakyJobStore struct {
	store.JobStore

	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyJobStore) Update(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.Terminal() {
		f.mu.Lock()
		f.attempts++
		fail := f.attempts <= f.failures
		f.mu.Unlock()
		if fail {
			return nil, errors.New("job store unavailable")
		}
	}
	return f.JobStore.Update(ctx, job)
}

func (f *flakyJobStore) terminalAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type harness struct {
	orch     *Orchestrator
	records  *store.MemoryRecordStore
	jobs     *store.MemoryJobStore
	notifier *recordingNotifier
	indexer  *recordingIndexer
	baseDir  string
}

type harnessOption func(*Config, *Dependencies)

func withPackager(p Packager) harnessOption {
	return func(_ *Config, d *Dependencies) { d.Packager = p }
}

// withJobStore wraps the harness job store; h.jobs still reads the underlying memory store.
func withJobStore(wrap func(store.JobStore) store.JobStore) harnessOption {
	return func(_ *Config, d *Dependencies) { d.Jobs = wrap(d.Jobs) }
}

func withConfig(fn func(*Config)) harnessOption {
	return func(c *Config, _ *Dependencies) { fn(c) }
}

// newHarness wires an orchestrator over memory stores with a fast retry policy.
func newHarness(t *testing.T, entries []Entry, opts ...harnessOption) *harness {
	t.Helper()

	reg, err := NewRegistry(entries)
	require.NoError(t, err)

	h := &harness{
		records:  store.NewMemoryRecordStore(),
		jobs:     store.NewMemoryJobStore(),
		notifier: &recordingNotifier{},
		indexer:  &recordingIndexer{},
		baseDir:  t.TempDir(),
	}
	cfg := Config{
		BaseDir:        h.baseDir,
		PackageExt:     "zip",
		Workers:        2,
		QueueSize:      8,
		RunTimeout:     5 * time.Second,
		StageRetries:   2,
		RetryBaseDelay: time.Millisecond,
	}
	deps := Dependencies{
		Records:  h.records,
		Jobs:     h.jobs,
		Registry: reg,
		Notifier: h.notifier,
		Indexer:  h.indexer,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	h.orch, err = NewOrchestrator(cfg, deps, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.orch.Shutdown(ctx)
	})
	return h
}

// waitTerminal polls the job store until the job is COMPLETED or FAILED.
func (h *harness) waitTerminal(t *testing.T, jobID string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		j, err := h.jobs.Get(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Terminal()
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached a terminal status", jobID)
	return job
}

func (h *harness) record(t *testing.T, submissionID string) *models.ApplicationRecord {
	t.Helper()
	rec, err := h.records.FindBySubmissionID(context.Background(), submissionID)
	require.NoError(t, err)
	return rec
}

var errBoom = errors.New("boom")
