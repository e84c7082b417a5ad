// internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"filing-automation/internal/models"

	"github.com/google/uuid"
)

// MemoryRecordStore stores records in memory and is safe for concurrent use.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*models.ApplicationRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*models.ApplicationRecord)}
}

func (s *MemoryRecordStore) FindBySubmissionID(ctx context.Context, submissionID string) (*models.ApplicationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryRecordStore) Create(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[record.SubmissionID]; ok {
		return existing.Clone(), false, nil
	}
	stored := record.Clone()
	stored.EnsureMaps()
	s.records[stored.SubmissionID] = stored
	return stored.Clone(), true, nil
}

func (s *MemoryRecordStore) Save(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := record.Clone()
	stored.EnsureMaps()
	stored.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[stored.SubmissionID]; ok && stored.CreatedAt.IsZero() {
		stored.CreatedAt = existing.CreatedAt
	}
	s.records[stored.SubmissionID] = stored
	return stored.Clone(), nil
}

func (s *MemoryRecordStore) Update(ctx context.Context, record *models.ApplicationRecord) (*models.ApplicationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := record.Clone()
	stored.EnsureMaps()
	stored.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[stored.SubmissionID]
	if !ok {
		return nil, ErrNotFound
	}
	stored.CreatedAt = existing.CreatedAt
	s.records[stored.SubmissionID] = stored
	return stored.Clone(), nil
}

func (s *MemoryRecordStore) Delete(ctx context.Context, submissionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, submissionID)
	return nil
}

// MemoryJobStore stores jobs in memory and is safe for concurrent use.
type MemoryJobStore struct {
	mu           sync.RWMutex
	byID         map[string]*models.Job
	bySubmission map[string][]string // job ids in insertion order
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		byID:         make(map[string]*models.Job),
		bySubmission: make(map[string][]string),
	}
}

func (s *MemoryJobStore) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := job.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[stored.ID] = stored
	s.bySubmission[stored.OrderID] = append(s.bySubmission[stored.OrderID], stored.ID)
	return stored.Clone(), nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryJobStore) Update(ctx context.Context, job *models.Job) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[job.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := checkTransition(stored, job); err != nil {
		return nil, err
	}
	next := job.Clone()
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	s.byID[next.ID] = next
	return next.Clone(), nil
}

func (s *MemoryJobStore) LatestBySubmission(ctx context.Context, submissionID string) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Job
	for _, id := range s.bySubmission[submissionID] {
		job := s.byID[id]
		if latest == nil || !job.CreatedAt.Before(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *MemoryJobStore) DeleteBySubmission(ctx context.Context, submissionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.bySubmission[submissionID] {
		delete(s.byID, id)
	}
	delete(s.bySubmission, submissionID)
	return nil
}
