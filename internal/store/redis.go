// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"filing-automation/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix        = "automation:job:"
	submissionKeyPrefix = "automation:submission:"
	jobSeqKey           = "automation:job:seq"
	maxUpdateAttempts   = 5
)

// RedisJobStore keeps each job as JSON under automation:job:{id} and indexes jobs
// per submission in a sorted set scored by insertion sequence.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJobStore creates the store. ttl of zero keeps jobs forever.
func NewRedisJobStore(client *redis.Client, ttl time.Duration) *RedisJobStore {
	return &RedisJobStore{client: client, ttl: ttl}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func submissionKey(submissionID string) string {
	return submissionKeyPrefix + submissionID + ":jobs"
}

func (s *RedisJobStore) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	stored := job.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt

	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	seq, err := s.client.Incr(ctx, jobSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate job sequence: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(stored.ID), payload, s.ttl)
		pipe.ZAdd(ctx, submissionKey(stored.OrderID), redis.Z{Score: float64(seq), Member: stored.ID})
		if s.ttl > 0 {
			pipe.Expire(ctx, submissionKey(stored.OrderID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store job %s: %w", stored.ID, err)
	}
	return stored, nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return decodeJob(raw)
}

// Update runs an optimistic WATCH transaction so a terminal job is never overwritten.
func (s *RedisJobStore) Update(ctx context.Context, job *models.Job) (*models.Job, error) {
	key := jobKey(job.ID)
	var next *models.Job

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		stored, err := decodeJob(raw)
		if err != nil {
			return err
		}
		if err := checkTransition(stored, job); err != nil {
			return err
		}

		next = job.Clone()
		next.CreatedAt = stored.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrJobTerminal) || errors.Is(err, ErrStageRegression) {
			return nil, err
		}
		return nil, fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil, fmt.Errorf("update job %s: %w", job.ID, redis.TxFailedErr)
}

func (s *RedisJobStore) LatestBySubmission(ctx context.Context, submissionID string) (*models.Job, error) {
	ids, err := s.client.ZRevRange(ctx, submissionKey(submissionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs for %s: %w", submissionID, err)
	}
	// Skip ids whose job key already expired.
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return job, err
	}
	return nil, ErrNotFound
}

func (s *RedisJobStore) DeleteBySubmission(ctx context.Context, submissionID string) error {
	ids, err := s.client.ZRange(ctx, submissionKey(submissionID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list jobs for %s: %w", submissionID, err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, jobKey(id))
	}
	keys = append(keys, submissionKey(submissionID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete jobs for %s: %w", submissionID, err)
	}
	return nil
}

func decodeJob(raw []byte) (*models.Job, error) {
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.Logs == nil {
		job.Logs = []string{}
	}
	return &job, nil
}
