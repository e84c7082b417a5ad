// Package search indexes terminal automation jobs in Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"filing-automation/internal/common/logger"
	"filing-automation/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// JobDocument is the indexed summary of one job.
type JobDocument struct {
	JobID            string           `json:"jobId"`
	SubmissionID     string           `json:"submissionId"`
	RegistrationType string           `json:"registrationType"`
	Status           models.JobStatus `json:"status"`
	Stage            models.Stage     `json:"stage"`
	FailureCode      string           `json:"failureCode,omitempty"`
	FailureMessage   string           `json:"failureMessage,omitempty"`
	RecordStatus     string           `json:"recordStatus,omitempty"`
	PackagePath      string           `json:"packagePath,omitempty"`
	Drafts           []string         `json:"drafts,omitempty"`
	LogCount         int              `json:"logCount"`
	CreatedAt        time.Time        `json:"createdAt"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
	DurationMillis   int64            `json:"durationMillis"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "jobId":            {"type": "keyword"},
      "submissionId":     {"type": "keyword"},
      "registrationType": {"type": "keyword"},
      "status":           {"type": "keyword"},
      "stage":            {"type": "keyword"},
      "failureCode":      {"type": "keyword"},
      "failureMessage":   {"type": "text"},
      "recordStatus":     {"type": "keyword"},
      "packagePath":      {"type": "keyword", "index": false},
      "drafts":           {"type": "keyword"},
      "logCount":         {"type": "integer"},
      "createdAt":        {"type": "date"},
      "completedAt":      {"type": "date"},
      "durationMillis":   {"type": "long"}
    }
  }
}`

// Indexer writes JobDocuments to one index.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Indexer{client: client, index: index, logger: logger.ForComponent(log, "search")}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: %s", i.index, res.Status())
	}

	res, err = i.client.Indices.Create(i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// Another instance may have created it between the two calls.
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: %s", i.index, res.Status())
	}
	i.logger.Info("search index created", map[string]interface{}{"index": i.index})
	return nil
}

// IndexJob upserts the job summary keyed by job id. record may be nil.
func (i *Indexer) IndexJob(ctx context.Context, job *models.Job, record *models.ApplicationRecord) error {
	body, err := json.Marshal(NewJobDocument(job, record))
	if err != nil {
		return fmt.Errorf("encode job document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: job.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index job %s: %w", job.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index job %s: %s", job.ID, res.Status())
	}
	return nil
}

// FailureCount is a bucket of the failure code aggregation.
type FailureCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// FailuresSince aggregates failed jobs by failure code.
func (i *Indexer) FailuresSince(ctx context.Context, since time.Time) ([]FailureCount, error) {
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"status": string(models.JobStatusFailed)}},
					map[string]interface{}{"range": map[string]interface{}{"createdAt": map[string]interface{}{"gte": since.UTC().Format(time.RFC3339)}}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"codes": map[string]interface{}{"terms": map[string]interface{}{"field": "failureCode", "size": 50}},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search failures: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search failures: %s", res.Status())
	}

	var parsed struct {
		Aggregations struct {
			Codes struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"codes"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]FailureCount, 0, len(parsed.Aggregations.Codes.Buckets))
	for _, b := range parsed.Aggregations.Codes.Buckets {
		out = append(out, FailureCount{Code: b.Key, Count: b.DocCount})
	}
	return out, nil
}

// NewJobDocument summarizes a job and its record for indexing.
func NewJobDocument(job *models.Job, record *models.ApplicationRecord) JobDocument {
	doc := JobDocument{
		JobID:            job.ID,
		SubmissionID:     job.OrderID,
		RegistrationType: job.Type,
		Status:           job.Status,
		Stage:            job.CurrentStage,
		LogCount:         len(job.Logs),
		CreatedAt:        job.CreatedAt,
		CompletedAt:      job.CompletedAt,
	}
	if job.FailureReason != nil {
		doc.FailureCode = job.FailureReason.Code
		doc.FailureMessage = job.FailureReason.Message
		doc.Stage = job.FailureReason.Stage
	}
	if job.CompletedAt != nil {
		doc.DurationMillis = job.CompletedAt.Sub(job.CreatedAt).Milliseconds()
	}
	if record != nil {
		doc.RecordStatus = string(record.Status)
		doc.PackagePath = record.PackagePath
		for kind := range record.GeneratedDrafts {
			doc.Drafts = append(doc.Drafts, kind)
		}
		sort.Strings(doc.Drafts)
	}
	return doc
}
