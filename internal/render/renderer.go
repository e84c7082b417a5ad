// Package render produces draft documents for application records.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filing-automation/internal/automation"
	"filing-automation/internal/common/config"
	commonhttp "filing-automation/internal/common/http"
	"filing-automation/internal/models"
)

// Draft is the document body a renderer produces for one draft kind.
type Draft struct {
	Kind              string                 `json:"kind"`
	SubmissionID      string                 `json:"submissionId"`
	RegistrationType  string                 `json:"registrationType"`
	FormData          map[string]interface{} `json:"formData"`
	UploadedDocuments map[string]string      `json:"uploadedDocuments"`
	GeneratedAt       time.Time              `json:"generatedAt"`
}

func newDraft(kind string, record *models.ApplicationRecord) Draft {
	rec := record.Clone()
	rec.EnsureMaps()
	return Draft{
		Kind:              kind,
		SubmissionID:      rec.SubmissionID,
		RegistrationType:  rec.RegistrationType,
		FormData:          rec.FormData,
		UploadedDocuments: rec.UploadedDocuments,
		GeneratedAt:       time.Now().UTC(),
	}
}

// TransientError marks a failure that may succeed on retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string   { return e.Err.Error() }
func (e *TransientError) Unwrap() error   { return e.Err }
func (e *TransientError) Temporary() bool { return true }

// New returns the renderer selected by cfg.Mode.
func New(cfg config.RenderingConfig) (automation.Renderer, error) {
	switch cfg.Mode {
	case "", config.RenderModeLocal:
		return NewLocalRenderer(cfg.OutputDir), nil
	case config.RenderModeHTTP:
		return NewHTTPRenderer(cfg.BaseURL, cfg.APIKey, config.GetDuration(cfg.Timeout))
	default:
		return nil, fmt.Errorf("unknown rendering mode %q", cfg.Mode)
	}
}

// LocalRenderer writes each draft as JSON under {OutputDir}/{submissionId}/{kind}.json.
type LocalRenderer struct {
	outputDir string
}

func NewLocalRenderer(outputDir string) *LocalRenderer {
	return &LocalRenderer{outputDir: outputDir}
}

func (r *LocalRenderer) Render(ctx context.Context, kind string, record *models.ApplicationRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(r.outputDir, pathSegment(record.SubmissionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &TransientError{Err: fmt.Errorf("create draft dir: %w", err)}
	}

	body, err := json.MarshalIndent(newDraft(kind, record), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode draft %s: %w", kind, err)
	}

	path := filepath.Join(dir, pathSegment(kind)+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", &TransientError{Err: fmt.Errorf("write draft %s: %w", kind, err)}
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", &TransientError{Err: fmt.Errorf("publish draft %s: %w", kind, err)}
	}
	return path, nil
}

func pathSegment(s string) string {
	s = strings.NewReplacer("/", "_", `\`, "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// HTTPRenderer asks a remote document service to render drafts.
type HTTPRenderer struct {
	endpoint string
	client   *commonhttp.Client
}

type renderResponse struct {
	Ref string `json:"ref"`
}

func NewHTTPRenderer(baseURL, apiKey string, timeout time.Duration) (*HTTPRenderer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("rendering base url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := commonhttp.NewClient(timeout).WithHeader("Accept", "application/json")
	if apiKey != "" {
		client.WithHeader("Authorization", "Bearer "+apiKey)
	}
	return &HTTPRenderer{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/drafts",
		client:   client,
	}, nil
}

func (r *HTTPRenderer) Render(ctx context.Context, kind string, record *models.ApplicationRecord) (string, error) {
	var out renderResponse
	err := r.client.PostJSON(ctx, r.endpoint, newDraft(kind, record), &out)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) {
			return "", err
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return "", &TransientError{Err: err}
		}
		return "", err
	}
	if out.Ref == "" {
		return "", fmt.Errorf("render %s: empty document reference", kind)
	}
	return out.Ref, nil
}
