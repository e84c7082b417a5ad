package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filing-automation/internal/common/config"
	commonhttp "filing-automation/internal/common/http"
	"filing-automation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *models.ApplicationRecord {
	rec := models.NewApplicationRecord("SUB-001", "PRIVATE_LIMITED_COMPANY")
	rec.FormData["companyName"] = "Acme Pvt Ltd"
	rec.UploadedDocuments["PAN_CARD"] = "s3://docs/pan.pdf"
	return rec
}

type temporary interface{ Temporary() bool }

func isTemporary(err error) bool {
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

func TestNew(t *testing.T) {
	r, err := New(config.RenderingConfig{Mode: config.RenderModeLocal, OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalRenderer{}, r)

	r, err = New(config.RenderingConfig{Mode: config.RenderModeHTTP, BaseURL: "http://render.local", Timeout: 1000})
	require.NoError(t, err)
	assert.IsType(t, &HTTPRenderer{}, r)

	_, err = New(config.RenderingConfig{Mode: config.RenderModeHTTP})
	assert.Error(t, err)

	_, err = New(config.RenderingConfig{Mode: "pdf"})
	assert.Error(t, err)
}

func TestLocalRenderer_WritesDraft(t *testing.T) {
	dir := t.TempDir()
	r := NewLocalRenderer(dir)

	ref, err := r.Render(context.Background(), "E_MOA", testRecord())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "SUB-001", "E_MOA.json"), ref)

	body, err := os.ReadFile(ref)
	require.NoError(t, err)
	var draft Draft
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Equal(t, "E_MOA", draft.Kind)
	assert.Equal(t, "SUB-001", draft.SubmissionID)
	assert.Equal(t, "Acme Pvt Ltd", draft.FormData["companyName"])
	assert.Equal(t, "s3://docs/pan.pdf", draft.UploadedDocuments["PAN_CARD"])
}

func TestLocalRenderer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalRenderer(t.TempDir()).Render(ctx, "E_MOA", testRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPRenderer_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/v1/drafts", req.URL.Path)
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var draft Draft
		require.NoError(t, json.NewDecoder(req.Body).Decode(&draft))
		assert.Equal(t, "GST_REG_01", draft.Kind)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ref":"https://docs.example.com/SUB-001/GST_REG_01.pdf"}`))
	}))
	defer srv.Close()

	r, err := NewHTTPRenderer(srv.URL+"/", "secret", time.Second)
	require.NoError(t, err)

	ref, err := r.Render(context.Background(), "GST_REG_01", testRecord())
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/SUB-001/GST_REG_01.pdf", ref)
}

func TestHTTPRenderer_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		temporary bool
	}{
		{"server error", http.StatusBadGateway, `upstream down`, true},
		{"throttled", http.StatusTooManyRequests, `slow down`, true},
		{"bad request", http.StatusUnprocessableEntity, `unknown kind`, false},
		{"empty ref", http.StatusOK, `{"ref":""}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r, err := NewHTTPRenderer(srv.URL, "", time.Second)
			require.NoError(t, err)

			_, err = r.Render(context.Background(), "E_MOA", testRecord())
			require.Error(t, err)
			assert.Equal(t, tt.temporary, isTemporary(err))

			var statusErr *commonhttp.StatusError
			if tt.status != http.StatusOK {
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.status, statusErr.StatusCode)
			}
		})
	}
}

func TestHTTPRenderer_ConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r, err := NewHTTPRenderer(url, "", time.Second)
	require.NoError(t, err)

	_, err = r.Render(context.Background(), "E_MOA", testRecord())
	require.Error(t, err)
	assert.True(t, isTemporary(err))
}
