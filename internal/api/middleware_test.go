package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"filing-automation/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"fromGin": GetRequestID(c),
			"fromCtx": RequestIDFromContext(c.Request.Context()),
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, generated)
	assert.JSONEq(t, `{"fromGin":"`+generated+`","fromCtx":"`+generated+`"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "existing-request-id-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "existing-request-id-123", w.Header().Get(HeaderRequestID))
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)
	r := gin.New()
	r.Use(RequestID(), Logging(log), Recovery(log))
	r.GET("/panic", func(*gin.Context) { panic("handler exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, w.Header().Get(HeaderRequestID), body.RequestID)
}
