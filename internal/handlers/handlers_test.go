package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/3Eeeecho/go-fluxshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"github.com/3Eeeecho/go-fluxshare/internal/services/explorer"
	"github.com/3Eeeecho/go-fluxshare/internal/services/share"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"storage":  func(ctx context.Context) error { return errors.New("bucket does not exist") },
	})
	router := gin.New()
	router.GET("/readyz", h.Readyz)
	router.GET("/healthz", h.Healthz)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "error", body.Checks["storage"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

type stubShareService struct {
	share.ShareService
	url   string
	err   error
	calls int
}

func (s *stubShareService) PrepareDownload(ctx context.Context, actor audit.Actor, token, verificationToken string) (string, error) {
	s.calls++
	return s.url, s.err
}

func TestDownloadSharedFile_Redirects(t *testing.T) {
	svc := &stubShareService{url: "https://storage.example.com/bucket/key?X-Amz-Signature=abc"}
	router := gin.New()
	router.GET("/s/:token/download", NewShareHandler(svc).DownloadSharedFile)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s/abc/download", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, svc.url, w.Header().Get("Location"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, 1, svc.calls)
}

func TestDownloadSharedFile_LimitReached(t *testing.T) {
	svc := &stubShareService{err: xerr.ErrShareLimitReached}
	router := gin.New()
	router.GET("/s/:token/download", NewShareHandler(svc).DownloadSharedFile)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s/abc/download", nil))

	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "share_limit_reached", decode(t, w).Reason)
}

type stubUploadService struct {
	explorer.UploadService
	calls int
}

func (s *stubUploadService) Initiate(ctx context.Context, actor audit.Actor, req *models.UploadInitRequest) (*models.UploadInitResponse, error) {
	s.calls++
	return &models.UploadInitResponse{UploadToken: "session", TotalParts: 1}, nil
}

func (s *stubUploadService) Complete(ctx context.Context, actor audit.Actor, req *models.UploadCompleteRequest) (*models.File, error) {
	s.calls++
	return &models.File{ID: 42, Filename: "report.pdf", ScanStatus: models.ScanStatusPending}, nil
}

func authed(userID uint64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(utils.ContextUserIDKey, userID)
		c.Set(utils.ContextRoleKey, string(models.RoleUser))
	}
}

func TestUploadInitiate(t *testing.T) {
	svc := &stubUploadService{}
	router := gin.New()
	router.POST("/uploads/initiate", authed(7), NewUploadHandler(svc).Initiate)

	t.Run("validation error", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uploads/initiate", strings.NewReader(`{"filename":"a.txt","size":0}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "validation_failed", resp.Reason)
		assert.Equal(t, "required", resp.Details["size"])
		assert.Equal(t, "required", resp.Details["mime"])
		assert.Equal(t, 0, svc.calls)
	})

	t.Run("created", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uploads/initiate", strings.NewReader(`{"filename":"a.txt","size":10,"mime":"text/plain"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, svc.calls)
	})
}

func TestUploadInitiate_Unauthenticated(t *testing.T) {
	svc := &stubUploadService{}
	router := gin.New()
	router.POST("/uploads/initiate", NewUploadHandler(svc).Initiate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/uploads/initiate", strings.NewReader(`{"filename":"a.txt","size":10,"mime":"text/plain"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestParseIDParam(t *testing.T) {
	router := gin.New()
	router.GET("/files/:id", func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if ok {
			c.JSON(http.StatusOK, gin.H{"id": id})
		}
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/42", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadComplete_WrapsFileInData(t *testing.T) {
	svc := &stubUploadService{}
	router := gin.New()
	router.POST("/uploads/complete", authed(7), NewUploadHandler(svc).Complete)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/uploads/complete",
		strings.NewReader(`{"uploadToken":"session","parts":[{"partNumber":1,"eTag":"\"a\""}]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		Data models.UploadCompleteResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Data.File)
	assert.Equal(t, uint64(42), body.Data.File.ID)
	assert.Equal(t, models.ScanStatusPending, body.Data.File.ScanStatus)
}
