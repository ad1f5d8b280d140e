package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI 模拟上传接口与对象存储的预签名 PUT
type fakeAPI struct {
	t        *testing.T
	server   *httptest.Server
	partSize int64
	size     int64

	mu        sync.Mutex
	initiated int
	resumed   [][]int
	putParts  map[int][]byte
	completed []models.UploadPartInfo

	// 非零时 /complete 返回该状态码
	completeStatus int
}

func (a *fakeAPI) failComplete(status int) {
	a.mu.Lock()
	a.completeStatus = status
	a.mu.Unlock()
}

func newFakeAPI(t *testing.T, size, partSize int64) *fakeAPI {
	api := &fakeAPI{t: t, size: size, partSize: partSize, putParts: make(map[int][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/uploads/initiate", api.initiate)
	mux.HandleFunc("/api/v1/uploads/resume", api.resume)
	mux.HandleFunc("/api/v1/uploads/complete", api.complete)
	mux.HandleFunc("/parts/", api.put)
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) partCount() int {
	return int((a.size + a.partSize - 1) / a.partSize)
}

func (a *fakeAPI) urls(numbers []int) []models.PartURL {
	out := make([]models.PartURL, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, models.PartURL{PartNumber: n, URL: fmt.Sprintf("%s/parts/%d", a.server.URL, n)})
	}
	return out
}

func (a *fakeAPI) reply(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": 20000, "message": "ok", "data": data})
}

func (a *fakeAPI) initiate(w http.ResponseWriter, r *http.Request) {
	assert.Equal(a.t, "Bearer test-token", r.Header.Get("Authorization"))
	var req models.UploadInitRequest
	require.NoError(a.t, json.NewDecoder(r.Body).Decode(&req))
	assert.Equal(a.t, a.size, req.Size)
	assert.Equal(a.t, "text/plain", req.Mime)

	a.mu.Lock()
	a.initiated++
	a.mu.Unlock()

	all := make([]int, 0, a.partCount())
	for n := 1; n <= a.partCount(); n++ {
		all = append(all, n)
	}
	a.reply(w, http.StatusCreated, models.UploadInitResponse{
		UploadToken: "session-token",
		UploadID:    "upload-1",
		StorageKey:  "7/2026/01/abcd-report.txt",
		PartSize:    a.partSize,
		TotalParts:  a.partCount(),
		PartURLs:    a.urls(all),
	})
}

func (a *fakeAPI) resume(w http.ResponseWriter, r *http.Request) {
	var req models.UploadResumeRequest
	require.NoError(a.t, json.NewDecoder(r.Body).Decode(&req))
	assert.Equal(a.t, "session-token", req.UploadToken)

	a.mu.Lock()
	a.resumed = append(a.resumed, req.PartNumbers)
	a.mu.Unlock()

	a.reply(w, http.StatusOK, models.UploadInitResponse{
		UploadToken: req.UploadToken,
		PartSize:    a.partSize,
		TotalParts:  a.partCount(),
		PartURLs:    a.urls(req.PartNumbers),
	})
}

func (a *fakeAPI) complete(w http.ResponseWriter, r *http.Request) {
	var req models.UploadCompleteRequest
	require.NoError(a.t, json.NewDecoder(r.Body).Decode(&req))

	a.mu.Lock()
	a.completed = req.Parts
	status := a.completeStatus
	a.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{"code": 40900, "message": "failed", "reason": "upload_already_completed"})
		return
	}
	a.reply(w, http.StatusCreated, map[string]any{
		"file": models.File{ID: 42, Filename: "report.txt", Size: a.size, ScanStatus: models.ScanStatusPending},
	})
}

func (a *fakeAPI) put(w http.ResponseWriter, r *http.Request) {
	require.Equal(a.t, http.MethodPut, r.Method)
	n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/parts/"))
	require.NoError(a.t, err)
	body, err := io.ReadAll(r.Body)
	require.NoError(a.t, err)

	a.mu.Lock()
	a.putParts[n] = body
	a.mu.Unlock()

	w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, n))
	w.WriteHeader(http.StatusOK)
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func openStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpload_FreshUploadSendsAllParts(t *testing.T) {
	content := "0123456789"
	api := newFakeAPI(t, int64(len(content)), 4)
	store := openStore(t)
	path := writeTempFile(t, content)

	var progress []int
	client := New(api.server.URL, "test-token", store, func(done, total int) {
		progress = append(progress, done)
		assert.Equal(t, 3, total)
	})

	file, err := client.Upload(context.Background(), path, Options{Mime: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), file.ID)

	assert.Equal(t, 1, api.initiated)
	assert.Equal(t, "0123", string(api.putParts[1]))
	assert.Equal(t, "4567", string(api.putParts[2]))
	assert.Equal(t, "89", string(api.putParts[3]))
	assert.Equal(t, []int{1, 2, 3}, progress)

	require.Len(t, api.completed, 3)
	for i, part := range api.completed {
		assert.Equal(t, i+1, part.PartNumber)
		assert.Equal(t, fmt.Sprintf(`"etag-%d"`, i+1), part.ETag)
	}

	// 完成后清除本地进度
	info, err := os.Stat(path)
	require.NoError(t, err)
	_, err = store.Load(Fingerprint(info, "text/plain"))
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestUpload_ResumesOnlyMissingParts(t *testing.T) {
	content := "0123456789"
	api := newFakeAPI(t, int64(len(content)), 4)
	store := openStore(t)
	path := writeTempFile(t, content)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(&State{
		Fingerprint:   Fingerprint(info, "text/plain"),
		UploadToken:   "session-token",
		UploadID:      "upload-1",
		PartSize:      4,
		PartCount:     3,
		UploadedParts: map[int]string{1: `"etag-1"`},
	}))

	client := New(api.server.URL, "test-token", store, nil)
	_, err = client.Upload(context.Background(), path, Options{Mime: "text/plain"})
	require.NoError(t, err)

	assert.Equal(t, 0, api.initiated)
	require.Len(t, api.resumed, 1)
	assert.Equal(t, []int{2, 3}, api.resumed[0])
	_, sentFirst := api.putParts[1]
	assert.False(t, sentFirst)
	assert.Len(t, api.completed, 3)
}

func TestStateMissingParts(t *testing.T) {
	state := &State{PartCount: 4, UploadedParts: map[int]string{2: "a", 4: "b"}}
	assert.Equal(t, []int{1, 3}, state.MissingParts())
}

func savedCompleteState(t *testing.T, store *BoltStore, path string) string {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	fingerprint := Fingerprint(info, "text/plain")
	require.NoError(t, store.Save(&State{
		Fingerprint:   fingerprint,
		UploadToken:   "session-token",
		UploadID:      "upload-1",
		PartSize:      4,
		PartCount:     3,
		UploadedParts: map[int]string{1: `"etag-1"`, 2: `"etag-2"`, 3: `"etag-3"`},
	}))
	return fingerprint
}

func TestUpload_CompleteConflictClearsState(t *testing.T) {
	content := "0123456789"
	api := newFakeAPI(t, int64(len(content)), 4)
	api.failComplete(http.StatusConflict)
	store := openStore(t)
	path := writeTempFile(t, content)
	fingerprint := savedCompleteState(t, store, path)

	client := New(api.server.URL, "test-token", store, nil)
	_, err := client.Upload(context.Background(), path, Options{Mime: "text/plain"})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	_, err = store.Load(fingerprint)
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.Equal(t, 0, api.initiated)

	// 下一次运行重新开始上传
	api.failComplete(0)
	_, err = client.Upload(context.Background(), path, Options{Mime: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, 1, api.initiated)
}

func TestUpload_CompleteUnauthorizedKeepsState(t *testing.T) {
	content := "0123456789"
	api := newFakeAPI(t, int64(len(content)), 4)
	api.failComplete(http.StatusUnauthorized)
	store := openStore(t)
	path := writeTempFile(t, content)
	fingerprint := savedCompleteState(t, store, path)

	client := New(api.server.URL, "test-token", store, nil)
	_, err := client.Upload(context.Background(), path, Options{Mime: "text/plain"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = store.Load(fingerprint)
	assert.NoError(t, err)
}
