package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/clamav"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFileRepo struct {
	repositories.FileRepository
	files   map[uint64]*models.File
	writes  int
	pending []models.File
}

func (r *fakeFileRepo) FindByID(ctx context.Context, id uint64) (*models.File, error) {
	if f, ok := r.files[id]; ok {
		return f, nil
	}
	return nil, xerr.ErrFileNotFound
}

// UpdateScanStatus 与 SQL 一致：只有 PENDING 才会被改写
func (r *fakeFileRepo) UpdateScanStatus(ctx context.Context, id uint64, status models.ScanStatus, signature *string) (bool, error) {
	f, ok := r.files[id]
	if !ok || f.ScanStatus != models.ScanStatusPending {
		return false, nil
	}
	f.ScanStatus = status
	f.ScanSignature = signature
	r.writes++
	return true, nil
}

func (r *fakeFileRepo) ListPendingScan(ctx context.Context, limit int) ([]models.File, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

type fakeStorage struct {
	storage.StorageService
	objects map[string]string
}

func (s *fakeStorage) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	body, ok := s.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// fakeScanner 内容包含 EICAR 即判定为感染
type fakeScanner struct {
	err   error
	calls int
}

func (s *fakeScanner) Scan(ctx context.Context, r io.Reader) (clamav.Result, error) {
	s.calls++
	if s.err != nil {
		return clamav.Result{}, s.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return clamav.Result{}, err
	}
	if strings.Contains(string(body), "EICAR") {
		return clamav.Result{Clean: false, Signature: "Win.Test.EICAR_HDB-1"}, nil
	}
	return clamav.Result{Clean: true}, nil
}

type fakePublisher struct {
	queue string
	body  []byte
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.queue = queueName
	p.body = body
	return nil
}

func newFixture() (*fakeFileRepo, *fakeScanner, *fakePublisher, ScanService) {
	files := &fakeFileRepo{files: map[uint64]*models.File{
		1: {ID: 1, StorageKey: "clean.txt", ScanStatus: models.ScanStatusPending},
		2: {ID: 2, StorageKey: "eicar.txt", ScanStatus: models.ScanStatusPending},
		3: {ID: 3, StorageKey: "done.txt", ScanStatus: models.ScanStatusClean},
		4: {ID: 4, StorageKey: "missing.txt", ScanStatus: models.ScanStatusPending},
	}}
	store := &fakeStorage{objects: map[string]string{
		"clean.txt": "hello",
		"eicar.txt": "X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*",
		"done.txt":  "hello",
	}}
	scanner := &fakeScanner{}
	publisher := &fakePublisher{}
	svc := NewScanService(files, store, scanner, publisher, nil, nil, true)
	return files, scanner, publisher, svc
}

func TestScanFile_Clean(t *testing.T) {
	files, _, _, svc := newFixture()

	require.NoError(t, svc.ScanFile(context.Background(), 1))
	assert.Equal(t, models.ScanStatusClean, files.files[1].ScanStatus)
	assert.Nil(t, files.files[1].ScanSignature)
}

func TestScanFile_Infected(t *testing.T) {
	files, _, _, svc := newFixture()

	require.NoError(t, svc.ScanFile(context.Background(), 2))
	assert.Equal(t, models.ScanStatusInfected, files.files[2].ScanStatus)
	require.NotNil(t, files.files[2].ScanSignature)
	assert.Equal(t, "Win.Test.EICAR_HDB-1", *files.files[2].ScanSignature)
}

func TestScanFile_SkipsFinishedAndMissing(t *testing.T) {
	files, scanner, _, svc := newFixture()

	require.NoError(t, svc.ScanFile(context.Background(), 3))
	require.NoError(t, svc.ScanFile(context.Background(), 404))
	assert.Equal(t, 0, scanner.calls)
	assert.Equal(t, 0, files.writes)
}

func TestScanFile_TransportFailureKeepsPending(t *testing.T) {
	files, scanner, _, svc := newFixture()
	scanner.err = errors.New("dial tcp: connection refused")

	err := svc.ScanFile(context.Background(), 1)
	assert.ErrorIs(t, err, xerr.ErrScanTransportFailure)
	assert.Equal(t, models.ScanStatusPending, files.files[1].ScanStatus)

	// 对象读取失败同样保持 PENDING
	scanner.err = nil
	err = svc.ScanFile(context.Background(), 4)
	assert.ErrorIs(t, err, xerr.ErrScanTransportFailure)
	assert.Equal(t, models.ScanStatusPending, files.files[4].ScanStatus)
}

func TestScanFile_IsIdempotent(t *testing.T) {
	files, scanner, _, svc := newFixture()

	require.NoError(t, svc.ScanFile(context.Background(), 2))
	require.NoError(t, svc.ScanFile(context.Background(), 2))
	assert.Equal(t, 1, scanner.calls)
	assert.Equal(t, 1, files.writes)
}

func TestScanFile_Disabled(t *testing.T) {
	files, scanner, _, _ := newFixture()
	svc := NewScanService(files, &fakeStorage{}, scanner, nil, nil, nil, false)

	assert.False(t, svc.Enabled())
	require.NoError(t, svc.ScanFile(context.Background(), 1))
	require.NoError(t, svc.TriggerAsyncScan(context.Background(), 1))
	assert.Equal(t, 0, scanner.calls)
	assert.Equal(t, models.ScanStatusPending, files.files[1].ScanStatus)
}

func TestNewScanService_RequiresScanner(t *testing.T) {
	svc := NewScanService(&fakeFileRepo{}, &fakeStorage{}, nil, nil, nil, nil, true)
	assert.False(t, svc.Enabled())
}

func TestTriggerAsyncScan(t *testing.T) {
	_, _, publisher, svc := newFixture()

	require.NoError(t, svc.TriggerAsyncScan(context.Background(), 9))
	assert.Equal(t, mq.ScanQueueName, publisher.queue)

	var task models.ScanFileTask
	require.NoError(t, json.Unmarshal(publisher.body, &task))
	assert.Equal(t, uint64(9), task.FileID)

	publisher.err = errors.New("channel closed")
	assert.ErrorIs(t, svc.TriggerAsyncScan(context.Background(), 9), xerr.ErrMQError)
}

func TestSweepPending(t *testing.T) {
	files, _, _, svc := newFixture()
	files.pending = []models.File{*files.files[1], *files.files[4], *files.files[2]}

	processed, err := svc.SweepPending(context.Background(), 0)
	require.NoError(t, err)
	// 文件 4 的对象不存在，扫描失败但不影响其余文件
	assert.Equal(t, 2, processed)
	assert.Equal(t, models.ScanStatusClean, files.files[1].ScanStatus)
	assert.Equal(t, models.ScanStatusInfected, files.files[2].ScanStatus)
	assert.Equal(t, models.ScanStatusPending, files.files[4].ScanStatus)
}

func TestSweepPending_RespectsLimit(t *testing.T) {
	files, scanner, _, svc := newFixture()
	files.pending = []models.File{*files.files[1], *files.files[2]}

	processed, err := svc.SweepPending(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, scanner.calls)
}
