package explorer

import (
	"context"
	"errors"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"gorm.io/gorm"
)

var (
	errUploadIDNotFound = errors.New("NoSuchUpload")
	errObjectNotFound   = errors.New("NoSuchKey")
)

type fakeFileRepo struct {
	repositories.FileRepository
	files       map[uint64]*models.File
	existingKey string
	softDeleted []uint64
	detached    []uint64
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[uint64]*models.File)}
}

func (r *fakeFileRepo) WithTx(tx *gorm.DB) repositories.FileRepository { return r }

func (r *fakeFileRepo) Create(ctx context.Context, file *models.File) error {
	file.ID = uint64(len(r.files) + 1)
	r.files[file.ID] = file
	return nil
}

func (r *fakeFileRepo) FindActiveByOwner(ctx context.Context, id, ownerID uint64) (*models.File, error) {
	if f, ok := r.files[id]; ok && f.OwnerID == ownerID && !f.IsDeleted() {
		return f, nil
	}
	return nil, xerr.ErrFileNotFound
}

func (r *fakeFileRepo) ExistsByStorageKey(ctx context.Context, storageKey string) (bool, error) {
	return storageKey == r.existingKey, nil
}

func (r *fakeFileRepo) SoftDelete(ctx context.Context, id uint64, now time.Time) error {
	r.softDeleted = append(r.softDeleted, id)
	return nil
}

func (r *fakeFileRepo) DetachFolder(ctx context.Context, folderID uint64) error {
	r.detached = append(r.detached, folderID)
	return nil
}

type fakeFolderRepo struct {
	repositories.FolderRepository
	folders map[uint64]*models.Folder
	deleted []uint64
}

func (r *fakeFolderRepo) WithTx(tx *gorm.DB) repositories.FolderRepository { return r }

func (r *fakeFolderRepo) Create(ctx context.Context, folder *models.Folder) error {
	folder.ID = uint64(len(r.folders) + 1)
	r.folders[folder.ID] = folder
	return nil
}

func (r *fakeFolderRepo) FindByIDAndOwner(ctx context.Context, id, ownerID uint64) (*models.Folder, error) {
	if f, ok := r.folders[id]; ok && f.OwnerID == ownerID {
		return f, nil
	}
	return nil, xerr.ErrFolderNotFound
}

func (r *fakeFolderRepo) Delete(ctx context.Context, id uint64) error {
	r.deleted = append(r.deleted, id)
	return nil
}

type fakeShareRepo struct {
	repositories.ShareRepository
	deletedForFile []uint64
}

func (r *fakeShareRepo) WithTx(tx *gorm.DB) repositories.ShareRepository { return r }

func (r *fakeShareRepo) DeleteByFileID(ctx context.Context, fileID uint64) error {
	r.deletedForFile = append(r.deletedForFile, fileID)
	return nil
}

// fakeTx 直接执行回调，不开启真实事务
type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeStorage struct {
	storage.StorageService
	created       []string
	presigned     [][]int
	completed     []storage.UploadPartResult
	completeErr   error
	abortErr      error
	aborted       []string
	prefix        []byte
	prefixErr     error
	removed       []string
	removeErr     error
	downloadCache string
}

func (s *fakeStorage) CreateMultipartUpload(ctx context.Context, key, contentType, cacheControl string) (string, error) {
	s.created = append(s.created, key)
	return "upload-1", nil
}

func (s *fakeStorage) PresignUploadParts(ctx context.Context, key, uploadID string, partNumbers []int) ([]storage.PartURL, error) {
	s.presigned = append(s.presigned, partNumbers)
	urls := make([]storage.PartURL, 0, len(partNumbers))
	for _, n := range partNumbers {
		urls = append(urls, storage.PartURL{PartNumber: n, URL: "https://storage.example.com/part"})
	}
	return urls, nil
}

func (s *fakeStorage) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.UploadPartResult) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = parts
	return nil
}

func (s *fakeStorage) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if s.abortErr != nil {
		return s.abortErr
	}
	s.aborted = append(s.aborted, uploadID)
	return nil
}

func (s *fakeStorage) ReadObjectPrefix(ctx context.Context, key string, n int64) ([]byte, error) {
	for _, removed := range s.removed {
		if removed == key {
			return nil, errObjectNotFound
		}
	}
	if s.prefixErr != nil {
		return nil, s.prefixErr
	}
	return s.prefix, nil
}

func (s *fakeStorage) RemoveObject(ctx context.Context, key string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, key)
	return nil
}

func (s *fakeStorage) PresignDownloadURL(ctx context.Context, key, filename, cacheControl string) (string, error) {
	s.downloadCache = cacheControl
	return "https://storage.example.com/" + key, nil
}

func (s *fakeStorage) IsUploadIDNotFound(err error) bool {
	return errors.Is(err, errUploadIDNotFound)
}

func (s *fakeStorage) IsObjectNotFound(err error) bool {
	return errors.Is(err, errObjectNotFound)
}

type fakeCache struct {
	cache.Cache
	locked  map[string]bool
	deleted []string
}

func (c *fakeCache) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	if c.locked[key] {
		return false, nil
	}
	c.locked[key] = true
	return true, nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.locked, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

type fakeScans struct {
	triggered []uint64
}

func (s *fakeScans) TriggerAsyncScan(ctx context.Context, fileID uint64) error {
	s.triggered = append(s.triggered, fileID)
	return nil
}

type fakePublisher struct {
	queue string
	body  []byte
}

func (p *fakePublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	p.queue = queueName
	p.body = body
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{PresignedURLExpiry: 15 * time.Minute},
		Upload: config.UploadConfig{
			MaxFileSize:      1 << 20,
			PartSize:         8,
			AllowedMimeTypes: config.DefaultAllowedMimeTypes,
		},
		ClamAV: config.ClamAVConfig{Enabled: true},
	}
}
