package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderService_Create(t *testing.T) {
	folders := &fakeFolderRepo{folders: make(map[uint64]*models.Folder)}
	svc := NewFolderService(folders, newFakeFileRepo(), fakeTx{}, nil)

	folder, err := svc.Create(context.Background(), owner, "  reports  ")
	require.NoError(t, err)
	assert.Equal(t, "reports", folder.Name)
	assert.Equal(t, uint64(7), folder.OwnerID)

	_, err = svc.Create(context.Background(), owner, "   ")
	assert.ErrorIs(t, err, xerr.ErrValidationFailed)
}

func TestFolderService_DeleteDetachesFiles(t *testing.T) {
	folders := &fakeFolderRepo{folders: map[uint64]*models.Folder{3: {ID: 3, OwnerID: 7, Name: "docs"}}}
	files := newFakeFileRepo()
	svc := NewFolderService(folders, files, fakeTx{}, nil)

	err := svc.Delete(context.Background(), audit.Actor{UserID: 8}, 3)
	assert.ErrorIs(t, err, xerr.ErrFolderNotFound)

	require.NoError(t, svc.Delete(context.Background(), owner, 3))
	assert.Equal(t, []uint64{3}, files.detached)
	assert.Equal(t, []uint64{3}, folders.deleted)
}

func newFileFixture() (*fileService, *fakeFileRepo, *fakeShareRepo, *fakeStorage, *fakePublisher) {
	files := newFakeFileRepo()
	files.files[1] = &models.File{ID: 1, OwnerID: 7, Filename: "report.pdf", StorageKey: "7/report.pdf", ScanStatus: models.ScanStatusClean}
	files.files[2] = &models.File{ID: 2, OwnerID: 7, Filename: "new.pdf", StorageKey: "7/new.pdf", ScanStatus: models.ScanStatusPending}
	folders := &fakeFolderRepo{folders: map[uint64]*models.Folder{3: {ID: 3, OwnerID: 7, Name: "docs"}}}
	shares := &fakeShareRepo{}
	store := &fakeStorage{}
	publisher := &fakePublisher{}
	svc := NewFileService(files, shares, NewFileDomainService(files, folders), fakeTx{}, store, publisher, nil, nil)
	return svc.(*fileService), files, shares, store, publisher
}

func TestFileService_DeleteRemovesShares(t *testing.T) {
	svc, files, shares, store, publisher := newFileFixture()

	require.NoError(t, svc.Delete(context.Background(), owner, 1))
	assert.Equal(t, []uint64{1}, files.softDeleted)
	assert.Equal(t, []uint64{1}, shares.deletedForFile)
	assert.Equal(t, []string{"7/report.pdf"}, store.removed)
	assert.Empty(t, publisher.queue)
}

func TestFileService_DeleteQueuesFailedRemoval(t *testing.T) {
	svc, _, _, store, publisher := newFileFixture()
	store.removeErr = errors.New("storage timeout")

	require.NoError(t, svc.Delete(context.Background(), owner, 1))
	assert.Equal(t, mq.DeleteQueueName, publisher.queue)

	var task models.DeleteObjectTask
	require.NoError(t, json.Unmarshal(publisher.body, &task))
	assert.Equal(t, uint64(1), task.FileID)
	assert.Equal(t, "7/report.pdf", task.StorageKey)
}

func TestFileService_Download(t *testing.T) {
	svc, _, _, store, _ := newFileFixture()

	url, err := svc.GetPresignedURLForDownload(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/7/report.pdf", url)
	assert.Equal(t, privateCacheControl, store.downloadCache)

	_, err = svc.GetPresignedURLForDownload(context.Background(), 7, 2)
	assert.ErrorIs(t, err, xerr.ErrFilePendingScan)

	_, err = svc.GetPresignedURLForDownload(context.Background(), 8, 1)
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)
}

func TestFileService_UpdateMovesAndRenames(t *testing.T) {
	svc, _, _, _, _ := newFileFixture()
	updater := &recordingFileRepo{fakeFileRepo: svc.fileRepo.(*fakeFileRepo)}
	svc.fileRepo = updater

	name := "  Q1 report.pdf "
	folderID := uint64(3)
	file, err := svc.Update(context.Background(), owner, 1, &models.FileUpdateRequest{Filename: &name, FolderID: &folderID})
	require.NoError(t, err)
	assert.Equal(t, "Q1 report.pdf", file.Filename)
	require.NotNil(t, file.FolderID)
	assert.Equal(t, uint64(3), *file.FolderID)
	assert.Equal(t, "Q1 report.pdf", updater.updates["filename"])

	missing := uint64(99)
	_, err = svc.Update(context.Background(), owner, 1, &models.FileUpdateRequest{FolderID: &missing})
	assert.ErrorIs(t, err, xerr.ErrFolderNotFound)
}

type recordingFileRepo struct {
	*fakeFileRepo
	updates map[string]any
}

func (r *recordingFileRepo) Update(ctx context.Context, id uint64, updates map[string]any) error {
	r.updates = updates
	return nil
}
