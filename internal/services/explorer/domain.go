package explorer

import (
	"context"
	"fmt"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"go.uber.org/zap"
)

// FileDomainService 文件领域服务，处理文件归属与可下载性等业务规则
type FileDomainService interface {
	// CheckFile 返回属于 userID 且未删除的文件
	CheckFile(ctx context.Context, userID, fileID uint64) (*models.File, error)
	// CheckFolder folderID 为空表示根目录，返回 nil
	CheckFolder(ctx context.Context, userID uint64, folderID *uint64) (*models.Folder, error)
	// EnsureDownloadable 扫描未完成或检出病毒的文件不能下载
	EnsureDownloadable(file *models.File) error
}

type fileDomainService struct {
	fileRepo   repositories.FileRepository
	folderRepo repositories.FolderRepository
}

var _ FileDomainService = (*fileDomainService)(nil)

// NewFileDomainService 创建文件领域服务实例
func NewFileDomainService(fileRepo repositories.FileRepository, folderRepo repositories.FolderRepository) FileDomainService {
	return &fileDomainService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
	}
}

func (s *fileDomainService) CheckFile(ctx context.Context, userID, fileID uint64) (*models.File, error) {
	file, err := s.fileRepo.FindActiveByOwner(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *fileDomainService) CheckFolder(ctx context.Context, userID uint64, folderID *uint64) (*models.Folder, error) {
	if folderID == nil {
		return nil, nil
	}
	folder, err := s.folderRepo.FindByIDAndOwner(ctx, *folderID, userID)
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *fileDomainService) EnsureDownloadable(file *models.File) error {
	switch file.ScanStatus {
	case models.ScanStatusPending:
		return fmt.Errorf("file %d: %w", file.ID, xerr.ErrFilePendingScan)
	case models.ScanStatusInfected:
		logger.Warn("EnsureDownloadable: 拒绝下载感染文件",
			zap.Uint64("fileID", file.ID),
			zap.Uint64("ownerID", file.OwnerID))
		return fmt.Errorf("file %d: %w", file.ID, xerr.ErrFileInfected)
	}
	return nil
}
