package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/search"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 全文检索最多返回的候选文件数
const searchCandidateLimit = 500

type FileService interface {
	// 文件查询
	List(ctx context.Context, userID uint64, req *models.FileListRequest) ([]models.File, int64, error)

	// 文件操作
	Update(ctx context.Context, actor audit.Actor, fileID uint64, req *models.FileUpdateRequest) (*models.File, error)
	Delete(ctx context.Context, actor audit.Actor, fileID uint64) error

	// 文件下载
	GetPresignedURLForDownload(ctx context.Context, userID, fileID uint64) (string, error)
}

type fileService struct {
	fileRepo           repositories.FileRepository
	shareRepo          repositories.ShareRepository
	domainService      FileDomainService
	transactionManager repositories.TransactionManager
	storageService     storage.StorageService
	publisher          mq.Publisher
	indexer            search.Indexer
	audit              audit.Recorder
	now                func() time.Time
}

var _ FileService = (*fileService)(nil)

// NewFileService 创建一个新的文件服务实例
func NewFileService(
	fileRepo repositories.FileRepository,
	shareRepo repositories.ShareRepository,
	domainService FileDomainService,
	transactionManager repositories.TransactionManager,
	storageService storage.StorageService,
	publisher mq.Publisher,
	indexer search.Indexer,
	recorder audit.Recorder,
) FileService {
	if indexer == nil {
		indexer = search.NewNoopIndexer()
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &fileService{
		fileRepo:           fileRepo,
		shareRepo:          shareRepo,
		domainService:      domainService,
		transactionManager: transactionManager,
		storageService:     storageService,
		publisher:          publisher,
		indexer:            indexer,
		audit:              recorder,
		now:                time.Now,
	}
}

func (s *fileService) List(ctx context.Context, userID uint64, req *models.FileListRequest) ([]models.File, int64, error) {
	page := utils.Pagination{Page: req.Page, PageSize: req.PageSize}
	page.Normalize()

	query := repositories.FileListQuery{
		OwnerID:  userID,
		FolderID: req.FolderID,
		Query:    req.Query,
		Offset:   page.Offset(),
		Limit:    page.PageSize,
	}

	// 开启全文检索时先从索引取候选 ID，失败回退到数据库模糊匹配
	if req.Query != "" && s.indexer.Enabled() {
		ids, err := s.indexer.SearchFileIDs(ctx, userID, req.Query, searchCandidateLimit)
		if err != nil {
			logger.Warn("List: 全文检索失败，回退到数据库查询", zap.Uint64("userID", userID), zap.Error(err))
		} else if len(ids) == 0 {
			return []models.File{}, 0, nil
		} else {
			query.IDs = ids
		}
	}

	files, total, err := s.fileRepo.List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("file service: list: %w", err)
	}
	return files, total, nil
}

func (s *fileService) Update(ctx context.Context, actor audit.Actor, fileID uint64, req *models.FileUpdateRequest) (*models.File, error) {
	file, err := s.domainService.CheckFile(ctx, actor.UserID, fileID)
	if err != nil {
		return nil, fmt.Errorf("file service: %w", err)
	}

	updates := make(map[string]any)
	if req.Filename != nil {
		name := utils.SanitizeFilename(*req.Filename)
		if name == "" {
			return nil, fmt.Errorf("file service: empty filename: %w", xerr.ErrValidationFailed)
		}
		updates["filename"] = name
		file.Filename = name
	}
	switch {
	case req.ClearFolder:
		updates["folder_id"] = nil
		file.FolderID = nil
		file.Folder = nil
	case req.FolderID != nil:
		folder, err := s.domainService.CheckFolder(ctx, actor.UserID, req.FolderID)
		if err != nil {
			return nil, fmt.Errorf("file service: %w", err)
		}
		updates["folder_id"] = folder.ID
		file.FolderID = &folder.ID
		file.Folder = folder
	}

	if len(updates) == 0 {
		return file, nil
	}
	if err := s.fileRepo.Update(ctx, file.ID, updates); err != nil {
		return nil, fmt.Errorf("file service: update: %w", err)
	}

	if _, renamed := updates["filename"]; renamed {
		if err := s.indexer.IndexFile(ctx, file); err != nil {
			logger.Warn("Update: 更新搜索索引失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		}
	}

	metadata := map[string]any{}
	if req.Filename != nil {
		metadata["filename"] = file.Filename
	}
	if req.ClearFolder || req.FolderID != nil {
		metadata["folderId"] = file.FolderID
	}
	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionFileUpdated,
		TargetType: audit.TargetFile,
		TargetID:   audit.ID(file.ID),
		Metadata:   metadata,
	})
	return file, nil
}

// Delete 软删除文件并删除其全部分享，随后尽力删除对象
func (s *fileService) Delete(ctx context.Context, actor audit.Actor, fileID uint64) error {
	file, err := s.domainService.CheckFile(ctx, actor.UserID, fileID)
	if err != nil {
		return fmt.Errorf("file service: %w", err)
	}

	err = s.transactionManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.fileRepo.WithTx(tx).SoftDelete(ctx, file.ID, s.now()); err != nil {
			return err
		}
		return s.shareRepo.WithTx(tx).DeleteByFileID(ctx, file.ID)
	})
	if err != nil {
		logger.Error("Delete: 删除文件记录失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return fmt.Errorf("file service: delete: %w", err)
	}

	s.removeObject(ctx, file)

	if err := s.indexer.DeleteFile(ctx, file.ID); err != nil {
		logger.Warn("Delete: 删除搜索索引失败", zap.Uint64("fileID", file.ID), zap.Error(err))
	}

	s.audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionFileDeleted,
		TargetType: audit.TargetFile,
		TargetID:   audit.ID(file.ID),
		Metadata:   map[string]any{"filename": file.Filename},
	})
	logger.Info("Delete: 文件已删除", zap.Uint64("fileID", file.ID), zap.Uint64("userID", actor.UserID))
	return nil
}

// removeObject 同步删除失败时交给删除队列重试
func (s *fileService) removeObject(ctx context.Context, file *models.File) {
	err := s.storageService.RemoveObject(ctx, file.StorageKey)
	if err == nil {
		return
	}
	logger.Warn("Delete: 删除存储对象失败，转入删除队列",
		zap.Uint64("fileID", file.ID),
		zap.String("key", file.StorageKey),
		zap.Error(err))

	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(models.DeleteObjectTask{
		FileID:     file.ID,
		StorageKey: file.StorageKey,
		EnqueuedAt: s.now(),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, mq.DeleteQueueName, body); err != nil {
		logger.Warn("Delete: 投递删除任务失败", zap.Uint64("fileID", file.ID), zap.Error(err))
	}
}

func (s *fileService) GetPresignedURLForDownload(ctx context.Context, userID, fileID uint64) (string, error) {
	file, err := s.domainService.CheckFile(ctx, userID, fileID)
	if err != nil {
		return "", fmt.Errorf("file service: %w", err)
	}
	if err := s.domainService.EnsureDownloadable(file); err != nil {
		return "", fmt.Errorf("file service: %w", err)
	}

	url, err := s.storageService.PresignDownloadURL(ctx, file.StorageKey, file.Filename, privateCacheControl)
	if err != nil {
		logger.Error("GetPresignedURLForDownload: 生成下载地址失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return "", fmt.Errorf("file service: presign download: %w", xerr.ErrStorageError)
	}
	return url, nil
}
