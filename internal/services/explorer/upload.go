package explorer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/search"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/sniffer"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// 上传对象的 Cache-Control，文件默认私有
const privateCacheControl = "private, no-store"

// ScanScheduler 上传完成后投递异步扫描任务
type ScanScheduler interface {
	TriggerAsyncScan(ctx context.Context, fileID uint64) error
}

type UploadService interface {
	// Initiate 校验参数并创建分块上传，返回签名的会话令牌和全部分片的上传地址
	Initiate(ctx context.Context, actor audit.Actor, req *models.UploadInitRequest) (*models.UploadInitResponse, error)
	// Resume 为未上传的分片重新签发地址，不修改任何状态
	Resume(ctx context.Context, actor audit.Actor, req *models.UploadResumeRequest) (*models.UploadInitResponse, error)
	// Complete 合并分片、校验内容类型并创建文件记录
	Complete(ctx context.Context, actor audit.Actor, req *models.UploadCompleteRequest) (*models.File, error)
	// Abort 放弃上传并释放已上传的分片
	Abort(ctx context.Context, actor audit.Actor, req *models.UploadAbortRequest) error
}

// UploadServiceDeps 上传服务的可选依赖
type UploadServiceDeps struct {
	Cache   cache.Cache
	Scans   ScanScheduler
	Metrics *metrics.Registry
	Audit   audit.Recorder
	Indexer search.Indexer
	Config  *config.Config
}

type uploadService struct {
	fileRepo   repositories.FileRepository
	folderRepo repositories.FolderRepository
	storage    storage.StorageService
	codec      *SessionCodec
	deps       UploadServiceDeps
	now        func() time.Time
}

var _ UploadService = (*uploadService)(nil)

func NewUploadService(
	fileRepo repositories.FileRepository,
	folderRepo repositories.FolderRepository,
	storageService storage.StorageService,
	codec *SessionCodec,
	deps UploadServiceDeps,
) UploadService {
	if deps.Audit == nil {
		deps.Audit = audit.NopRecorder{}
	}
	if deps.Indexer == nil {
		deps.Indexer = search.NewNoopIndexer()
	}
	return &uploadService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		storage:    storageService,
		codec:      codec,
		deps:       deps,
		now:        time.Now,
	}
}

func (s *uploadService) Initiate(ctx context.Context, actor audit.Actor, req *models.UploadInitRequest) (*models.UploadInitResponse, error) {
	uploadCfg := s.deps.Config.Upload

	if req.Size <= 0 {
		return nil, fmt.Errorf("upload service: size must be positive: %w", xerr.ErrValidationFailed)
	}
	if req.Size > uploadCfg.MaxFileSize {
		return nil, fmt.Errorf("upload service: %d bytes exceeds limit: %w", req.Size, xerr.ErrFileTooLarge)
	}
	if !uploadCfg.IsMimeAllowed(req.Mime) {
		return nil, fmt.Errorf("upload service: mime %q: %w", req.Mime, xerr.ErrUnsupportedMediaType)
	}
	if req.FolderID != nil {
		if _, err := s.folderRepo.FindByIDAndOwner(ctx, *req.FolderID, actor.UserID); err != nil {
			return nil, fmt.Errorf("upload service: %w", err)
		}
	}

	// 分片数量超限时不能触碰对象存储
	partSize := uploadCfg.PartSize
	partCount := int((req.Size + partSize - 1) / partSize)
	if partCount > config.MaxMultipartParts {
		return nil, fmt.Errorf("upload service: %d parts: %w", partCount, xerr.ErrTooManyParts)
	}

	filename := utils.SanitizeFilename(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("upload service: empty filename: %w", xerr.ErrValidationFailed)
	}
	key, err := utils.BuildStorageKey(actor.UserID, filename, s.now())
	if err != nil {
		return nil, fmt.Errorf("upload service: build storage key: %w", err)
	}

	uploadID, err := s.storage.CreateMultipartUpload(ctx, key, req.Mime, privateCacheControl)
	if err != nil {
		logger.Error("Initiate: 创建分块上传失败", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("upload service: create multipart upload: %w", xerr.ErrStorageError)
	}

	partURLs, err := s.storage.PresignUploadParts(ctx, key, uploadID, lo.RangeFrom(1, partCount))
	if err != nil {
		logger.Error("Initiate: 生成分片上传地址失败", zap.String("uploadID", uploadID), zap.Error(err))
		return nil, fmt.Errorf("upload service: presign parts: %w", xerr.ErrStorageError)
	}

	session := UploadSession{
		OwnerID:   actor.UserID,
		Filename:  filename,
		Mime:      req.Mime,
		Size:      req.Size,
		FolderID:  req.FolderID,
		Key:       key,
		UploadID:  uploadID,
		PartSize:  partSize,
		PartCount: partCount,
	}
	token, err := s.codec.Encode(session)
	if err != nil {
		return nil, fmt.Errorf("upload service: %w", err)
	}

	s.deps.Audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionUploadInitiated,
		TargetType: audit.TargetUpload,
		TargetID:   uploadID,
		Metadata: map[string]any{
			"filename":  filename,
			"size":      req.Size,
			"mime":      req.Mime,
			"partCount": partCount,
		},
	})

	logger.Info("Initiate: 分块上传已创建",
		zap.Uint64("userID", actor.UserID),
		zap.String("uploadID", uploadID),
		zap.Int("partCount", partCount))

	return &models.UploadInitResponse{
		UploadToken: token,
		UploadID:    uploadID,
		StorageKey:  key,
		PartSize:    partSize,
		TotalParts:  partCount,
		MaxFileSize: uploadCfg.MaxFileSize,
		PartURLs:    toPartURLs(partURLs),
	}, nil
}

func (s *uploadService) Resume(ctx context.Context, actor audit.Actor, req *models.UploadResumeRequest) (*models.UploadInitResponse, error) {
	session, err := s.authorize(actor, req.UploadToken)
	if err != nil {
		return nil, err
	}

	partNumbers := NormalizePartNumbers(req.PartNumbers, session.PartCount)
	partURLs, err := s.storage.PresignUploadParts(ctx, session.Key, session.UploadID, partNumbers)
	if err != nil {
		logger.Error("Resume: 重新生成分片上传地址失败", zap.String("uploadID", session.UploadID), zap.Error(err))
		return nil, fmt.Errorf("upload service: presign parts: %w", xerr.ErrStorageError)
	}

	return &models.UploadInitResponse{
		UploadToken: req.UploadToken,
		UploadID:    session.UploadID,
		StorageKey:  session.Key,
		PartSize:    session.PartSize,
		TotalParts:  session.PartCount,
		PartURLs:    toPartURLs(partURLs),
	}, nil
}

func (s *uploadService) Complete(ctx context.Context, actor audit.Actor, req *models.UploadCompleteRequest) (*models.File, error) {
	session, err := s.authorize(actor, req.UploadToken)
	if err != nil {
		return nil, err
	}

	// 会话令牌只能成功使用一次
	exists, err := s.fileRepo.ExistsByStorageKey(ctx, session.Key)
	if err != nil {
		return nil, fmt.Errorf("upload service: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("upload service: key %s: %w", session.Key, xerr.ErrUploadAlreadyCompleted)
	}

	release, err := s.acquireCompleteLock(ctx, session)
	if err != nil {
		return nil, err
	}

	parts := make([]storage.UploadPartResult, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, storage.UploadPartResult{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	if err := s.storage.CompleteMultipartUpload(ctx, session.Key, session.UploadID, storage.SortParts(parts)); err != nil {
		release()
		logger.Error("Complete: 合并分片失败",
			zap.String("uploadID", session.UploadID),
			zap.Bool("uploadIDNotFound", s.storage.IsUploadIDNotFound(err)),
			zap.Error(err))
		return nil, fmt.Errorf("upload service: complete multipart upload: %w", xerr.ErrUploadFinalizeFailed)
	}

	// 类型校验失败后不释放合并锁，锁随会话过期，期间重试得到 409
	mime, err := s.verifyContentType(ctx, session)
	if err != nil {
		return nil, err
	}

	scanStatus := models.ScanStatusDisabled
	if s.scanningEnabled() {
		scanStatus = models.ScanStatusPending
	}
	file := &models.File{
		OwnerID:    session.OwnerID,
		FolderID:   session.FolderID,
		Filename:   session.Filename,
		Size:       session.Size,
		Mime:       mime,
		StorageKey: session.Key,
		Checksum:   req.Checksum,
		ScanStatus: scanStatus,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		if !errors.Is(err, xerr.ErrUploadAlreadyCompleted) {
			release()
		}
		return nil, fmt.Errorf("upload service: create file: %w", err)
	}

	if scanStatus == models.ScanStatusPending {
		// 投递失败由定时补扫兜底
		if err := s.deps.Scans.TriggerAsyncScan(ctx, file.ID); err != nil {
			logger.Warn("Complete: 投递扫描任务失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		}
	}

	s.deps.Metrics.IncUploadsCompleted()
	s.deps.Audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionUploadCompleted,
		TargetType: audit.TargetFile,
		TargetID:   audit.ID(file.ID),
		Metadata: map[string]any{
			"filename": file.Filename,
			"size":     file.Size,
			"mime":     file.Mime,
		},
	})
	if err := s.deps.Indexer.IndexFile(ctx, file); err != nil {
		logger.Warn("Complete: 写入搜索索引失败", zap.Uint64("fileID", file.ID), zap.Error(err))
	}

	logger.Info("Complete: 上传完成",
		zap.Uint64("fileID", file.ID),
		zap.String("uploadID", session.UploadID),
		zap.String("scanStatus", string(file.ScanStatus)))
	return file, nil
}

func (s *uploadService) Abort(ctx context.Context, actor audit.Actor, req *models.UploadAbortRequest) error {
	session, err := s.authorize(actor, req.UploadToken)
	if err != nil {
		return err
	}

	if err := s.storage.AbortMultipartUpload(ctx, session.Key, session.UploadID); err != nil {
		if !s.storage.IsUploadIDNotFound(err) {
			logger.Error("Abort: 中止分块上传失败", zap.String("uploadID", session.UploadID), zap.Error(err))
			return fmt.Errorf("upload service: abort multipart upload: %w", xerr.ErrStorageError)
		}
		logger.Info("Abort: 分块上传已不存在", zap.String("uploadID", session.UploadID))
	}

	s.deps.Audit.Record(ctx, actor, audit.Entry{
		Action:     audit.ActionUploadAborted,
		TargetType: audit.TargetUpload,
		TargetID:   session.UploadID,
		Metadata:   map[string]any{"filename": session.Filename},
	})
	return nil
}

// authorize 解析令牌并确认会话属于当前用户
func (s *uploadService) authorize(actor audit.Actor, token string) (*UploadSession, error) {
	session, err := s.codec.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("upload service: %w", err)
	}
	if session.OwnerID != actor.UserID {
		logger.Warn("upload session owner mismatch",
			zap.Uint64("userID", actor.UserID),
			zap.Uint64("ownerID", session.OwnerID))
		return nil, fmt.Errorf("upload service: session owner mismatch: %w", xerr.ErrForbidden)
	}
	return session, nil
}

// acquireCompleteLock 防止两个并发请求同时合并同一个上传
// Redis 不可用时放行，由 storage_key 唯一索引兜底
func (s *uploadService) acquireCompleteLock(ctx context.Context, session *UploadSession) (func(), error) {
	noop := func() {}
	if s.deps.Cache == nil {
		return noop, nil
	}

	key := cache.GenerateUploadCompleteLockKey(session.UploadID)
	ok, err := s.deps.Cache.SetNX(ctx, key, session.OwnerID, s.deps.Config.Storage.PresignedURLExpiry)
	if err != nil {
		logger.Warn("Complete: 获取合并锁失败", zap.String("uploadID", session.UploadID), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, fmt.Errorf("upload service: upload %s is being completed: %w", session.UploadID, xerr.ErrUploadAlreadyCompleted)
	}
	return func() {
		if err := s.deps.Cache.Del(context.WithoutCancel(ctx), key); err != nil {
			logger.Warn("Complete: 释放合并锁失败", zap.String("uploadID", session.UploadID), zap.Error(err))
		}
	}, nil
}

// verifyContentType 读取对象头部识别真实类型，不允许的类型会删除对象
func (s *uploadService) verifyContentType(ctx context.Context, session *UploadSession) (string, error) {
	prefix, err := s.storage.ReadObjectPrefix(ctx, session.Key, sniffer.SniffBytes)
	if err != nil {
		if s.storage.IsObjectNotFound(err) {
			logger.Error("Complete: 合并后对象不存在", zap.String("key", session.Key), zap.Error(err))
			return "", fmt.Errorf("upload service: object %s missing after finalize: %w", session.Key, xerr.ErrUploadFinalizeFailed)
		}
		logger.Warn("Complete: 读取文件头失败，沿用声明的类型",
			zap.String("key", session.Key),
			zap.String("mime", session.Mime),
			zap.Error(err))
		return session.Mime, nil
	}

	detected := sniffer.Detect(prefix)
	if sniffer.IsInconclusive(detected, session.Mime) {
		logger.Warn("Complete: 无法识别文件类型，沿用声明的类型",
			zap.String("key", session.Key),
			zap.String("detected", detected),
			zap.String("mime", session.Mime))
		return session.Mime, nil
	}

	if !s.deps.Config.Upload.IsMimeAllowed(detected) {
		if err := s.storage.RemoveObject(ctx, session.Key); err != nil {
			logger.Warn("Complete: 删除不允许类型的对象失败", zap.String("key", session.Key), zap.Error(err))
		}
		return "", fmt.Errorf("upload service: detected mime %q: %w", detected, xerr.ErrUnsupportedMediaType)
	}
	return detected, nil
}

func (s *uploadService) scanningEnabled() bool {
	return s.deps.Config.ClamAV.Enabled && s.deps.Scans != nil
}

// NormalizePartNumbers 丢弃越界和重复的分片号并升序排列，空输入表示全部分片
func NormalizePartNumbers(requested []int, partCount int) []int {
	if len(requested) == 0 {
		return lo.RangeFrom(1, partCount)
	}
	valid := lo.Uniq(lo.Filter(requested, func(n int, _ int) bool {
		return n >= 1 && n <= partCount
	}))
	sort.Ints(valid)
	return valid
}

func toPartURLs(parts []storage.PartURL) []models.PartURL {
	return lo.Map(parts, func(p storage.PartURL, _ int) models.PartURL {
		return models.PartURL{PartNumber: p.PartNumber, URL: p.URL}
	})
}
