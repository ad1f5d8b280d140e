package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/clamav"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"go.uber.org/zap"
)

// DefaultSweepLimit 每轮补扫最多处理的文件数
const DefaultSweepLimit = 5

// ScanService 上传后的病毒扫描
type ScanService interface {
	Enabled() bool
	// ScanFile 扫描一个 PENDING 文件并写入结果，其他状态直接返回
	ScanFile(ctx context.Context, fileID uint64) error
	// TriggerAsyncScan 投递扫描任务到持久化队列
	TriggerAsyncScan(ctx context.Context, fileID uint64) error
	// SweepPending 按创建时间顺序补扫遗漏的 PENDING 文件，返回处理数量
	SweepPending(ctx context.Context, limit int) (int, error)
}

type scanService struct {
	fileRepo       repositories.FileRepository
	storageService storage.StorageService
	scanner        clamav.Scanner
	publisher      mq.Publisher
	metrics        *metrics.Registry
	audit          audit.Recorder
	enabled        bool
	now            func() time.Time
}

var _ ScanService = (*scanService)(nil)

func NewScanService(
	fileRepo repositories.FileRepository,
	storageService storage.StorageService,
	scanner clamav.Scanner,
	publisher mq.Publisher,
	registry *metrics.Registry,
	recorder audit.Recorder,
	enabled bool,
) ScanService {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &scanService{
		fileRepo:       fileRepo,
		storageService: storageService,
		scanner:        scanner,
		publisher:      publisher,
		metrics:        registry,
		audit:          recorder,
		enabled:        enabled && scanner != nil,
		now:            time.Now,
	}
}

func (s *scanService) Enabled() bool {
	return s.enabled
}

func (s *scanService) ScanFile(ctx context.Context, fileID uint64) error {
	if !s.enabled {
		return nil
	}

	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, xerr.ErrFileNotFound) {
			logger.Warn("ScanFile: 文件不存在，跳过扫描", zap.Uint64("fileID", fileID))
			return nil
		}
		return fmt.Errorf("scan service: %w", err)
	}
	if file.ScanStatus != models.ScanStatusPending {
		return nil
	}

	result, err := s.scan(ctx, file)
	if err != nil {
		s.metrics.ObserveScan("error")
		logger.Error("ScanFile: 病毒扫描失败，文件保持 PENDING",
			zap.Uint64("fileID", file.ID),
			zap.Error(err))
		return fmt.Errorf("scan service: file %d: %v: %w", file.ID, err, xerr.ErrScanTransportFailure)
	}

	status := models.ScanStatusClean
	action := audit.ActionScanClean
	outcome := "clean"
	var signature *string
	if !result.Clean {
		status = models.ScanStatusInfected
		action = audit.ActionScanInfected
		outcome = "infected"
		sig := result.Signature
		signature = &sig
	}

	// 并发扫描中只有第一个写入者生效
	updated, err := s.fileRepo.UpdateScanStatus(ctx, file.ID, status, signature)
	if err != nil {
		return fmt.Errorf("scan service: update status: %w", err)
	}
	if !updated {
		logger.Info("ScanFile: 扫描结果已被其他任务写入", zap.Uint64("fileID", file.ID))
		return nil
	}

	s.metrics.ObserveScan(outcome)
	metadata := map[string]any{"filename": file.Filename}
	if signature != nil {
		metadata["signature"] = *signature
	}
	s.audit.Record(ctx, audit.System, audit.Entry{
		Action:     action,
		TargetType: audit.TargetFile,
		TargetID:   audit.ID(file.ID),
		Metadata:   metadata,
	})

	if status == models.ScanStatusInfected {
		logger.Warn("ScanFile: 检出病毒",
			zap.Uint64("fileID", file.ID),
			zap.String("signature", *signature))
	} else {
		logger.Info("ScanFile: 文件扫描通过", zap.Uint64("fileID", file.ID))
	}
	return nil
}

func (s *scanService) scan(ctx context.Context, file *models.File) (clamav.Result, error) {
	body, err := s.storageService.GetObject(ctx, file.StorageKey)
	if err != nil {
		return clamav.Result{}, fmt.Errorf("open object: %w", err)
	}
	defer body.Close()
	return s.scanner.Scan(ctx, body)
}

func (s *scanService) TriggerAsyncScan(ctx context.Context, fileID uint64) error {
	if !s.enabled {
		return nil
	}
	if s.publisher == nil {
		return fmt.Errorf("scan service: no queue configured: %w", xerr.ErrMQError)
	}

	body, err := json.Marshal(models.ScanFileTask{FileID: fileID, EnqueuedAt: s.now()})
	if err != nil {
		return fmt.Errorf("scan service: encode task: %w", err)
	}
	if err := s.publisher.Publish(ctx, mq.ScanQueueName, body); err != nil {
		return fmt.Errorf("scan service: publish: %v: %w", err, xerr.ErrMQError)
	}
	logger.Debug("TriggerAsyncScan: 扫描任务已投递", zap.Uint64("fileID", fileID))
	return nil
}

// SweepPending 逐个顺序扫描，单个文件失败不影响其余文件
func (s *scanService) SweepPending(ctx context.Context, limit int) (int, error) {
	if !s.enabled {
		return 0, nil
	}
	if limit <= 0 {
		limit = DefaultSweepLimit
	}

	files, err := s.fileRepo.ListPendingScan(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("scan service: list pending: %w", err)
	}

	processed := 0
	for _, file := range files {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := s.ScanFile(ctx, file.ID); err != nil {
			logger.Warn("SweepPending: 补扫失败", zap.Uint64("fileID", file.ID), zap.Error(err))
			continue
		}
		processed++
	}
	if len(files) > 0 {
		logger.Info("SweepPending: 补扫完成", zap.Int("pending", len(files)), zap.Int("processed", processed))
	}
	return processed, nil
}
