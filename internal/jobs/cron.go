package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/services/scanner"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronService 定时补扫 PENDING 文件并清理被遗弃的分块上传
type CronService struct {
	scans          scanner.ScanService
	storageService storage.StorageService
	cfg            *config.Config
	now            func() time.Time
}

func NewCronService(cfg *config.Config, scans scanner.ScanService, storageService storage.StorageService) *CronService {
	return &CronService{
		scans:          scans,
		storageService: storageService,
		cfg:            cfg,
		now:            time.Now,
	}
}

// StartCronJobs 注册并启动定时任务，调用方负责 Stop
func StartCronJobs(ctx context.Context, c *CronService) (*cron.Cron, error) {
	cronLogger := zapCronLogger{logger.Sugar()}
	scheduler := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if c.scans.Enabled() {
		if _, err := scheduler.AddFunc(c.cfg.Scan.SweepCron, func() { c.SweepPendingScans(ctx) }); err != nil {
			return nil, fmt.Errorf("jobs: invalid scan.sweep_cron %q: %w", c.cfg.Scan.SweepCron, err)
		}
	}
	if c.cfg.Reaper.Enabled {
		_, err := scheduler.AddFunc(c.cfg.Reaper.Cron, func() {
			if _, err := c.ReapUploads(ctx); err != nil {
				logger.Error("ReapUploads: 清理未完成上传失败", zap.Error(err))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("jobs: invalid reaper.cron %q: %w", c.cfg.Reaper.Cron, err)
		}
	}

	scheduler.Start()
	logger.Info("定时任务已启动", zap.Int("jobs", len(scheduler.Entries())))
	return scheduler, nil
}

func (c *CronService) SweepPendingScans(ctx context.Context) {
	if _, err := c.scans.SweepPending(ctx, c.cfg.Scan.SweepLimit); err != nil {
		logger.Error("SweepPendingScans: 补扫失败", zap.Error(err))
	}
}

// ReapUploads 中止发起时间早于 reaper.max_age 的分块上传
// max_age 远大于会话令牌有效期，被中止的上传已不可能再完成
func (c *CronService) ReapUploads(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.cfg.Reaper.MaxAge)
	uploads, err := c.storageService.ListIncompleteUploads(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("jobs: list incomplete uploads: %w", err)
	}

	aborted := 0
	for _, upload := range uploads {
		if ctx.Err() != nil {
			return aborted, ctx.Err()
		}
		if err := c.storageService.AbortMultipartUpload(ctx, upload.Key, upload.UploadID); err != nil {
			if c.storageService.IsUploadIDNotFound(err) {
				continue
			}
			logger.Warn("ReapUploads: 中止分块上传失败",
				zap.String("key", upload.Key),
				zap.String("uploadID", upload.UploadID),
				zap.Error(err))
			continue
		}
		aborted++
	}
	if len(uploads) > 0 {
		logger.Info("ReapUploads: 已清理未完成上传", zap.Int("found", len(uploads)), zap.Int("aborted", aborted))
	}
	return aborted, nil
}

// zapCronLogger 把 cron 的日志写到 zap
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
