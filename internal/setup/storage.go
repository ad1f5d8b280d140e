package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"go.uber.org/zap"
)

// InitStorage 按 storage.type 创建存储服务，并确保存储桶存在
func InitStorage(ctx context.Context, cfg *config.Config) (storage.StorageService, error) {
	storageService, err := storage.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化存储服务失败: %w", err)
	}
	logger.Info("存储服务已选择并初始化", zap.String("type", cfg.Storage.Type))

	// 为外部调用使用带超时的上下文
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := storageService.IsBucketExist(ctx)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶存在性失败: %w", err)
	}
	if exists {
		logger.Info("存储桶已存在", zap.String("bucket", cfg.Storage.Bucket))
		return storageService, nil
	}

	logger.Info("存储桶不存在，尝试创建...", zap.String("bucket", cfg.Storage.Bucket))
	if err := storageService.MakeBucket(ctx); err != nil {
		return nil, fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("存储桶创建成功", zap.String("bucket", cfg.Storage.Bucket))
	return storageService, nil
}
