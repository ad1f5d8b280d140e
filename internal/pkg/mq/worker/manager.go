package worker

import (
	"context"

	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/services/scanner"
	"github.com/streadway/amqp"
)

// Consumer 声明队列并注册消费回调
type Consumer interface {
	DeclareQueue(queueName string) (amqp.Queue, error)
	Consume(ctx context.Context, queueName string, handler func(msg amqp.Delivery)) error
}

// StartAllWorkers 启动应用中所有定义的后台 Worker，ctx 结束后停止消费
func StartAllWorkers(
	ctx context.Context,
	consumer Consumer,
	scans scanner.ScanService,
	storageService storage.StorageService,
) error {
	// --- 启动文件删除 Worker ---
	deleteWorker := NewDeleteWorker(consumer, storageService)
	if err := deleteWorker.Start(ctx); err != nil {
		return err
	}

	// --- 启动病毒扫描 Worker ---
	if scans.Enabled() {
		scanWorker := NewScanWorker(consumer, scans)
		if err := scanWorker.Start(ctx); err != nil {
			return err
		}
	}

	logger.Info("所有后台工作进程已启动。")
	return nil
}
