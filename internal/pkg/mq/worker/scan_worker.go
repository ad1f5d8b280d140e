package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/services/scanner"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// ScanWorker 消费扫描队列
type ScanWorker struct {
	consumer Consumer
	scans    scanner.ScanService
}

func NewScanWorker(consumer Consumer, scans scanner.ScanService) *ScanWorker {
	return &ScanWorker{consumer: consumer, scans: scans}
}

func (w *ScanWorker) Start(ctx context.Context) error {
	if _, err := w.consumer.DeclareQueue(mq.ScanQueueName); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", mq.ScanQueueName, err)
	}
	err := w.consumer.Consume(ctx, mq.ScanQueueName, func(msg amqp.Delivery) {
		w.HandleScan(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", mq.ScanQueueName, err)
	}
	logger.Info("Scan worker started...")
	return nil
}

// HandleScan 扫描失败也确认消息，文件保持 PENDING 由定时补扫重试
func (w *ScanWorker) HandleScan(ctx context.Context, msg amqp.Delivery) {
	var task models.ScanFileTask
	if err := json.Unmarshal(msg.Body, &task); err != nil || task.FileID == 0 {
		logger.Error("Failed to unmarshal scan task", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}

	if err := w.scans.ScanFile(ctx, task.FileID); err != nil {
		logger.Warn("Scan task failed, left for sweep",
			zap.Uint64("fileID", task.FileID),
			zap.Error(err))
	}
	_ = msg.Ack(false)
}
