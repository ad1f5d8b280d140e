package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DeleteWorker 重试删除同步删除失败的存储对象
type DeleteWorker struct {
	consumer       Consumer
	storageService storage.StorageService
	maxElapsed     time.Duration
}

func NewDeleteWorker(consumer Consumer, storageService storage.StorageService) *DeleteWorker {
	return &DeleteWorker{
		consumer:       consumer,
		storageService: storageService,
		maxElapsed:     time.Minute,
	}
}

func (w *DeleteWorker) Start(ctx context.Context) error {
	if _, err := w.consumer.DeclareQueue(mq.DeleteQueueName); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", mq.DeleteQueueName, err)
	}
	err := w.consumer.Consume(ctx, mq.DeleteQueueName, func(msg amqp.Delivery) {
		w.HandleDelete(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", mq.DeleteQueueName, err)
	}
	logger.Info("Delete worker started...")
	return nil
}

func (w *DeleteWorker) HandleDelete(ctx context.Context, msg amqp.Delivery) {
	var task models.DeleteObjectTask
	if err := json.Unmarshal(msg.Body, &task); err != nil || task.StorageKey == "" {
		logger.Error("Failed to unmarshal delete task", zap.Error(err))
		_ = msg.Nack(false, false) // 解析失败,直接抛弃
		return
	}

	logger.Info("Received object deletion task",
		zap.Uint64("fileID", task.FileID),
		zap.String("key", task.StorageKey))

	policy := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(w.maxElapsed)), ctx)
	err := backoff.Retry(func() error {
		return w.storageService.RemoveObject(ctx, task.StorageKey)
	}, policy)
	if err != nil {
		logger.Error("Failed to delete object from storage",
			zap.String("key", task.StorageKey),
			zap.Uint64("fileID", task.FileID),
			zap.Error(err))
		_ = msg.Nack(false, true) // 重新入队
		return
	}

	logger.Info("Successfully processed object deletion task", zap.Uint64("fileID", task.FileID))
	_ = msg.Ack(false) // 确认消息
}
