package models

import "time"

// ScanFileTask 定义了要发布到 RabbitMQ 的病毒扫描任务的消息体
type ScanFileTask struct {
	FileID     uint64    `json:"file_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeleteObjectTask 同步删除对象失败后投递的补偿任务
type DeleteObjectTask struct {
	FileID     uint64    `json:"file_id"`
	StorageKey string    `json:"storage_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
