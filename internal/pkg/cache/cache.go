package cache

import (
	"context"
	"fmt"
	"time"
)

// 缓存通用接口
type Cache interface {
	// Set在缓存中设置一个值，并指定过期时间。
	// value应该是一个可以被JSON封送的结构体或指向结构体的指针。
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Get从缓存中检索一个值，并将其解编组到目标接口。
	// target应该是一个指针，指向希望解编组成的类型。
	Get(ctx context.Context, key string, target any) error

	// 删除一个或多个key
	Del(ctx context.Context, keys ...string) error

	// 检查key是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// SetNX 仅当 key 不存在时写入，返回是否写入成功，用作短期互斥锁
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)

	// Ping 检查连接是否可用
	Ping(ctx context.Context) error
}

func GenerateUserAuthKey(userID uint64) string {
	return fmt.Sprintf("user:auth:%d", userID)
}

func GenerateAdminStatsKey() string {
	return "admin:stats"
}

// GenerateUploadCompleteLockKey 同一 uploadId 同时只允许一个合并请求
func GenerateUploadCompleteLockKey(uploadID string) string {
	return fmt.Sprintf("upload:complete:%s", uploadID)
}
