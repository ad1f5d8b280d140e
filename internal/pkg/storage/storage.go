package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
)

// StorageService 定义了面向单个存储桶的对象存储操作接口
// 分片数据由客户端通过预签名 URL 直接上传，服务端只负责签名与合并
type StorageService interface {
	// CreateMultipartUpload 初始化分块上传, 返回 uploadID
	CreateMultipartUpload(ctx context.Context, key, contentType, cacheControl string) (string, error)
	// PresignUploadParts 为指定分片生成预签名 PUT 地址
	PresignUploadParts(ctx context.Context, key, uploadID string, partNumbers []int) ([]PartURL, error)
	// CompleteMultipartUpload 完成分块上传，parts 需按分片号升序
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []UploadPartResult) error
	// AbortMultipartUpload 中止分块上传
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	// ListIncompleteUploads 列出早于 olderThan 发起且尚未完成的分块上传
	ListIncompleteUploads(ctx context.Context, olderThan time.Time) ([]IncompleteUpload, error)

	// PresignDownloadURL 生成带下载文件名与缓存策略的预签名 GET 地址
	PresignDownloadURL(ctx context.Context, key, filename, cacheControl string) (string, error)
	// ReadObjectPrefix 读取对象开头最多 n 个字节
	ReadObjectPrefix(ctx context.Context, key string, n int64) ([]byte, error)
	// GetObject 返回对象内容读取器，调用方负责关闭
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	// RemoveObject 删除对象
	RemoveObject(ctx context.Context, key string) error

	// 检查存储桶是否存在
	IsBucketExist(ctx context.Context) (bool, error)
	// 创建存储桶
	MakeBucket(ctx context.Context) error
	// IsUploadIDNotFound 检查错误是否是 "upload ID not found" 类型
	IsUploadIDNotFound(err error) bool
	// IsObjectNotFound 检查错误是否是对象不存在
	IsObjectNotFound(err error) bool
}

// PartURL 分片预签名上传地址
type PartURL struct {
	PartNumber int
	URL        string
}

type UploadPartResult struct {
	PartNumber int
	ETag       string
}

// IncompleteUpload 未完成的分块上传
type IncompleteUpload struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

func NewStorageService(cfg *config.Config) (StorageService, error) {
	switch cfg.Storage.Type {
	case "minio":
		return NewMinIOStorageService(&cfg.MinIO, &cfg.Storage)
	case "aliyun_oss":
		return NewAliyunOSSStorageService(&cfg.AliyunOSS, &cfg.Storage)
	case "s3":
		return NewS3StorageService(context.Background(), &cfg.S3, &cfg.Storage)
	default:
		return nil, errors.New("invalid storageType")
	}
}

// ContentDisposition 生成 RFC 5987 编码的附件下载头
func ContentDisposition(filename string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(filename), "+", "%20")
	return "attachment; filename*=UTF-8''" + encoded
}

// NormalizeETag 保证 ETag 带双引号
func NormalizeETag(etag string) string {
	etag = strings.TrimSpace(etag)
	if strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`) && len(etag) >= 2 {
		return etag
	}
	return fmt.Sprintf("%q", strings.Trim(etag, `"`))
}

// SortParts 返回按分片号升序、ETag 规范化后的副本
func SortParts(parts []UploadPartResult) []UploadPartResult {
	sorted := make([]UploadPartResult, len(parts))
	for i, p := range parts {
		sorted[i] = UploadPartResult{PartNumber: p.PartNumber, ETag: NormalizeETag(p.ETag)}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PartNumber < sorted[j].PartNumber
	})
	return sorted
}
