package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"
)

type AliyunOSSStorageService struct {
	client *oss.Client
	bucket *oss.Bucket
	name   string
	expiry time.Duration
}

var _ StorageService = (*AliyunOSSStorageService)(nil)

// NewAliyunOSSStorageService 创建并返回一个 AliyunOSSStorageService 实例
func NewAliyunOSSStorageService(cfg *config.AliyunOSSConfig, storageCfg *config.StorageConfig) (*AliyunOSSStorageService, error) {
	// OSS Endpoint 应该包含 http:// 或 https:// 前缀
	ossClient, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		logger.Error("初始化阿里云OSS客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化阿里云OSS客户端: %w", err)
	}
	bucket, err := ossClient.Bucket(storageCfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}
	logger.Info("阿里云OSS客户端初始化成功", zap.String("endpoint", cfg.Endpoint))
	return &AliyunOSSStorageService{
		client: ossClient,
		bucket: bucket,
		name:   storageCfg.Bucket,
		expiry: storageCfg.PresignedURLExpiry,
	}, nil
}

func (s *AliyunOSSStorageService) imur(key, uploadID string) oss.InitiateMultipartUploadResult {
	return oss.InitiateMultipartUploadResult{Bucket: s.name, Key: key, UploadID: uploadID}
}

// --- 分块上传实现 ---

func (s *AliyunOSSStorageService) CreateMultipartUpload(ctx context.Context, key, contentType, cacheControl string) (string, error) {
	result, err := s.bucket.InitiateMultipartUpload(key,
		oss.ContentType(contentType),
		oss.CacheControl(cacheControl),
		oss.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("阿里云OSS初始化分块上传失败: %w", err)
	}
	return result.UploadID, nil
}

func (s *AliyunOSSStorageService) PresignUploadParts(ctx context.Context, key, uploadID string, partNumbers []int) ([]PartURL, error) {
	urls := make([]PartURL, 0, len(partNumbers))
	for _, n := range partNumbers {
		signed, err := s.bucket.SignURL(key, oss.HTTPPut, int64(s.expiry.Seconds()),
			oss.AddParam("partNumber", strconv.Itoa(n)),
			oss.AddParam("uploadId", uploadID),
		)
		if err != nil {
			return nil, fmt.Errorf("生成阿里云OSS分片上传URL失败: %w", err)
		}
		urls = append(urls, PartURL{PartNumber: n, URL: signed})
	}
	return urls, nil
}

func (s *AliyunOSSStorageService) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []UploadPartResult) error {
	ossParts := make([]oss.UploadPart, 0, len(parts))
	for _, p := range parts {
		ossParts = append(ossParts, oss.UploadPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	if _, err := s.bucket.CompleteMultipartUpload(s.imur(key, uploadID), ossParts, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("阿里云OSS完成分块上传失败: %w", err)
	}
	return nil
}

func (s *AliyunOSSStorageService) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	return s.bucket.AbortMultipartUpload(s.imur(key, uploadID), oss.WithContext(ctx))
}

func (s *AliyunOSSStorageService) ListIncompleteUploads(ctx context.Context, olderThan time.Time) ([]IncompleteUpload, error) {
	var (
		uploads        []IncompleteUpload
		keyMarker      string
		uploadIDMarker string
	)
	for {
		result, err := s.bucket.ListMultipartUploads(
			oss.KeyMarker(keyMarker),
			oss.UploadIDMarker(uploadIDMarker),
			oss.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf("列出阿里云OSS未完成上传失败: %w", err)
		}
		for _, u := range result.Uploads {
			if u.Initiated.Before(olderThan) {
				uploads = append(uploads, IncompleteUpload{Key: u.Key, UploadID: u.UploadID, Initiated: u.Initiated})
			}
		}
		if !result.IsTruncated {
			return uploads, nil
		}
		keyMarker, uploadIDMarker = result.NextKeyMarker, result.NextUploadIDMarker
	}
}

// --- 对象读写 ---

// PresignDownloadURL 为下载生成预签名URL (Aliyun OSS 支持)
func (s *AliyunOSSStorageService) PresignDownloadURL(ctx context.Context, key, filename, cacheControl string) (string, error) {
	signedURL, err := s.bucket.SignURL(key, oss.HTTPGet, int64(s.expiry.Seconds()),
		oss.ResponseContentDisposition(ContentDisposition(filename)),
		oss.ResponseCacheControl(cacheControl),
	)
	if err != nil {
		return "", fmt.Errorf("生成阿里云OSS预签名URL失败: %w", err)
	}
	return signedURL, nil
}

func (s *AliyunOSSStorageService) ReadObjectPrefix(ctx context.Context, key string, n int64) ([]byte, error) {
	reader, err := s.bucket.GetObject(key, oss.Range(0, n-1), oss.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("阿里云OSS获取文件失败: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(io.LimitReader(reader, n))
}

func (s *AliyunOSSStorageService) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("阿里云OSS获取文件失败: %w", err)
	}
	return reader, nil
}

// RemoveObject 实现 StorageService 接口的 RemoveObject 方法
func (s *AliyunOSSStorageService) RemoveObject(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("阿里云OSS删除文件失败: %w", err)
	}
	return nil
}

// IsBucketExist 实现 StorageService 接口的 IsBucketExist 方法
func (s *AliyunOSSStorageService) IsBucketExist(ctx context.Context) (bool, error) {
	found, err := s.client.IsBucketExist(s.name)
	if err != nil {
		return false, fmt.Errorf("检查阿里云OSS存储桶存在性失败: %w", err)
	}
	return found, nil
}

// MakeBucket 实现 StorageService 接口的 MakeBucket 方法
func (s *AliyunOSSStorageService) MakeBucket(ctx context.Context) error {
	err := s.client.CreateBucket(s.name, oss.ACL(oss.ACLPrivate))
	if err != nil {
		// 检查是否是桶已存在错误
		var ossErr oss.ServiceError
		if errors.As(err, &ossErr) && (ossErr.Code == "BucketAlreadyExists" || ossErr.Code == "BucketAlreadyOwnedByYou") {
			logger.Info("阿里云OSS存储桶已存在，无需创建", zap.String("bucket", s.name))
			return nil
		}
		return fmt.Errorf("创建阿里云OSS存储桶失败: %w", err)
	}
	logger.Info("阿里云OSS存储桶创建成功", zap.String("bucket", s.name))
	return nil
}

func (s *AliyunOSSStorageService) IsUploadIDNotFound(err error) bool {
	if err == nil {
		return false
	}
	// Aliyun OSS a "NoSuchUpload" error code when the upload ID does not exist.
	var ossErr oss.ServiceError
	return errors.As(err, &ossErr) && ossErr.Code == "NoSuchUpload"
}

func (s *AliyunOSSStorageService) IsObjectNotFound(err error) bool {
	var ossErr oss.ServiceError
	return errors.As(err, &ossErr) && ossErr.Code == "NoSuchKey"
}
