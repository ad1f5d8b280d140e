package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type MinIOStorageService struct {
	client  *minio.Client
	core    *minio.Core
	presign *minio.Client // 使用对外地址签名，客户端可以直接访问
	bucket  string
	expiry  time.Duration
}

var _ StorageService = (*MinIOStorageService)(nil)

// NewMinIOStorageService 创建并返回一个 MinIOStorageService 实例
func NewMinIOStorageService(cfg *config.MinIOConfig, storageCfg *config.StorageConfig) (*MinIOStorageService, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL, // 根据配置决定是否使用 HTTPS
		Region: cfg.Region,
	}

	minioClient, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		logger.Error("初始化 MinIO 客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化 MinIO 客户端: %w", err)
	}

	minioCore, err := minio.NewCore(cfg.Endpoint, opts)
	if err != nil {
		logger.Error("初始化 MinIO Core 失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化 MinIO Core: %w", err)
	}

	presignClient := minioClient
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		// 设置了 Region 后签名不会访问对外地址查询桶位置
		presignClient, err = minio.New(cfg.PublicEndpoint, opts)
		if err != nil {
			return nil, fmt.Errorf("无法初始化 MinIO 签名客户端: %w", err)
		}
	}

	logger.Info("MinIO 客户端和 Core 初始化成功", zap.String("endpoint", cfg.Endpoint))
	return &MinIOStorageService{
		client:  minioClient,
		core:    minioCore,
		presign: presignClient,
		bucket:  storageCfg.Bucket,
		expiry:  storageCfg.PresignedURLExpiry,
	}, nil
}

// --- 分块上传实现 ---

func (s *MinIOStorageService) CreateMultipartUpload(ctx context.Context, key, contentType, cacheControl string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("MinIO 初始化分块上传失败: %w", err)
	}
	return uploadID, nil
}

func (s *MinIOStorageService) PresignUploadParts(ctx context.Context, key, uploadID string, partNumbers []int) ([]PartURL, error) {
	urls := make([]PartURL, 0, len(partNumbers))
	for _, n := range partNumbers {
		params := url.Values{}
		params.Set("partNumber", strconv.Itoa(n))
		params.Set("uploadId", uploadID)

		u, err := s.presign.Presign(ctx, http.MethodPut, s.bucket, key, s.expiry, params)
		if err != nil {
			return nil, fmt.Errorf("生成 MinIO 分片上传URL失败: %w", err)
		}
		urls = append(urls, PartURL{PartNumber: n, URL: u.String()})
	}
	return urls, nil
}

func (s *MinIOStorageService) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []UploadPartResult) error {
	completeParts := make([]minio.CompletePart, 0, len(parts))
	for _, part := range parts {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		})
	}

	if _, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, completeParts, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("MinIO 完成分块上传失败: %w", err)
	}
	return nil
}

func (s *MinIOStorageService) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	return s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID)
}

func (s *MinIOStorageService) ListIncompleteUploads(ctx context.Context, olderThan time.Time) ([]IncompleteUpload, error) {
	var uploads []IncompleteUpload
	for info := range s.client.ListIncompleteUploads(ctx, s.bucket, "", true) {
		if info.Err != nil {
			return nil, fmt.Errorf("列出 MinIO 未完成上传失败: %w", info.Err)
		}
		if info.Initiated.Before(olderThan) {
			uploads = append(uploads, IncompleteUpload{
				Key:       info.Key,
				UploadID:  info.UploadID,
				Initiated: info.Initiated,
			})
		}
	}
	return uploads, nil
}

// --- 对象读写 ---

func (s *MinIOStorageService) PresignDownloadURL(ctx context.Context, key, filename, cacheControl string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", ContentDisposition(filename))
	params.Set("response-cache-control", cacheControl)

	u, err := s.presign.PresignedGetObject(ctx, s.bucket, key, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("生成 MinIO 预签名URL失败: %w", err)
	}
	return u.String(), nil
}

func (s *MinIOStorageService) ReadObjectPrefix(ctx context.Context, key string, n int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(0, n-1); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("MinIO 获取文件失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, n))
	if err != nil {
		return nil, fmt.Errorf("MinIO 读取文件失败: %w", err)
	}
	return data, nil
}

func (s *MinIOStorageService) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("MinIO 获取文件失败: %w", err)
	}
	return obj, nil
}

func (s *MinIOStorageService) RemoveObject(ctx context.Context, key string) error {
	opts := minio.RemoveObjectOptions{
		GovernanceBypass: true, // 如果需要，可以绕过保留策略
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, opts); err != nil {
		return fmt.Errorf("MinIO 删除文件失败: %w", err)
	}
	return nil
}

func (s *MinIOStorageService) IsBucketExist(ctx context.Context) (bool, error) {
	found, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, fmt.Errorf("检查 MinIO 存储桶存在性失败: %w", err)
	}
	return found, nil
}

func (s *MinIOStorageService) MakeBucket(ctx context.Context) error {
	err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil {
		// 如果桶已存在，通常不是错误
		exists, errBucketExists := s.client.BucketExists(ctx, s.bucket)
		if errBucketExists == nil && exists {
			logger.Info("MinIO 存储桶已存在，无需创建", zap.String("bucket", s.bucket))
			return nil
		}
		return fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
	}
	logger.Info("MinIO 存储桶创建成功", zap.String("bucket", s.bucket))
	return nil
}

func (s *MinIOStorageService) IsUploadIDNotFound(err error) bool {
	var resp minio.ErrorResponse
	return errors.As(err, &resp) && resp.Code == "NoSuchUpload"
}

func (s *MinIOStorageService) IsObjectNotFound(err error) bool {
	var resp minio.ErrorResponse
	return errors.As(err, &resp) && resp.Code == "NoSuchKey"
}
