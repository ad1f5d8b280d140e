package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3StorageService 兼容 S3 协议的对象存储（AWS S3、R2、Ceph 等）
type S3StorageService struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

var _ StorageService = (*S3StorageService)(nil)

func NewS3StorageService(ctx context.Context, cfg *config.S3Config, storageCfg *config.StorageConfig) (*S3StorageService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("加载 S3 配置失败: %w", err)
	}

	newClient := func(endpoint string) *s3.Client {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	client := newClient(cfg.Endpoint)
	publicClient := client
	if cfg.PublicEndpoint != "" {
		publicClient = newClient(cfg.PublicEndpoint)
	}

	logger.Info("S3 客户端初始化成功", zap.String("endpoint", cfg.Endpoint), zap.String("region", cfg.Region))
	return &S3StorageService{
		client:  client,
		presign: s3.NewPresignClient(publicClient),
		bucket:  storageCfg.Bucket,
		expiry:  storageCfg.PresignedURLExpiry,
	}, nil
}

// --- 分块上传实现 ---

func (s *S3StorageService) CreateMultipartUpload(ctx context.Context, key, contentType, cacheControl string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("S3 初始化分块上传失败: %w", err)
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3StorageService) PresignUploadParts(ctx context.Context, key, uploadID string, partNumbers []int) ([]PartURL, error) {
	urls := make([]PartURL, 0, len(partNumbers))
	for _, n := range partNumbers {
		req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(int32(n)),
		}, s3.WithPresignExpires(s.expiry))
		if err != nil {
			return nil, fmt.Errorf("生成 S3 分片上传URL失败: %w", err)
		}
		urls = append(urls, PartURL{PartNumber: n, URL: req.URL})
	}
	return urls, nil
}

func (s *S3StorageService) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []UploadPartResult) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(int32(p.PartNumber)),
		})
	}
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return fmt.Errorf("S3 完成分块上传失败: %w", err)
	}
	return nil
}

func (s *S3StorageService) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	return err
}

func (s *S3StorageService) ListIncompleteUploads(ctx context.Context, olderThan time.Time) ([]IncompleteUpload, error) {
	var (
		uploads        []IncompleteUpload
		keyMarker      *string
		uploadIDMarker *string
	)
	for {
		out, err := s.client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
			Bucket:         aws.String(s.bucket),
			KeyMarker:      keyMarker,
			UploadIdMarker: uploadIDMarker,
		})
		if err != nil {
			return nil, fmt.Errorf("列出 S3 未完成上传失败: %w", err)
		}
		for _, u := range out.Uploads {
			initiated := aws.ToTime(u.Initiated)
			if initiated.Before(olderThan) {
				uploads = append(uploads, IncompleteUpload{
					Key:       aws.ToString(u.Key),
					UploadID:  aws.ToString(u.UploadId),
					Initiated: initiated,
				})
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			return uploads, nil
		}
		keyMarker, uploadIDMarker = out.NextKeyMarker, out.NextUploadIdMarker
	}
}

// --- 对象读写 ---

func (s *S3StorageService) PresignDownloadURL(ctx context.Context, key, filename, cacheControl string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(ContentDisposition(filename)),
		ResponseCacheControl:       aws.String(cacheControl),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("生成 S3 预签名URL失败: %w", err)
	}
	return req.URL, nil
}

func (s *S3StorageService) ReadObjectPrefix(ctx context.Context, key string, n int64) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", n-1)),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 获取文件失败: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, n))
}

func (s *S3StorageService) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 获取文件失败: %w", err)
	}
	return out.Body, nil
}

func (s *S3StorageService) RemoveObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("S3 删除文件失败: %w", err)
	}
	return nil
}

func (s *S3StorageService) IsBucketExist(ctx context.Context) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("检查 S3 存储桶存在性失败: %w", err)
	}
	return true, nil
}

func (s *S3StorageService) MakeBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("创建 S3 存储桶失败: %w", err)
	}
	logger.Info("S3 存储桶创建成功", zap.String("bucket", s.bucket))
	return nil
}

func (s *S3StorageService) IsUploadIDNotFound(err error) bool {
	var noSuchUpload *types.NoSuchUpload
	return errors.As(err, &noSuchUpload)
}

func (s *S3StorageService) IsObjectNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
