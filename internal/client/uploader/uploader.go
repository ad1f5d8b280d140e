// Package uploader 命令行使用的断点续传客户端
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
)

const apiPrefix = "/api/v1/uploads"

// ErrAlreadyCompleted 服务端已经为该会话创建过文件，本地进度已清除
var ErrAlreadyCompleted = errors.New("upload already completed")

// APIError 服务端返回的错误响应
type APIError struct {
	Status  int
	Code    int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Reason, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

// Options 上传选项，Mime 为空时根据文件内容识别
type Options struct {
	Mime     string
	FolderID *uint64
}

// Progress 每上传完一个分片回调一次
type Progress func(done, total int)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	store      StateStore
	progress   Progress
	// 单个分片的最长重试时间
	partRetry time.Duration
}

func New(baseURL, token string, store StateStore, progress Progress) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		store:      store,
		progress:   progress,
		partRetry:  2 * time.Minute,
	}
}

// Fingerprint name:size:mime:mtime，文件改动后会重新开始上传
func Fingerprint(info os.FileInfo, mime string) string {
	return fmt.Sprintf("%s:%d:%s:%d", info.Name(), info.Size(), mime, info.ModTime().UnixNano())
}

// Upload 上传本地文件，存在未完成的进度时只补传缺失的分片
func (c *Client) Upload(ctx context.Context, path string, opts Options) (*models.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	mime := opts.Mime
	if mime == "" {
		detected, err := mimetype.DetectReader(f)
		if err != nil {
			return nil, fmt.Errorf("detect mime: %w", err)
		}
		mime = detected.String()
		if i := strings.IndexByte(mime, ';'); i >= 0 {
			mime = mime[:i]
		}
	}
	fingerprint := Fingerprint(info, mime)

	state, urls, err := c.prepare(ctx, fingerprint, filepath.Base(path), info.Size(), mime, opts.FolderID)
	if err != nil {
		return nil, err
	}

	for _, part := range urls {
		if err := c.uploadPart(ctx, f, info.Size(), state, part); err != nil {
			return nil, err
		}
		if err := c.store.Save(state); err != nil {
			return nil, fmt.Errorf("save state: %w", err)
		}
		if c.progress != nil {
			c.progress(len(state.UploadedParts), state.PartCount)
		}
	}

	file, err := c.complete(ctx, state)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !discardsSession(apiErr.Status) {
			return nil, err
		}
		// 会话已完成、过期或内容被拒绝，重放同一个请求不会成功
		if delErr := c.store.Delete(fingerprint); delErr != nil {
			return nil, fmt.Errorf("delete state: %w", delErr)
		}
		if apiErr.Status == http.StatusConflict {
			return nil, fmt.Errorf("%w: %v", ErrAlreadyCompleted, err)
		}
		return nil, err
	}
	if err := c.store.Delete(fingerprint); err != nil {
		return nil, fmt.Errorf("delete state: %w", err)
	}
	return file, nil
}

// prepare 返回需要上传的分片地址，会话失效时重新初始化
func (c *Client) prepare(ctx context.Context, fingerprint, name string, size int64, mime string, folderID *uint64) (*State, []models.PartURL, error) {
	state, err := c.store.Load(fingerprint)
	switch {
	case err == nil:
		missing := state.MissingParts()
		if len(missing) == 0 {
			return state, nil, nil
		}
		var resp models.UploadInitResponse
		err = c.call(ctx, "/resume", models.UploadResumeRequest{
			UploadToken: state.UploadToken,
			PartNumbers: missing,
		}, &resp)
		if err == nil {
			return state, resp.PartURLs, nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status >= http.StatusInternalServerError {
			return nil, nil, err
		}
		// 会话过期或已被中止，从头开始
		if err := c.store.Delete(fingerprint); err != nil {
			return nil, nil, err
		}
	case !errors.Is(err, ErrStateNotFound):
		return nil, nil, fmt.Errorf("load state: %w", err)
	}

	var resp models.UploadInitResponse
	if err := c.call(ctx, "/initiate", models.UploadInitRequest{
		Filename: name,
		Size:     size,
		Mime:     mime,
		FolderID: folderID,
	}, &resp); err != nil {
		return nil, nil, err
	}
	state = &State{
		Fingerprint:   fingerprint,
		UploadToken:   resp.UploadToken,
		UploadID:      resp.UploadID,
		Key:           resp.StorageKey,
		PartSize:      resp.PartSize,
		PartCount:     resp.TotalParts,
		UploadedParts: make(map[int]string),
	}
	if err := c.store.Save(state); err != nil {
		return nil, nil, fmt.Errorf("save state: %w", err)
	}
	return state, resp.PartURLs, nil
}

// discardsSession 认证失败与限流不影响会话本身，保留进度
func discardsSession(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}

func (c *Client) uploadPart(ctx context.Context, f *os.File, size int64, state *State, part models.PartURL) error {
	offset := int64(part.PartNumber-1) * state.PartSize
	length := state.PartSize
	if offset+length > size {
		length = size - offset
	}
	if offset < 0 || length <= 0 {
		return fmt.Errorf("part %d out of range", part.PartNumber)
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(c.partRetry)), ctx)
	var etag string
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, part.URL, io.NewSectionReader(f, offset, length))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.ContentLength = length

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("upload part %d: status %d", part.PartNumber, resp.StatusCode)
			// 预签名地址过期等客户端错误重试无意义
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		etag = resp.Header.Get("ETag")
		if etag == "" {
			return backoff.Permanent(fmt.Errorf("upload part %d: missing ETag", part.PartNumber))
		}
		return nil
	}, policy)
	if err != nil {
		return err
	}
	state.UploadedParts[part.PartNumber] = etag
	return nil
}

func (c *Client) complete(ctx context.Context, state *State) (*models.File, error) {
	parts := make([]models.UploadPartInfo, 0, len(state.UploadedParts))
	for n, etag := range state.UploadedParts {
		parts = append(parts, models.UploadPartInfo{PartNumber: n, ETag: etag})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	var resp models.UploadCompleteResponse
	if err := c.call(ctx, "/complete", models.UploadCompleteRequest{
		UploadToken: state.UploadToken,
		Parts:       parts,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.File, nil
}

func (c *Client) call(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Reason: env.Reason, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
