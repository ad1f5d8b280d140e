// Package search 为文件名提供全文检索
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Indexer 文件索引接口，未启用时文件列表退回数据库 LIKE 查询
type Indexer interface {
	Enabled() bool
	IndexFile(ctx context.Context, file *models.File) error
	DeleteFile(ctx context.Context, fileID uint64) error
	// SearchFileIDs 按相关度返回匹配的文件ID
	SearchFileIDs(ctx context.Context, ownerID uint64, query string, limit int) ([]uint64, error)
}

type fileDocument struct {
	ID        uint64    `json:"id"`
	OwnerID   uint64    `json:"owner_id"`
	Filename  string    `json:"filename"`
	Mime      string    `json:"mime"`
	CreatedAt time.Time `json:"created_at"`
}

type esIndexer struct {
	client *elasticsearch.Client
	index  string
}

var _ Indexer = (*esIndexer)(nil)

func NewElasticsearchIndexer(client *elasticsearch.Client, index string) Indexer {
	return &esIndexer{client: client, index: index}
}

func (e *esIndexer) Enabled() bool { return true }

func (e *esIndexer) IndexFile(ctx context.Context, file *models.File) error {
	body, err := json.Marshal(fileDocument{
		ID:        file.ID,
		OwnerID:   file.OwnerID,
		Filename:  file.Filename,
		Mime:      file.Mime,
		CreatedAt: file.CreatedAt,
	})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: strconv.FormatUint(file.ID, 10),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch index: %s", res.Status())
	}
	return nil
}

func (e *esIndexer) DeleteFile(ctx context.Context, fileID uint64) error {
	req := esapi.DeleteRequest{
		Index:      e.index,
		DocumentID: strconv.FormatUint(fileID, 10),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer res.Body.Close()
	// 文档不存在不算错误
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch delete: %s", res.Status())
	}
	return nil
}

// BuildSearchQuery 构造只检索指定用户文件的查询
func BuildSearchQuery(ownerID uint64, query string, limit int) map[string]any {
	return map[string]any{
		"size":    limit,
		"_source": []string{"id"},
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"owner_id": ownerID}},
				},
				"must": []any{
					map[string]any{"match": map[string]any{
						"filename": map[string]any{"query": strings.TrimSpace(query), "fuzziness": "AUTO"},
					}},
				},
			},
		},
	}
}

func (e *esIndexer) SearchFileIDs(ctx context.Context, ownerID uint64, query string, limit int) ([]uint64, error) {
	body, err := json.Marshal(BuildSearchQuery(ownerID, query, limit))
	if err != nil {
		return nil, err
	}
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source fileDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("elasticsearch decode: %w", err)
	}
	ids := make([]uint64, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.Source.ID)
	}
	return ids, nil
}

type noopIndexer struct{}

// NewNoopIndexer 未配置 Elasticsearch 时使用
func NewNoopIndexer() Indexer { return noopIndexer{} }

func (noopIndexer) Enabled() bool { return false }
func (noopIndexer) IndexFile(context.Context, *models.File) error { return nil }
func (noopIndexer) DeleteFile(context.Context, uint64) error { return nil }
func (noopIndexer) SearchFileIDs(context.Context, uint64, string, int) ([]uint64, error) {
	return nil, nil
}
