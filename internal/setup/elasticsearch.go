package setup

import (
	"fmt"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/search"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

// InitSearchIndexer 未开启 Elasticsearch 时返回空实现，文件搜索回退到数据库
func InitSearchIndexer(cfg *config.ElasticsearchConfig) (search.Indexer, error) {
	if !cfg.Enabled {
		return search.NewNoopIndexer(), nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	// 尝试连接并获取集群信息，验证连接是否成功
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}

	logger.Info("Elasticsearch client initialized successfully.", zap.String("index", cfg.Index))
	return search.NewElasticsearchIndexer(client, cfg.Index), nil
}
