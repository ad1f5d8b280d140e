package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchQuery_FiltersByOwner(t *testing.T) {
	q := BuildSearchQuery(9, "  invoice ", 20)

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"term":{"owner_id":9}`)
	assert.Contains(t, string(raw), `"query":"invoice"`)
	assert.Contains(t, string(raw), `"size":20`)
}

func TestSearchFileIDs(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"id":3}},{"_source":{"id":1}}]}}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	ids, err := NewElasticsearchIndexer(client, "files").SearchFileIDs(context.Background(), 5, "report", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 1}, ids)
	assert.Contains(t, gotBody, `"owner_id":5`)
}

func TestNoopIndexer(t *testing.T) {
	idx := NewNoopIndexer()
	assert.False(t, idx.Enabled())
	ids, err := idx.SearchFileIDs(context.Background(), 1, "x", 5)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}
