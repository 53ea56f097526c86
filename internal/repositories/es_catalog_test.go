package repositories

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// fakeESTransport 用固定响应替代真实的 Elasticsearch 节点。
type fakeESTransport struct {
	body string
}

func (f *fakeESTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Request:    req,
	}, nil
}

func newStubESRepo(t *testing.T, responseBody string) *ESCatalogRepository {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: &fakeESTransport{body: responseBody},
	})
	if err != nil {
		t.Fatalf("创建 Elasticsearch 客户端失败: %v", err)
	}
	return NewESCatalogRepository(client, "mobile_models", time.Second, newTestLogger(t))
}

func TestESAggregateDTypesSkipsEmptyBucket(t *testing.T) {
	repo := newStubESRepo(t, `{
		"aggregations": {
			"dtypes": {
				"buckets": [
					{"key": "手机", "doc_count": 3},
					{"key": "", "doc_count": 2},
					{"key": "平板", "doc_count": 1}
				]
			}
		}
	}`)

	facets, err := repo.AggregateDTypes(context.Background(), CatalogQuery{})
	if err != nil {
		t.Fatalf("AggregateDTypes 返回错误: %v", err)
	}
	if len(facets) != 2 {
		t.Fatalf("空设备形态桶应被排除，实际 %v", facets)
	}
	if facets[0].DType != "手机" || facets[0].Count != 3 || facets[1].DType != "平板" || facets[1].Count != 1 {
		t.Errorf("聚合结果异常: %v", facets)
	}
}
