package repositories

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Xushengqwer/model_search/config"
)

// snapshotPayload 持有测试服务返回的目录 JSON，可在用例中途替换。
type snapshotPayload struct {
	value atomic.Value
}

func (p *snapshotPayload) Set(body string) { p.value.Store(body) }
func (p *snapshotPayload) Get() string     { return p.value.Load().(string) }

// newSnapshotServer 起一个返回目录 JSON 的测试服务，并统计数据接口的请求次数。
func newSnapshotServer(t *testing.T, payload *snapshotPayload, dataHits *int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models.json":
			atomic.AddInt64(dataHits, 1)
			w.Header().Set("Last-Modified", "Mon, 01 Sep 2025 00:00:00 GMT")
			_, _ = w.Write([]byte(payload.Get()))
		case "/update_time.txt":
			_, _ = w.Write([]byte("  2025-09-01 08:00:00\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestLoader(t *testing.T, server *httptest.Server, cacheDir string) *SnapshotLoader {
	t.Helper()
	return NewSnapshotLoader(config.SnapshotConfig{
		DataURL:        server.URL + "/models.json",
		UpdateTimeURL:  server.URL + "/update_time.txt",
		CacheDir:       cacheDir,
		CacheTTL:       time.Hour,
		RequestTimeout: 5 * time.Second,
	}, nil, newTestLogger(t))
}

func TestSnapshotSingleFlight(t *testing.T) {
	payload := &snapshotPayload{}
	payload.Set(`[{"id":1,"brand":"xiaomi","model_name":"Xiaomi 13"}]`)
	var dataHits int64
	server := newSnapshotServer(t, payload, &dataHits)
	loader := newTestLoader(t, server, "")

	const readers = 16
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			snap, err := loader.Snapshot(context.Background())
			if err != nil {
				t.Errorf("Snapshot 返回错误: %v", err)
				return
			}
			if len(snap.Records) != 1 || snap.Records[0].ID != 1 {
				t.Errorf("快照内容异常: %+v", snap.Records)
			}
		}()
	}
	wg.Wait()

	if hits := atomic.LoadInt64(&dataHits); hits != 1 {
		t.Errorf("并发读取应只触发一次回源，实际 %d 次", hits)
	}
	if snap, _ := loader.Snapshot(context.Background()); snap.LastModified != "Mon, 01 Sep 2025 00:00:00 GMT" {
		t.Errorf("Last-Modified 未透传: %q", snap.LastModified)
	}
}

func TestSnapshotDiskCacheReuse(t *testing.T) {
	payload := &snapshotPayload{}
	payload.Set(`[{"id":7,"brand":"huawei"}]`)
	var dataHits int64
	server := newSnapshotServer(t, payload, &dataHits)
	cacheDir := t.TempDir()

	first := newTestLoader(t, server, cacheDir)
	if _, err := first.Snapshot(context.Background()); err != nil {
		t.Fatalf("首次加载失败: %v", err)
	}
	if hits := atomic.LoadInt64(&dataHits); hits != 1 {
		t.Fatalf("首次加载应回源 1 次，实际 %d 次", hits)
	}

	// 新的加载器进程使用同一缓存目录：TTL 内不应再回源。
	second := newTestLoader(t, server, cacheDir)
	snap, err := second.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("缓存加载失败: %v", err)
	}
	if len(snap.Records) != 1 || snap.Records[0].ID != 7 {
		t.Errorf("缓存快照内容异常: %+v", snap.Records)
	}
	if hits := atomic.LoadInt64(&dataHits); hits != 1 {
		t.Errorf("磁盘缓存命中时不应回源，实际回源 %d 次", hits)
	}
}

func TestRefreshBypassesCaches(t *testing.T) {
	payload := &snapshotPayload{}
	payload.Set(`[{"id":1,"brand":"xiaomi"}]`)
	var dataHits int64
	server := newSnapshotServer(t, payload, &dataHits)
	loader := newTestLoader(t, server, t.TempDir())

	if _, err := loader.Snapshot(context.Background()); err != nil {
		t.Fatalf("首次加载失败: %v", err)
	}

	payload.Set(`[{"id":1,"brand":"xiaomi"},{"id":2,"brand":"honor"}]`)
	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh 返回错误: %v", err)
	}
	if hits := atomic.LoadInt64(&dataHits); hits != 2 {
		t.Errorf("Refresh 应绕过缓存回源，实际回源 %d 次", hits)
	}

	snap, err := loader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("刷新后读取失败: %v", err)
	}
	if len(snap.Records) != 2 {
		t.Errorf("刷新后应看到新数据，实际 %d 条记录", len(snap.Records))
	}
}

func TestSnapshotRejectsNonArrayPayload(t *testing.T) {
	payload := &snapshotPayload{}
	payload.Set(`{"error":"not an array"}`)
	var dataHits int64
	server := newSnapshotServer(t, payload, &dataHits)
	loader := newTestLoader(t, server, "")

	if _, err := loader.Snapshot(context.Background()); err == nil {
		t.Fatal("非数组格式的快照应返回错误")
	}

	// 加载失败不留半成品状态：修正数据后下一次读取重新回源并成功。
	payload.Set(`[{"id":3}]`)
	snap, err := loader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("重试加载失败: %v", err)
	}
	if len(snap.Records) != 1 || snap.Records[0].ID != 3 {
		t.Errorf("重试后的快照内容异常: %+v", snap.Records)
	}
}

func TestUpdateTimeTrimsBody(t *testing.T) {
	payload := &snapshotPayload{}
	payload.Set(`[]`)
	var dataHits int64
	server := newSnapshotServer(t, payload, &dataHits)
	loader := newTestLoader(t, server, "")

	got, err := loader.UpdateTime(context.Background())
	if err != nil {
		t.Fatalf("UpdateTime 返回错误: %v", err)
	}
	if got != "2025-09-01 08:00:00" {
		t.Errorf("UpdateTime = %q, 期望去除首尾空白", got)
	}
}
