package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	commonconfig "github.com/Xushengqwer/go-common/config"
	"github.com/Xushengqwer/go-common/core"
)

func newTestLogger(t *testing.T) *core.ZapLogger {
	t.Helper()
	logger, err := core.NewZapLogger(commonconfig.ZapConfig{})
	if err != nil {
		t.Fatalf("初始化测试 Logger 失败: %v", err)
	}
	return logger
}

// fakeStore 是 Store 的内存实现。
type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return value, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	return value, ok
}

// seed 直接写入一个指定写入时间的条目，用于构造新鲜/过期状态。
func (s *fakeStore) seed(t *testing.T, key string, payload []byte, storedAt time.Time) {
	t.Helper()
	raw, err := json.Marshal(entry{StoredAt: storedAt, Payload: payload})
	if err != nil {
		t.Fatalf("构造缓存条目失败: %v", err)
	}
	if err := s.Set(context.Background(), key, string(raw), 0); err != nil {
		t.Fatalf("写入缓存条目失败: %v", err)
	}
}

// waitFor 轮询等待异步写回完成。
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("等待异步缓存操作超时")
}

func TestDoMissComputesAndWritesBack(t *testing.T) {
	store := newFakeStore()
	rc := NewResultCache(store, time.Hour, time.Minute, newTestLogger(t))

	var calls int32
	payload, err := rc.Do(context.Background(), "k1", func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"n":1}`), nil
	})
	if err != nil {
		t.Fatalf("Do 返回错误: %v", err)
	}
	if !bytes.Equal(payload, []byte(`{"n":1}`)) {
		t.Errorf("负载异常: %s", payload)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("未命中应触发一次计算，实际 %d 次", calls)
	}

	waitFor(t, func() bool {
		_, ok := store.get("k1")
		return ok
	})
}

func TestDoFreshHitSkipsCompute(t *testing.T) {
	store := newFakeStore()
	store.seed(t, "k1", []byte(`{"cached":true}`), time.Now())
	rc := NewResultCache(store, time.Hour, time.Minute, newTestLogger(t))

	var calls int32
	payload, err := rc.Do(context.Background(), "k1", func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"fresh":true}`), nil
	})
	if err != nil {
		t.Fatalf("Do 返回错误: %v", err)
	}
	if !bytes.Equal(payload, []byte(`{"cached":true}`)) {
		t.Errorf("新鲜命中应返回缓存值，实际 %s", payload)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("新鲜命中不应计算，实际计算 %d 次", calls)
	}
}

func TestDoStaleReturnsOldAndRevalidates(t *testing.T) {
	store := newFakeStore()
	// 写入时间落在 [ttl, ttl+revalidate) 区间内：过期但在宽限窗口。
	store.seed(t, "k1", []byte(`{"stale":true}`), time.Now().Add(-time.Hour-time.Second))
	rc := NewResultCache(store, time.Hour, time.Minute, newTestLogger(t))

	var calls int32
	payload, err := rc.Do(context.Background(), "k1", func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"recomputed":true}`), nil
	})
	if err != nil {
		t.Fatalf("Do 返回错误: %v", err)
	}
	if !bytes.Equal(payload, []byte(`{"stale":true}`)) {
		t.Errorf("宽限窗口内应先返回旧值，实际 %s", payload)
	}

	// 后台重算最终把新值写回。
	waitFor(t, func() bool {
		raw, ok := store.get("k1")
		if !ok {
			return false
		}
		var e entry
		if json.Unmarshal([]byte(raw), &e) != nil {
			return false
		}
		return bytes.Equal(e.Payload, []byte(`{"recomputed":true}`))
	})
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("后台重算应恰好执行一次，实际 %d 次", calls)
	}
}

func TestDoExpiredBeyondWindowRecomputes(t *testing.T) {
	store := newFakeStore()
	store.seed(t, "k1", []byte(`{"ancient":true}`), time.Now().Add(-2*time.Hour))
	rc := NewResultCache(store, time.Hour, time.Minute, newTestLogger(t))

	payload, err := rc.Do(context.Background(), "k1", func(context.Context) ([]byte, error) {
		return []byte(`{"new":true}`), nil
	})
	if err != nil {
		t.Fatalf("Do 返回错误: %v", err)
	}
	if !bytes.Equal(payload, []byte(`{"new":true}`)) {
		t.Errorf("超出宽限窗口应同步重算，实际 %s", payload)
	}
}

func TestNilCachePassthrough(t *testing.T) {
	var rc *ResultCache

	payload, err := rc.Do(context.Background(), "k1", func(context.Context) ([]byte, error) {
		return []byte(`{"direct":true}`), nil
	})
	if err != nil {
		t.Fatalf("Do 返回错误: %v", err)
	}
	if !bytes.Equal(payload, []byte(`{"direct":true}`)) {
		t.Errorf("nil 缓存应直接透传计算结果，实际 %s", payload)
	}
}

func TestKeyIgnoresParamOrder(t *testing.T) {
	a := httptest.NewRequest("GET", "/api/v1/models/search?q=xiaomi&page=2&limit=10", nil)
	b := httptest.NewRequest("GET", "/api/v1/models/search?limit=10&q=xiaomi&page=2", nil)
	c := httptest.NewRequest("GET", "/api/v1/models/search?q=huawei&page=2&limit=10", nil)

	if Key(a) != Key(b) {
		t.Errorf("同一组参数的不同顺序应生成同一缓存键: %q vs %q", Key(a), Key(b))
	}
	if Key(a) == Key(c) {
		t.Errorf("不同参数不应生成同一缓存键: %q", Key(a))
	}
}
