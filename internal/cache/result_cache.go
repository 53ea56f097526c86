// Package cache 提供搜索接口的响应缓存：新鲜期内直接命中，
// 过期后的宽限窗口内先返回旧值、后台重算（stale-while-revalidate）。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/config"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 表示缓存中没有对应条目。
var ErrCacheMiss = errors.New("缓存未命中")

// Store 是结果缓存需要的最小键值能力。生产实现基于 Redis；
// 测试可以用内存 map 替代。
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// redisStore 是 Store 的 Redis 实现。
type redisStore struct {
	client *redis.Client
}

// NewRedisStore 按配置连接 Redis 并返回 Store。
// 不做启动期 Ping：缓存是旁路能力，Redis 暂不可用时服务仍应启动。
func NewRedisStore(cfg config.RedisConfig) Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

func (s *redisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// entry 是缓存中的存储格式：负载加上写入时间，新鲜度在读取侧判断。
type entry struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// ResultCache 把"计算一个响应"的函数包进缓存语义里。
// 缓存层任何故障都只降级为直接计算，绝不让缓存问题变成接口错误。
type ResultCache struct {
	store      Store
	ttl        time.Duration
	revalidate time.Duration
	logger     *core.ZapLogger

	inflight sync.Map // key -> struct{}，保证同一 key 同时只有一个后台重算。
}

// NewResultCache 创建结果缓存。
func NewResultCache(store Store, ttl, revalidate time.Duration, logger *core.ZapLogger) *ResultCache {
	if logger == nil {
		panic("创建 ResultCache 失败：Logger 实例不能为 nil")
	}
	if store == nil {
		logger.Fatal("创建 ResultCache 失败：Store 实例不能为 nil")
	}
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	if revalidate <= 0 {
		revalidate = 30 * time.Second
	}
	return &ResultCache{
		store:      store,
		ttl:        ttl,
		revalidate: revalidate,
		logger:     logger,
	}
}

// Key 由请求方法、路径与排序后的查询参数构成缓存键。
// 参数排序保证同一组条件的不同书写顺序命中同一条目。
func Key(r *http.Request) string {
	values := r.URL.Query()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte(' ')
	sb.WriteString(r.URL.Path)
	for _, k := range keys {
		for _, v := range values[k] {
			sb.WriteByte('&')
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(v)
		}
	}
	return sb.String()
}

// Do 返回 key 对应的响应负载：
//   - 新鲜命中直接返回；
//   - 过期但在宽限窗口内，返回旧值并触发一次后台重算；
//   - 未命中（或缓存层故障）同步计算，成功后异步写回。
//
// rc 为 nil 时整体退化为直接计算，便于部署时关闭缓存。
func (rc *ResultCache) Do(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	if rc == nil {
		return compute(ctx)
	}

	raw, err := rc.store.Get(ctx, key)
	if err == nil {
		var e entry
		if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr == nil {
			age := time.Since(e.StoredAt)
			switch {
			case age < rc.ttl:
				return e.Payload, nil
			case age < rc.ttl+rc.revalidate:
				rc.revalidateAsync(key, compute)
				return e.Payload, nil
			}
		} else {
			rc.logger.Warn("缓存条目无法解析，按未命中处理",
				zap.String("cache_key", key),
				zap.Error(jsonErr),
			)
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		rc.logger.Warn("读取结果缓存失败，降级为直接计算",
			zap.String("cache_key", key),
			zap.Error(err),
		)
	}

	payload, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	rc.storeAsync(key, payload)
	return payload, nil
}

// revalidateAsync 在后台重算并写回一个过期条目，同一 key 并发触发时只执行一次。
func (rc *ResultCache) revalidateAsync(key string, compute func(context.Context) ([]byte, error)) {
	if _, running := rc.inflight.LoadOrStore(key, struct{}{}); running {
		return
	}
	go func() {
		defer rc.inflight.Delete(key)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		payload, err := compute(ctx)
		if err != nil {
			rc.logger.Warn("后台重算缓存条目失败，保留旧值",
				zap.String("cache_key", key),
				zap.Error(err),
			)
			return
		}
		rc.put(ctx, key, payload)
	}()
}

// storeAsync 异步写回新计算的负载，不阻塞请求路径。
func (rc *ResultCache) storeAsync(key string, payload []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc.put(ctx, key, payload)
	}()
}

// put 序列化并写入一个缓存条目。Redis 侧 TTL 覆盖新鲜期加宽限窗口。
func (rc *ResultCache) put(ctx context.Context, key string, payload []byte) {
	raw, err := json.Marshal(entry{StoredAt: time.Now(), Payload: payload})
	if err != nil {
		rc.logger.Warn("序列化缓存条目失败", zap.String("cache_key", key), zap.Error(err))
		return
	}
	if err := rc.store.Set(ctx, key, string(raw), rc.ttl+rc.revalidate); err != nil {
		rc.logger.Warn("写入结果缓存失败", zap.String("cache_key", key), zap.Error(err))
	}
}
