package repositories

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Xushengqwer/go-common/core"
	"github.com/Xushengqwer/model_search/config"
	"github.com/Xushengqwer/model_search/internal/models"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// loadState 是快照加载器的状态枚举。
type loadState int

const (
	// stateEmpty 表示内存中没有快照，下一次读取会发起加载。
	stateEmpty loadState = iota
	// stateLoading 表示一次加载正在进行，读取方共享等待同一个完成信号。
	stateLoading
	// stateReady 表示内存快照可用。
	stateReady
)

// 磁盘缓存文件名。时间戳单独存放，校验新鲜度时无需解析数据文件。
const (
	snapshotCacheFile = "models_snapshot.json"
	snapshotStampFile = "models_snapshot.stamp"
)

// Snapshot 是一次加载得到的不可变目录数据。
// 加载完成后整体替换，读取方拿到的切片不会再被修改。
type Snapshot struct {
	Records      []models.MobileModelRecord
	LoadedAt     time.Time
	LastModified string // 回源响应的 Last-Modified 原文，可能为空。
}

// SnapshotLoader 负责从远端拉取全量机型目录并在进程内共享。
//
// 并发语义：任意数量的并发读取只会触发一次实际加载；加载期间的读取方
// 阻塞在同一个完成信号上，成功后同时获得同一份快照，失败后同时收到错误。
// 加载失败不会留下半成品状态，下一次读取会重新发起加载。
type SnapshotLoader struct {
	cfg    config.SnapshotConfig
	client *http.Client
	logger *core.ZapLogger

	mu      sync.Mutex
	state   loadState
	current *Snapshot
	pending chan struct{} // 仅在 stateLoading 期间非 nil
	loadErr error         // 最近一次失败加载的错误
}

// NewSnapshotLoader 创建快照加载器。transport 允许注入链路追踪包装的 RoundTripper。
func NewSnapshotLoader(cfg config.SnapshotConfig, transport http.RoundTripper, logger *core.ZapLogger) *SnapshotLoader {
	if logger == nil {
		panic("创建 SnapshotLoader 失败：Logger 实例不能为 nil")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &SnapshotLoader{
		cfg:    cfg,
		client: &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

// Snapshot 返回当前内存快照；没有时触发（或等待）一次加载。
// ctx 取消只影响当前调用方的等待，进行中的加载会继续完成并服务其他读取方。
func (l *SnapshotLoader) Snapshot(ctx context.Context) (*Snapshot, error) {
	l.mu.Lock()
	if l.state == stateReady {
		snap := l.current
		l.mu.Unlock()
		return snap, nil
	}
	if l.state == stateEmpty {
		l.begin(false)
	}
	ch := l.pending
	l.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == stateReady {
		return l.current, nil
	}
	return nil, l.loadErr
}

// Refresh 丢弃当前快照并绕过磁盘缓存强制回源。
// 若已有加载在进行，先等它结束再发起强制加载，避免两次并发回源。
func (l *SnapshotLoader) Refresh(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.state == stateLoading {
			ch := l.pending
			l.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		l.current = nil
		l.begin(true)
		ch := l.pending
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		l.mu.Lock()
		err := l.loadErr
		if l.state == stateReady {
			err = nil
		}
		l.mu.Unlock()
		return err
	}
}

// begin 启动一次后台加载。调用方必须持有 l.mu。
func (l *SnapshotLoader) begin(bypassCache bool) {
	ch := make(chan struct{})
	l.state = stateLoading
	l.pending = ch

	go func() {
		snap, err := l.fetch(bypassCache)

		l.mu.Lock()
		if err != nil {
			l.state = stateEmpty
			l.current = nil
			l.loadErr = err
			l.logger.Error("加载机型目录快照失败", zap.Error(err))
		} else {
			l.state = stateReady
			l.current = snap
			l.loadErr = nil
			l.logger.Info("机型目录快照加载完成",
				zap.Int("record_count", len(snap.Records)),
				zap.String("last_modified", snap.LastModified),
			)
		}
		l.pending = nil
		l.mu.Unlock()
		close(ch)
	}()
}

// fetch 获取一份快照：优先读磁盘缓存（除非 bypassCache），否则回源并写回缓存。
// 加载不绑定任何单个调用方的 ctx，超时由 http.Client 自身控制。
func (l *SnapshotLoader) fetch(bypassCache bool) (*Snapshot, error) {
	if !bypassCache {
		if snap, ok := l.readDiskCache(); ok {
			return snap, nil
		}
	}

	req, err := http.NewRequest(http.MethodGet, l.cfg.DataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建快照请求失败: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("拉取机型目录快照失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("拉取机型目录快照失败，状态码: %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取快照响应体失败: %w", err)
	}

	var records []models.MobileModelRecord
	if err := sonic.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("解析快照 JSON 失败: %w", err)
	}
	if records == nil {
		return nil, fmt.Errorf("快照数据格式异常：不是记录数组")
	}

	l.writeDiskCache(payload)

	return &Snapshot{
		Records:      records,
		LoadedAt:     time.Now(),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// readDiskCache 尝试读取未过期的磁盘缓存。任何异常都按缓存未命中处理。
func (l *SnapshotLoader) readDiskCache() (*Snapshot, bool) {
	if l.cfg.CacheDir == "" {
		return nil, false
	}

	stampRaw, err := os.ReadFile(filepath.Join(l.cfg.CacheDir, snapshotStampFile))
	if err != nil {
		return nil, false
	}
	stamp, err := strconv.ParseInt(strings.TrimSpace(string(stampRaw)), 10, 64)
	if err != nil {
		return nil, false
	}
	if time.Since(time.Unix(stamp, 0)) >= l.cfg.CacheTTL {
		return nil, false
	}

	payload, err := os.ReadFile(filepath.Join(l.cfg.CacheDir, snapshotCacheFile))
	if err != nil {
		return nil, false
	}
	var records []models.MobileModelRecord
	if err := sonic.Unmarshal(payload, &records); err != nil {
		l.logger.Warn("磁盘缓存的快照无法解析，忽略并回源", zap.Error(err))
		return nil, false
	}
	if records == nil {
		return nil, false
	}

	l.logger.Info("命中机型目录快照的磁盘缓存", zap.Int("record_count", len(records)))
	return &Snapshot{Records: records, LoadedAt: time.Unix(stamp, 0)}, true
}

// writeDiskCache 把快照原始字节写入磁盘缓存。写入失败只降级为日志，不影响本次加载。
func (l *SnapshotLoader) writeDiskCache(payload []byte) {
	if l.cfg.CacheDir == "" {
		return
	}
	if err := os.MkdirAll(l.cfg.CacheDir, 0o755); err != nil {
		l.logger.Warn("创建快照缓存目录失败", zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(l.cfg.CacheDir, snapshotCacheFile), payload, 0o644); err != nil {
		l.logger.Warn("写入快照缓存文件失败", zap.Error(err))
		return
	}
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if err := os.WriteFile(filepath.Join(l.cfg.CacheDir, snapshotStampFile), []byte(stamp), 0o644); err != nil {
		l.logger.Warn("写入快照缓存时间戳失败", zap.Error(err))
	}
}

// UpdateTime 返回目录数据的最近更新时间文本。
// 回源失败时退回内存快照的 Last-Modified；两者都没有时返回错误。
func (l *SnapshotLoader) UpdateTime(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.UpdateTimeURL, nil)
	if err != nil {
		return "", fmt.Errorf("构建更新时间请求失败: %w", err)
	}
	resp, err := l.client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			if readErr == nil {
				if text := strings.TrimSpace(string(body)); text != "" {
					return text, nil
				}
			}
		}
		err = fmt.Errorf("更新时间接口返回状态码: %d", resp.StatusCode)
	}

	l.logger.Warn("获取目录更新时间失败，尝试退回快照的 Last-Modified", zap.Error(err))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil && l.current.LastModified != "" {
		return l.current.LastModified, nil
	}
	return "", fmt.Errorf("获取目录更新时间失败: %w", err)
}
