package config

import "time"

// SnapshotConfig 描述机型目录快照的来源与本地缓存策略。
// memory 存储后端依赖它加载全量数据；update_time 接口在两种后端下都使用 UpdateTimeURL。
type SnapshotConfig struct {
	// DataURL 是全量机型目录 JSON 的下载地址。
	DataURL string `mapstructure:"dataURL" json:"dataURL" yaml:"dataURL"`
	// UpdateTimeURL 是目录最近更新时间文本的地址。
	UpdateTimeURL string `mapstructure:"updateTimeURL" json:"updateTimeURL" yaml:"updateTimeURL"`
	// CacheDir 是快照的本地持久化目录；为空时关闭磁盘缓存，每次冷启动都回源。
	CacheDir string `mapstructure:"cacheDir" json:"cacheDir" yaml:"cacheDir"`
	// CacheTTL 是磁盘缓存的有效期，过期后回源重新拉取。
	CacheTTL time.Duration `mapstructure:"cacheTTL" json:"cacheTTL" yaml:"cacheTTL" default:"1h"`
	// RequestTimeout 是单次回源 HTTP 请求的超时时间。
	RequestTimeout time.Duration `mapstructure:"requestTimeout" json:"requestTimeout" yaml:"requestTimeout" default:"30s"`
}
