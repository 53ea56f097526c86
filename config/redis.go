package config

import "time"

// RedisConfig 是搜索结果缓存使用的 Redis 连接与策略配置。
// Addr 为空时结果缓存整体关闭，所有请求直接落到存储层计算。
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`

	// CacheTTL 是缓存条目的新鲜期；期内命中直接返回。
	CacheTTL time.Duration `mapstructure:"cacheTTL" json:"cacheTTL" yaml:"cacheTTL" default:"4h"`
	// RevalidateWindow 是新鲜期之后仍可返回旧值、同时在后台重算的宽限窗口。
	RevalidateWindow time.Duration `mapstructure:"revalidateWindow" json:"revalidateWindow" yaml:"revalidateWindow" default:"30s"`
}
