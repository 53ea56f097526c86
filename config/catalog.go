package config

import "time"

// CatalogConfig 决定机型目录使用哪种存储后端，以及查询层面的公共参数。
type CatalogConfig struct {
	// Store 为存储后端类型："elasticsearch"（默认）或 "memory"（快照全量加载）。
	Store string `mapstructure:"store" json:"store" yaml:"store"`
	// QueryTimeout 是单次存储查询的超时上限。
	QueryTimeout time.Duration `mapstructure:"queryTimeout" json:"queryTimeout" yaml:"queryTimeout" default:"5s"`
}
