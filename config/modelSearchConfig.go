package config

import "github.com/Xushengqwer/go-common/config"

type ModelSearchConfig struct {
	Server              config.ServerConfig `mapstructure:"server" json:"server" yaml:"server"`
	ZapConfig           config.ZapConfig    `mapstructure:"zapConfig" json:"zapConfig" yaml:"zapConfig"`
	TracerConfig        config.TracerConfig `mapstructure:"tracerConfig" json:"tracerConfig" yaml:"tracerConfig"`
	CatalogConfig       CatalogConfig       `mapstructure:"catalogConfig" json:"catalogConfig" yaml:"catalogConfig"`
	KafkaConfig         KafkaConfig         `mapstructure:"kafkaConfig" json:"kafkaConfig" yaml:"kafkaConfig"`
	ElasticsearchConfig ESConfig            `mapstructure:"elasticsearchConfig" json:"elasticsearchConfig" yaml:"elasticsearchConfig"`
	RedisConfig         RedisConfig         `mapstructure:"redisConfig" json:"redisConfig" yaml:"redisConfig"`
	SnapshotConfig      SnapshotConfig      `mapstructure:"snapshotConfig" json:"snapshotConfig" yaml:"snapshotConfig"`
}
