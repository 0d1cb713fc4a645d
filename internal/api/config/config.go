package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

// Default 返回仅包含默认值的配置，供测试与本地启动使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_lifetime", 30)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("mongo.url", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.database", "tandem")
	v.SetDefault("logstash.level", "info")
	v.SetDefault("logstash.index", "logstash-tandem")
	v.SetDefault("jwt.secret", "tandem")
	v.SetDefault("jwt.issuer", "Tandem")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("im.online_threshold_ms", 15000)
	v.SetDefault("im.typing_ttl_ms", 3000)
	v.SetDefault("im.heartbeat_interval_ms", 10000)
	v.SetDefault("im.max_message_length", 4000)
	v.SetDefault("im.default_page_size", 20)
	v.SetDefault("im.max_page_size", 100)
	v.SetDefault("im.event_bus", "redis")
	v.SetDefault("im.repair_spec", "@every 10m")
	v.SetDefault("elastic.user_index", "tandem_users")
	v.SetDefault("kafka.topic", "im.events")
	v.SetDefault("kafka.group_id", "tandem-im-fanout")
	v.SetDefault("kafka.consumer.session_timeout", 10)
	v.SetDefault("kafka.consumer.heartbeat_interval", 3)
	v.SetDefault("kafka.consumer.rebalance_timeout", 60)
	v.SetDefault("kafka.consumer.max_processing_time", 5)
}
