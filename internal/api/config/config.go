package config

import (
	"errors"
	"fmt"
	"strings"

	"Bazaar/internal/pkg/moderation"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg，环境变量可覆盖同名配置项（BAZAAR_SERVER_PORT）
func LoadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.SetEnvPrefix("bazaar")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return err
	}
	Cfg = cfg
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 规则表以默认值为底，配置中出现的字段覆盖默认值
	cfg.Moderation.Rules = moderation.DefaultRuleSpec()
	if v.IsSet("moderation.rules") {
		if err := v.UnmarshalKey("moderation.rules", &cfg.Moderation.Rules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal moderation rules: %w", err)
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("log.level", "info")
	v.SetDefault("moderation.workers", 4)
	v.SetDefault("moderation.queue_size", 128)
	v.SetDefault("moderation.gate_threshold", 0.85)
	v.SetDefault("moderation.image_timeout", 10)
	v.SetDefault("moderation.image_parallelism", 4)
	v.SetDefault("moderation.lock_ttl", 120)
	v.SetDefault("moderation.stale_after", 30)
	v.SetDefault("moderation.stale_cron", "0 */5 * * * *")
	v.SetDefault("moderation.dispatch", DispatchLocal)
	v.SetDefault("kafka.topics.moderated", "post.moderated")
	v.SetDefault("kafka.topics.requested", "post.moderation.requested")
	v.SetDefault("kafka.request_group_id", "bazaar-moderation")
	v.SetDefault("jwt.issuer", "Bazaar")
	v.SetDefault("jwt.expiration", 24)
}
