package config

import "Bazaar/internal/pkg/moderation"

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	DispatchLocal = "local"
	DispatchKafka = "kafka"
)

// Config 配置主体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"database"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	JWT        JWTConfig        `mapstructure:"jwt"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"`
}

// LogConfig 日志配置，Remote 为空时只输出到 stdout
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Remote string `mapstructure:"remote"`
	Index  string `mapstructure:"index"`
	Token  string `mapstructure:"token"`
}

// DBConfig 数据库配置，Driver 为 mysql、sqlite 或 mongo
type DBConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	PublicBase string `mapstructure:"public_base"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Bucket     string `mapstructure:"bucket"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

type KafkaConfig struct {
	Brokers        []string       `mapstructure:"brokers"`
	Sasl           SaslConfig     `mapstructure:"sasl"`
	Consumer       ConsumerConfig `mapstructure:"consumer"`
	Topics         KafkaTopics    `mapstructure:"topics"`
	RequestGroupID string         `mapstructure:"request_group_id"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

// KafkaTopics Moderated 为审核结论事件，Requested 为跨实例派发的审核请求
type KafkaTopics struct {
	Moderated string `mapstructure:"moderated"`
	Requested string `mapstructure:"requested"`
}

// ModerationConfig 审核流水线配置，时间单位：秒（StaleAfter 为分钟）
type ModerationConfig struct {
	Workers          int                 `mapstructure:"workers"`
	QueueSize        int                 `mapstructure:"queue_size"`
	GateThreshold    float64             `mapstructure:"gate_threshold"`
	ImageTimeout     int                 `mapstructure:"image_timeout"`
	ImageParallelism int                 `mapstructure:"image_parallelism"`
	LockTTL          int                 `mapstructure:"lock_ttl"`
	StaleAfter       int                 `mapstructure:"stale_after"`
	StaleCron        string              `mapstructure:"stale_cron"`
	Dispatch         string              `mapstructure:"dispatch"`
	Rules            moderation.RuleSpec `mapstructure:"-"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
	Expiration int    `mapstructure:"expiration"`
}
