// Package configloader 负责加载并归一化服务配置：
// .env 文件、YAML 配置文件与环境变量覆盖，最终输出强类型配置片段。
package configloader

import "time"

const (
	// defaultConfPath 为未显式指定时的配置目录回退值。
	defaultConfPath = "configs"
	// defaultEnvironment 在 APP_ENV 缺失时使用。
	defaultEnvironment = "development"
	// defaultServiceName 在 SERVICE_NAME 缺失时使用。
	defaultServiceName = "posts"
	// defaultServiceVersion 在 SERVICE_VERSION 缺失时使用。
	defaultServiceVersion = "dev"
)

// Bootstrap 为配置文件的顶层结构。
type Bootstrap struct {
	Server    ServerConfig    `json:"server"`
	Data      DataConfig      `json:"data"`
	Storage   StorageConfig   `json:"storage"`
	Messaging MessagingConfig `json:"messaging"`
	Media     MediaConfig     `json:"media"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Threads   ThreadsConfig   `json:"threads"`
	Notifier  NotifierConfig  `json:"notifier"`
}

// ServerConfig 描述对外服务监听。
type ServerConfig struct {
	HTTP HTTPConfig `json:"http"`
}

// HTTPConfig 描述 HTTP Server 参数。
type HTTPConfig struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"` // time.ParseDuration 格式，如 "30s"
}

// DataConfig 聚合数据层配置。
type DataConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

// PostgresConfig 描述 PostgreSQL 连接池参数。
type PostgresConfig struct {
	DSN                      string `json:"dsn"`
	Schema                   string `json:"schema"`
	MaxOpenConns             int32  `json:"max_open_conns"`
	MinOpenConns             int32  `json:"min_open_conns"`
	MaxConnLifetime          string `json:"max_conn_lifetime"`
	MaxConnIdleTime          string `json:"max_conn_idle_time"`
	HealthCheckPeriod        string `json:"health_check_period"`
	EnablePreparedStatements bool   `json:"enable_prepared_statements"`
}

// RedisConfig 描述 Redis 连接与 Run 防护参数。
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	GuardTTL string `json:"guard_ttl"` // actor 级 Run 锁的过期时间
}

// StorageConfig 描述对象存储参数。
type StorageConfig struct {
	Bucket        string `json:"bucket"`
	PublicBaseURL string `json:"public_base_url"`
}

// MessagingConfig 描述 Pub/Sub 通知通道参数。
type MessagingConfig struct {
	ProjectID        string `json:"project_id"`
	TopicID          string `json:"topic_id"`
	SubscriptionID   string `json:"subscription_id"`
	EmulatorEndpoint string `json:"emulator_endpoint"`
}

// MediaConfig 描述本地媒体处理与远端内容分析参数。
type MediaConfig struct {
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
	WorkDir     string `json:"work_dir"`
	InsightURL  string `json:"insight_url"`
	InsightWait string `json:"insight_wait"` // 内容分析整体预算，超时即吸收为空结果
}

// PipelineConfig 描述流水线运行参数。
type PipelineConfig struct {
	CompressionTimeout string `json:"compression_timeout"`
}

// ThreadsConfig 描述会话树容量上限。
type ThreadsConfig struct {
	RootReplyCap  int `json:"root_reply_cap"`
	ChildReplyCap int `json:"child_reply_cap"`
}

// NotifierConfig 描述 Outbox 发布任务参数。
type NotifierConfig struct {
	PollInterval string `json:"poll_interval"`
	BatchSize    int    `json:"batch_size"`
	MaxBackoff   string `json:"max_backoff"`
}

// parseDuration 解析 time.ParseDuration 格式字符串，空值或解析失败时返回回退值。
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
