package configloader

import (
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/ffmpeg"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/gcs"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/insight"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/runguard"
	"github.com/bionicotaku/lingo-services-posts/internal/services"
	"github.com/bionicotaku/lingo-services-posts/internal/tasks/notifier"

	"github.com/bionicotaku/lingo-utils/gclog"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

// ProviderSet 暴露配置派生的强类型片段供 Wire 图使用。
var ProviderSet = wire.NewSet(
	Build,
	ProvideBootstrap,
	ProvideServiceMetadata,
	ProvideLoggerConfig,
	ProvideHTTPConfig,
	ProvidePostgresConfig,
	ProvideTxManagerConfig,
	ProvidePubSubConfig,
	ProvideStorageConfig,
	ProvideFFmpegConfig,
	ProvideInsightConfig,
	ProvideRunGuardConfig,
	ProvidePipelineConfig,
	ProvideThreadConfig,
	ProvideNotifierConfig,
)

// ProvideBootstrap 返回强类型的顶层配置。
func ProvideBootstrap(b *Bundle) *Bootstrap {
	if b == nil {
		return nil
	}
	return b.Bootstrap
}

// ProvideServiceMetadata 返回解析后的服务元信息。
func ProvideServiceMetadata(b *Bundle) ServiceMetadata {
	if b == nil {
		return ServiceMetadata{}
	}
	return b.Service
}

// ProvideLoggerConfig 返回日志组件配置。
func ProvideLoggerConfig(meta ServiceMetadata) gclog.Config {
	return meta.LoggerConfig()
}

// ProvideHTTPConfig 返回 HTTP Server 配置片段。
func ProvideHTTPConfig(bc *Bootstrap) HTTPConfig {
	if bc == nil {
		return HTTPConfig{}
	}
	return bc.Server.HTTP
}

// ProvidePostgresConfig 返回 PostgreSQL 配置片段。
func ProvidePostgresConfig(bc *Bootstrap) PostgresConfig {
	if bc == nil {
		return PostgresConfig{}
	}
	return bc.Data.Postgres
}

// ProvideTxManagerConfig 返回事务管理器配置。
func ProvideTxManagerConfig() txmanager.Config {
	return txmanager.Config{}
}

// ProvidePubSubConfig 返回通知通道的 Pub/Sub 配置。
func ProvidePubSubConfig(bc *Bootstrap) gcpubsub.Config {
	if bc == nil {
		return gcpubsub.Config{}
	}
	return gcpubsub.Config{
		ProjectID:        bc.Messaging.ProjectID,
		TopicID:          bc.Messaging.TopicID,
		SubscriptionID:   bc.Messaging.SubscriptionID,
		EmulatorEndpoint: bc.Messaging.EmulatorEndpoint,
	}
}

// ProvideStorageConfig 返回对象存储配置。
func ProvideStorageConfig(bc *Bootstrap) gcs.Config {
	if bc == nil {
		return gcs.Config{}
	}
	return gcs.Config{
		Bucket:        bc.Storage.Bucket,
		PublicBaseURL: bc.Storage.PublicBaseURL,
	}
}

// ProvideFFmpegConfig 返回本地媒体处理配置。
func ProvideFFmpegConfig(bc *Bootstrap) ffmpeg.Config {
	if bc == nil {
		return ffmpeg.Config{}
	}
	return ffmpeg.Config{
		FFmpegPath:  bc.Media.FFmpegPath,
		FFprobePath: bc.Media.FFprobePath,
		WorkDir:     bc.Media.WorkDir,
	}
}

// ProvideInsightConfig 返回内容分析客户端配置。
func ProvideInsightConfig(bc *Bootstrap) insight.Config {
	if bc == nil {
		return insight.Config{}
	}
	return insight.Config{
		Endpoint: bc.Media.InsightURL,
		Wait:     parseDuration(bc.Media.InsightWait, 15*time.Second),
	}
}

// ProvideRunGuardConfig 返回 Run 防护配置。
func ProvideRunGuardConfig(bc *Bootstrap) runguard.Config {
	if bc == nil {
		return runguard.Config{}
	}
	return runguard.Config{
		Addr:     bc.Data.Redis.Addr,
		Password: bc.Data.Redis.Password,
		DB:       bc.Data.Redis.DB,
		TTL:      parseDuration(bc.Data.Redis.GuardTTL, 5*time.Minute),
	}
}

// ProvidePipelineConfig 返回流水线运行配置。
func ProvidePipelineConfig(bc *Bootstrap) services.PipelineConfig {
	if bc == nil {
		return services.DefaultPipelineConfig()
	}
	return services.PipelineConfig{
		CompressionTimeout: parseDuration(bc.Pipeline.CompressionTimeout, 60*time.Second),
	}
}

// ProvideThreadConfig 返回会话树容量配置。
func ProvideThreadConfig(bc *Bootstrap) services.ThreadConfig {
	if bc == nil {
		return services.DefaultThreadConfig()
	}
	cfg := services.ThreadConfig{
		RootReplyCap:  bc.Threads.RootReplyCap,
		ChildReplyCap: bc.Threads.ChildReplyCap,
	}
	if cfg.RootReplyCap <= 0 || cfg.ChildReplyCap <= 0 {
		return services.DefaultThreadConfig()
	}
	return cfg
}

// ProvideNotifierConfig 返回 Outbox 发布任务配置。
func ProvideNotifierConfig(bc *Bootstrap) notifier.Config {
	if bc == nil {
		return notifier.Config{}
	}
	return notifier.Config{
		PollInterval: parseDuration(bc.Notifier.PollInterval, 2*time.Second),
		BatchSize:    bc.Notifier.BatchSize,
		MaxBackoff:   parseDuration(bc.Notifier.MaxBackoff, 5*time.Minute),
	}
}
