package services

import (
	"context"
	"io"

	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"
	"github.com/google/uuid"
)

// MediaProcessor 定义本地媒体处理适配器的契约，由平台编解码层实现。
// 路径入、路径出：所有中间产物落在本地临时目录，由调用方负责清理。
type MediaProcessor interface {
	// Compress 按给定配置压缩源文件，返回压缩产物路径。
	// onProgress 以 [0,1] 分数回报进度，可为 nil。
	Compress(ctx context.Context, sourcePath string, settings vo.CompressionSettings, onProgress func(float64)) (string, error)
	// ExtractAudio 抽取音轨，返回音频文件路径。
	ExtractAudio(ctx context.Context, sourcePath string, onProgress func(float64)) (string, error)
	// Thumbnail 生成封面帧图片，返回图片路径。
	Thumbnail(ctx context.Context, sourcePath string) (string, error)
	// Probe 探测源媒体的技术指标（分辨率、码率、帧率、时长、大小）。
	Probe(ctx context.Context, sourcePath string) (vo.MediaInfo, error)
}

// ContentAnalyzer 定义远端内容分析服务的契约。
// best-effort：实现内部的任何失败或超时都必须吸收为空结果，绝不返回错误。
type ContentAnalyzer interface {
	Analyze(ctx context.Context, sourcePath string, actorID uuid.UUID) vo.ContentInsights
}

// MediaStore 定义对象存储契约：写入二进制流，换回可访问 URL。
type MediaStore interface {
	Store(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)
}

// RunGuard 定义按 actor 维度的重复 Run 防护。
// Acquire 成功时返回释放函数；已有进行中的 Run 时返回 ErrAlreadyInProgress。
type RunGuard interface {
	Acquire(ctx context.Context, actorID uuid.UUID) (release func(), err error)
}
