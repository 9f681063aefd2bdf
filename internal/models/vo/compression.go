// Package vo 定义视图对象与纯值对象（Value Objects），由 Service 层构造并向上传递。
package vo

// CompressionSettings 为一次压缩任务的纯值对象。
// 每次 Run 重新计算，创建后不再修改，也不持久化。
type CompressionSettings struct {
	TargetBitrate  int     // 目标视频码率（bps）
	MaxWidth       int     // 最大输出宽度（像素）
	MaxHeight      int     // 最大输出高度（像素）
	QualityFactor  float64 // 编码质量因子（0..1，越高越接近无损）
	Codec          string  // 编码器标识（如 "h264"）
	EstimatedBytes int64   // 估算输出文件大小（字节）
}

// MediaInfo 为技术质量探测（analyzeQuality）的返回结果。
type MediaInfo struct {
	Width           int
	Height          int
	Bitrate         int     // 源码率（bps）
	FrameRate       float64 // 帧率
	DurationSeconds float64 // 时长（秒）
	SizeBytes       int64   // 源文件大小（字节）
}

// ContentInsights 为远端内容分析服务的 best-effort 返回结果。
// 任意字段都可能为空；分析失败时整体为空值，绝不携带错误。
type ContentInsights struct {
	Title       string
	Description string
	Hashtags    []string
}

// Empty 返回分析结果是否完全为空。
func (c ContentInsights) Empty() bool {
	return c.Title == "" && c.Description == "" && len(c.Hashtags) == 0
}
