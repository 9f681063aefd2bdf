package services

import (
	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"
)

// 压缩策略常量。短视频以竖屏 9:16 为主；音轨码率固定。
const (
	shortClipSeconds = 120.0 // 首屏体验敏感区间上限
	midClipSeconds   = 300.0 // 中档时长上限，超出即进入存储成本敏感区间

	audioBitrate    = 128_000   // 固定音轨码率（bps）
	minVideoBitrate = 800_000   // 极短片段的码率下限（bps）
	maxVideoBitrate = 8_000_000 // 超长片段的码率上限（bps）

	codecH264 = "h264"
)

// 分辨率档位（竖屏 宽×高）。
var (
	resolutionTop = [2]int{1080, 1920}
	resolutionMid = [2]int{720, 1280}
	resolutionLow = [2]int{540, 960}
)

// ResolveResolution 将（时长, 创作者等级）映射到目标分辨率上限。
// 全函数：任何输入组合都有且仅有一个结果，无错误路径。
//
// 短片段主导首屏观感，无论等级一律给最高档；长片段是主要的存储成本
// 风险，仅特权等级免于最低档，提升至中档。
func ResolveResolution(durationSeconds float64, tier po.CreatorTier) (maxWidth, maxHeight int) {
	switch {
	case durationSeconds <= shortClipSeconds:
		return resolutionTop[0], resolutionTop[1]
	case durationSeconds <= midClipSeconds:
		return resolutionMid[0], resolutionMid[1]
	default:
		if tier.Privileged() {
			return resolutionMid[0], resolutionMid[1]
		}
		return resolutionLow[0], resolutionLow[1]
	}
}

// BitrateFor 根据目标文件大小计算目标视频码率（bps）：
// (targetSizeBits / duration) − audioBitrate，并约束在
// [minVideoBitrate, maxVideoBitrate] 内，避免极短或极长片段产生退化编码。
func BitrateFor(currentSize, targetSize int64, durationSeconds float64) int {
	if targetSize > currentSize {
		targetSize = currentSize
	}
	var bitrate float64
	if durationSeconds > 0 {
		bitrate = float64(targetSize*8)/durationSeconds - audioBitrate
	}
	if bitrate < minVideoBitrate {
		return minVideoBitrate
	}
	if bitrate > maxVideoBitrate {
		return maxVideoBitrate
	}
	return int(bitrate)
}

// bitrateBudget 返回各分辨率档位的基准视频码率（bps）。
func bitrateBudget(maxHeight int) int {
	switch {
	case maxHeight >= resolutionTop[1]:
		return 6_000_000
	case maxHeight >= resolutionMid[1]:
		return 3_500_000
	default:
		return 2_000_000
	}
}

// NewCompressionSettings 依据源媒体信息与创作者等级生成一次性的压缩配置。
// 配置每次 Run 重新计算，绝不复用。
func NewCompressionSettings(info vo.MediaInfo, tier po.CreatorTier) vo.CompressionSettings {
	width, height := ResolveResolution(info.DurationSeconds, tier)

	budget := bitrateBudget(height)
	estimated := int64(float64(budget+audioBitrate) / 8 * info.DurationSeconds)
	if info.SizeBytes > 0 && estimated > info.SizeBytes {
		estimated = info.SizeBytes
	}
	bitrate := BitrateFor(info.SizeBytes, estimated, info.DurationSeconds)

	quality := 0.8
	if tier.Privileged() {
		quality = 0.9
	}

	return vo.CompressionSettings{
		TargetBitrate:  bitrate,
		MaxWidth:       width,
		MaxHeight:      height,
		QualityFactor:  quality,
		Codec:          codecH264,
		EstimatedBytes: estimated,
	}
}
