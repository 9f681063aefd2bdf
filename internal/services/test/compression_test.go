package services_test

import (
	"testing"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"
	"github.com/bionicotaku/lingo-services-posts/internal/services"
)

func TestResolveResolution(t *testing.T) {
	cases := []struct {
		name       string
		duration   float64
		tier       po.CreatorTier
		wantWidth  int
		wantHeight int
	}{
		{"short clip newcomer gets top tier", 45, po.TierNewcomer, 1080, 1920},
		{"short clip boundary", 120, po.TierRegular, 1080, 1920},
		{"mid clip regular", 180, po.TierRegular, 720, 1280},
		{"mid clip boundary", 300, po.TierRising, 720, 1280},
		{"long clip regular drops to low", 301, po.TierRegular, 540, 960},
		{"long clip newcomer drops to low", 600, po.TierNewcomer, 540, 960},
		{"long clip partner keeps mid", 600, po.TierPartner, 720, 1280},
		{"long clip icon keeps mid", 600, po.TierIcon, 720, 1280},
		{"short clip icon same as newcomer", 30, po.TierIcon, 1080, 1920},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := services.ResolveResolution(tc.duration, tc.tier)
			if w != tc.wantWidth || h != tc.wantHeight {
				t.Fatalf("ResolveResolution(%v, %s) = %dx%d, want %dx%d",
					tc.duration, tc.tier, w, h, tc.wantWidth, tc.wantHeight)
			}
		})
	}
}

func TestBitrateForClampsToFloor(t *testing.T) {
	// 极小目标文件产生低于下限的原始码率，应钳到 800kbps。
	got := services.BitrateFor(10_000_000, 1_000_000, 60)
	if got != 800_000 {
		t.Fatalf("BitrateFor = %d, want floor 800000", got)
	}
}

func TestBitrateForClampsToCeiling(t *testing.T) {
	// 极短片段配大文件产生超高码率，应钳到 8Mbps。
	got := services.BitrateFor(100_000_000, 100_000_000, 2)
	if got != 8_000_000 {
		t.Fatalf("BitrateFor = %d, want ceiling 8000000", got)
	}
}

func TestBitrateForZeroDuration(t *testing.T) {
	got := services.BitrateFor(10_000_000, 5_000_000, 0)
	if got != 800_000 {
		t.Fatalf("BitrateFor with zero duration = %d, want floor 800000", got)
	}
}

func TestBitrateForTargetCappedAtCurrent(t *testing.T) {
	// 目标大小不得超过源文件：两次调用应得到同一结果。
	capped := services.BitrateFor(4_000_000, 100_000_000, 10)
	exact := services.BitrateFor(4_000_000, 4_000_000, 10)
	if capped != exact {
		t.Fatalf("BitrateFor target cap mismatch: capped=%d exact=%d", capped, exact)
	}
}

func TestBitrateForMidRange(t *testing.T) {
	// 30MB 目标、60s 时长：30e6*8/60 - 128000 = 3872000 bps。
	got := services.BitrateFor(50_000_000, 30_000_000, 60)
	if got != 3_872_000 {
		t.Fatalf("BitrateFor = %d, want 3872000", got)
	}
}

func TestNewCompressionSettingsQualityByTier(t *testing.T) {
	info := vo.MediaInfo{Width: 1080, Height: 1920, DurationSeconds: 60, SizeBytes: 80_000_000}

	regular := services.NewCompressionSettings(info, po.TierRegular)
	if regular.QualityFactor != 0.8 {
		t.Fatalf("regular quality = %v, want 0.8", regular.QualityFactor)
	}
	partner := services.NewCompressionSettings(info, po.TierPartner)
	if partner.QualityFactor != 0.9 {
		t.Fatalf("partner quality = %v, want 0.9", partner.QualityFactor)
	}
	if regular.Codec != "h264" || partner.Codec != "h264" {
		t.Fatalf("codec = %q/%q, want h264", regular.Codec, partner.Codec)
	}
}

func TestNewCompressionSettingsEstimateNeverExceedsSource(t *testing.T) {
	// 源文件已经很小，估算大小不得超过源大小。
	info := vo.MediaInfo{Width: 720, Height: 1280, DurationSeconds: 200, SizeBytes: 1_000_000}
	settings := services.NewCompressionSettings(info, po.TierRegular)
	if settings.EstimatedBytes > info.SizeBytes {
		t.Fatalf("estimated %d exceeds source size %d", settings.EstimatedBytes, info.SizeBytes)
	}
}

func TestNewCompressionSettingsResolutionFollowsDuration(t *testing.T) {
	long := vo.MediaInfo{Width: 1080, Height: 1920, DurationSeconds: 400, SizeBytes: 200_000_000}
	settings := services.NewCompressionSettings(long, po.TierRegular)
	if settings.MaxWidth != 540 || settings.MaxHeight != 960 {
		t.Fatalf("long clip resolution = %dx%d, want 540x960", settings.MaxWidth, settings.MaxHeight)
	}

	privileged := services.NewCompressionSettings(long, po.TierIcon)
	if privileged.MaxWidth != 720 || privileged.MaxHeight != 1280 {
		t.Fatalf("privileged long clip resolution = %dx%d, want 720x1280", privileged.MaxWidth, privileged.MaxHeight)
	}
}
