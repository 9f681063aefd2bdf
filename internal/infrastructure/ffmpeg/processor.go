// Package ffmpeg 基于 ffmpeg/ffprobe 命令行实现本地媒体处理适配器。
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Config 描述外部命令路径与中间产物目录。
type Config struct {
	FFmpegPath  string // 默认 "ffmpeg"
	FFprobePath string // 默认 "ffprobe"
	WorkDir     string // 默认系统临时目录
}

// Processor 实现 services.MediaProcessor 契约。
type Processor struct {
	cfg Config
	log *log.Helper
}

// NewProcessor 构造 Processor，填充缺省命令路径。
func NewProcessor(cfg Config, logger log.Logger) *Processor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Processor{
		cfg: cfg,
		log: log.NewHelper(logger),
	}
}

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
	progressPattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

// Probe 使用 ffprobe 提取源媒体的技术指标。
func (p *Processor) Probe(ctx context.Context, sourcePath string) (vo.MediaInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,bit_rate,avg_frame_rate:format=duration,size",
		"-of", "default=noprint_wrappers=1",
		sourcePath,
	}

	cmd := exec.CommandContext(ctx, p.cfg.FFprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return vo.MediaInfo{}, fmt.Errorf("ffprobe: %w", err)
	}

	var info vo.MediaInfo
	for _, line := range strings.Split(string(output), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || value == "" || value == "N/A" {
			continue
		}
		switch key {
		case "width":
			info.Width, _ = strconv.Atoi(value)
		case "height":
			info.Height, _ = strconv.Atoi(value)
		case "bit_rate":
			info.Bitrate, _ = strconv.Atoi(value)
		case "avg_frame_rate":
			info.FrameRate = parseFrameRate(value)
		case "duration":
			info.DurationSeconds, _ = strconv.ParseFloat(value, 64)
		case "size":
			info.SizeBytes, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	if info.DurationSeconds <= 0 {
		return vo.MediaInfo{}, fmt.Errorf("ffprobe: source has no duration: %s", sourcePath)
	}
	if info.SizeBytes == 0 {
		if stat, statErr := os.Stat(sourcePath); statErr == nil {
			info.SizeBytes = stat.Size()
		}
	}
	return info, nil
}

// Compress 按给定配置转码源文件，输出 H.264 MP4。
// 进度通过解析 ffmpeg stderr 的 Duration/time 行回报。
func (p *Processor) Compress(ctx context.Context, sourcePath string, settings vo.CompressionSettings, onProgress func(float64)) (string, error) {
	outputPath := p.workFile(".mp4")

	// CRF 由质量因子映射：0.8 → 23，0.9 → 20；码率上限双重约束。
	crf := int(28 - settings.QualityFactor*10 + 0.5)
	args := []string{
		"-y", "-i", sourcePath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", strconv.Itoa(crf),
		"-maxrate", strconv.Itoa(settings.TargetBitrate),
		"-bufsize", strconv.Itoa(settings.TargetBitrate * 2),
		"-vf", fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", settings.MaxWidth, settings.MaxHeight),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	}

	if err := p.runWithProgress(ctx, args, onProgress); err != nil {
		_ = os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg compress: %w", err)
	}
	return outputPath, nil
}

// ExtractAudio 抽取音轨为 AAC（.m4a）。
func (p *Processor) ExtractAudio(ctx context.Context, sourcePath string, onProgress func(float64)) (string, error) {
	outputPath := p.workFile(".m4a")

	args := []string{
		"-y", "-i", sourcePath,
		"-vn",
		"-c:a", "aac",
		"-b:a", "128k",
		outputPath,
	}

	if err := p.runWithProgress(ctx, args, onProgress); err != nil {
		_ = os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return outputPath, nil
}

// Thumbnail 取第 1 秒的单帧作为封面图。
func (p *Processor) Thumbnail(ctx context.Context, sourcePath string) (string, error) {
	outputPath := p.workFile(".jpg")

	args := []string{
		"-y", "-ss", "1", "-i", sourcePath,
		"-vframes", "1",
		"-q:v", "3",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, p.cfg.FFmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg thumbnail: %w: %s", err, tail(string(output)))
	}
	return outputPath, nil
}

// runWithProgress 执行 ffmpeg 并从 stderr 解析进度。
// ffmpeg 开头打印 "Duration: HH:MM:SS.cc"，随后周期性打印 "time=HH:MM:SS.cc"，
// 两者之比即完成分数。
func (p *Processor) runWithProgress(ctx context.Context, args []string, onProgress func(float64)) error {
	cmd := exec.CommandContext(ctx, p.cfg.FFmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	lastLines := p.scanProgress(stderr, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s", err, tail(lastLines))
	}
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// scanProgress 消费 stderr，回报进度并保留末尾输出用于错误诊断。
func (p *Processor) scanProgress(stderr io.ReadCloser, onProgress func(float64)) string {
	defer stderr.Close()

	var totalSeconds float64
	var lastLines []string

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		lastLines = append(lastLines, line)
		if len(lastLines) > 20 {
			lastLines = lastLines[1:]
		}

		if totalSeconds == 0 {
			if m := durationPattern.FindStringSubmatch(line); m != nil {
				totalSeconds = clockToSeconds(m[1], m[2], m[3])
			}
		}
		if onProgress == nil || totalSeconds <= 0 {
			continue
		}
		if m := progressPattern.FindStringSubmatch(line); m != nil {
			fraction := clockToSeconds(m[1], m[2], m[3]) / totalSeconds
			if fraction > 1 {
				fraction = 1
			}
			onProgress(fraction)
		}
	}
	return strings.Join(lastLines, "\n")
}

func (p *Processor) workFile(ext string) string {
	return filepath.Join(p.cfg.WorkDir, uuid.New().String()+ext)
}

func clockToSeconds(hours, minutes, seconds string) float64 {
	h, _ := strconv.ParseFloat(hours, 64)
	m, _ := strconv.ParseFloat(minutes, 64)
	s, _ := strconv.ParseFloat(seconds, 64)
	return h*3600 + m*60 + s
}

// parseFrameRate 解析 ffprobe 的分数帧率表示，如 "30000/1001"。
func parseFrameRate(value string) float64 {
	num, den, ok := strings.Cut(value, "/")
	if !ok {
		f, _ := strconv.ParseFloat(value, 64)
		return f
	}
	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 {
		return 0
	}
	return n / d
}

// tail 截取输出末尾，避免错误信息过长。
func tail(s string) string {
	const max = 512
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
