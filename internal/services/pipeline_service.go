package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// PipelineConfig 控制流水线运行参数。
type PipelineConfig struct {
	CompressionTimeout time.Duration // 压缩阶段硬性墙钟上限
}

// DefaultPipelineConfig 返回产品默认参数。
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{CompressionTimeout: 60 * time.Second}
}

// RunInput 描述一次创建请求的全部输入。
type RunInput struct {
	SourcePath        string          // 本地源媒体文件路径
	ActorID           uuid.UUID       // 发起创建的用户
	Tier              po.CreatorTier  // 创作者等级，决定压缩档位
	ParentID          *uuid.UUID      // 非空时创建回复，否则创建根帖
	ManualTitle       string          // 手动标题，优先级最高
	ManualDescription string          // 手动描述，优先级最高
	TaggedUserIDs     []uuid.UUID     // 显式 @ 标记的用户
	OnProgress        func(float64)   // 全局进度回调 [0,1]，可为 nil
}

// PipelineService 编排媒体处理流水线：
// 三个并行子任务（音轨抽取、压缩、内容分析）→ 顺序上传 → 集成入会话树。
// 每次 Run 产生一个独立的状态机实例，终态后只能发起全新 Run。
type PipelineService struct {
	media    MediaProcessor
	analyzer ContentAnalyzer
	store    MediaStore
	threads  *ThreadService
	guard    RunGuard
	cfg      PipelineConfig
	log      *log.Helper
	now      func() time.Time

	// activeActors 为进程内快路径：同一 actor 的重复 Run 不必绕行
	// 分布式 Guard 即被拒绝。跨实例去重由 RunGuard 负责。
	activeActors sync.Map

	runsTotal   metric.Int64Counter
	runFailures metric.Int64Counter
	runRetries  metric.Int64Counter
}

// NewPipelineService 构造流水线编排服务并注册指标。
func NewPipelineService(
	media MediaProcessor,
	analyzer ContentAnalyzer,
	store MediaStore,
	threads *ThreadService,
	guard RunGuard,
	cfg PipelineConfig,
	logger log.Logger,
) (*PipelineService, error) {
	if cfg.CompressionTimeout <= 0 {
		cfg = DefaultPipelineConfig()
	}

	meter := otel.GetMeterProvider().Meter("lingo.posts.pipeline")
	runsTotal, err := meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Total pipeline runs started"))
	if err != nil {
		return nil, fmt.Errorf("create pipeline_runs_total counter: %w", err)
	}
	runFailures, err := meter.Int64Counter("pipeline_run_failures_total",
		metric.WithDescription("Pipeline runs that ended in the error state"))
	if err != nil {
		return nil, fmt.Errorf("create pipeline_run_failures_total counter: %w", err)
	}
	runRetries, err := meter.Int64Counter("pipeline_run_retries_total",
		metric.WithDescription("Whole-run retries after a retryable failure"))
	if err != nil {
		return nil, fmt.Errorf("create pipeline_run_retries_total counter: %w", err)
	}

	return &PipelineService{
		media:       media,
		analyzer:    analyzer,
		store:       store,
		threads:     threads,
		guard:       guard,
		cfg:         cfg,
		log:         log.NewHelper(logger),
		now:         time.Now,
		runsTotal:   runsTotal,
		runFailures: runFailures,
		runRetries:  runRetries,
	}, nil
}

func validateRunInput(input RunInput) error {
	if input.SourcePath == "" {
		return ValidationError("source path is required")
	}
	if input.ActorID == uuid.Nil {
		return ValidationError("actor id is required")
	}
	return nil
}

// Run 执行一次完整流水线。
//
// 重复 Run 防护：同一 actor 已有进行中的 Run 时立即拒绝，不产生任何
// 状态变更。整轮重试上限一次，仅对 UPSTREAM_FAILURE 与
// COMPRESSION_TIMEOUT 生效；校验、容量、权限类错误直接返回。
func (s *PipelineService) Run(ctx context.Context, input RunInput) (*vo.PostDetail, error) {
	if err := validateRunInput(input); err != nil {
		return nil, err
	}

	if _, loaded := s.activeActors.LoadOrStore(input.ActorID, struct{}{}); loaded {
		return nil, ErrAlreadyInProgress
	}
	defer s.activeActors.Delete(input.ActorID)

	release, err := s.guard.Acquire(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}
	defer release()

	s.runsTotal.Add(ctx, 1)

	// tracker 跨重试共享：全局进度在整个 Run 生命周期内单调不回退，
	// 重试只重置子任务分数。
	tracker := newProgressTracker(input.OnProgress)
	detail, err := s.runOnce(ctx, input, tracker)
	if err != nil && Retryable(err) {
		s.runRetries.Add(ctx, 1)
		s.log.WithContext(ctx).Warnf("pipeline run failed, retrying once: actor=%s progress=%.2f err=%v",
			input.ActorID, tracker.value(), err)
		tracker.reset()
		detail, err = s.runOnce(ctx, input, tracker)
	}
	if err != nil {
		s.runFailures.Add(ctx, 1)
		return nil, err
	}
	return detail, nil
}

// runOnce 驱动一轮状态机：ready → parallel_processing → uploading →
// integrating → {complete | error}。
func (s *PipelineService) runOnce(ctx context.Context, input RunInput, tracker *progressTracker) (*vo.PostDetail, error) {
	started := s.now()
	s.logPhase(ctx, po.PhaseReady, input.ActorID)

	// 回复场景先解析父帖，任何媒体处理开始之前就让无效引用失败。
	var parent *po.VideoPost
	if input.ParentID != nil {
		p, err := s.threads.GetPost(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	info, err := s.media.Probe(ctx, input.SourcePath)
	if err != nil {
		return nil, UpstreamError("probe source media", err)
	}
	settings := NewCompressionSettings(info, input.Tier)

	s.logPhase(ctx, po.PhaseParallelProcessing, input.ActorID)

	var (
		audioPath      string
		compressedPath string
		thumbnailPath  string
		insights       vo.ContentInsights
	)
	// 本地中间产物在任何退出路径上都被清理，成功与否一视同仁。
	defer func() {
		s.removeArtifacts(input.SourcePath, audioPath, compressedPath, thumbnailPath)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, audioErr := s.media.ExtractAudio(gctx, input.SourcePath, tracker.setAudio)
		if audioErr != nil {
			return UpstreamError("extract audio track", audioErr)
		}
		audioPath = path
		tracker.setAudio(1)
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.cfg.CompressionTimeout)
		defer cancel()
		path, compErr := s.media.Compress(cctx, input.SourcePath, settings, tracker.setCompression)
		if compErr != nil {
			if stderrors.Is(cctx.Err(), context.DeadlineExceeded) {
				return TimeoutError(
					fmt.Sprintf("compression exceeded %s ceiling", s.cfg.CompressionTimeout), compErr)
			}
			return UpstreamError("compress media", compErr)
		}
		compressedPath = path
		tracker.setCompression(1)
		return nil
	})
	g.Go(func() error {
		// 内容分析 best-effort：适配器契约保证任何内部失败都
		// 吸收为空结果，绝不使整个阶段失败。
		insights = s.analyzer.Analyze(gctx, input.SourcePath, input.ActorID)
		if insights.Empty() {
			s.log.WithContext(gctx).Debugf("content analysis returned no insights: actor=%s", input.ActorID)
		}
		tracker.setAnalysis(1)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logPhase(ctx, po.PhaseError, input.ActorID)
		return nil, err
	}

	thumbnailPath, err = s.media.Thumbnail(ctx, compressedPath)
	if err != nil {
		s.logPhase(ctx, po.PhaseError, input.ActorID)
		return nil, UpstreamError("render thumbnail frame", err)
	}

	s.logPhase(ctx, po.PhaseUploading, input.ActorID)
	mediaURL, thumbnailURL, fileSize, err := s.uploadArtifacts(ctx, input.ActorID, compressedPath, thumbnailPath, tracker)
	if err != nil {
		s.logPhase(ctx, po.PhaseError, input.ActorID)
		return nil, err
	}

	s.logPhase(ctx, po.PhaseIntegrating, input.ActorID)
	tracker.setIntegrate(0)

	fields := s.buildPostFields(input, parent, insights, info, mediaURL, thumbnailURL, fileSize)
	var post *po.VideoPost
	if parent != nil {
		post, err = s.threads.CreateReply(ctx, parent.PostID, fields)
	} else {
		post, err = s.threads.CreateRoot(ctx, fields)
	}
	if err != nil {
		s.logPhase(ctx, po.PhaseError, input.ActorID)
		return nil, err
	}
	tracker.setIntegrate(1)

	s.logPhase(ctx, po.PhaseComplete, input.ActorID)
	s.log.WithContext(ctx).Infof("pipeline complete: post_id=%s actor=%s elapsed=%s",
		post.PostID, input.ActorID, s.now().Sub(started).Round(time.Millisecond))
	return vo.NewPostDetail(post), nil
}

// uploadArtifacts 顺序上传压缩媒体与缩略图，返回公开 URL 与媒体文件大小。
func (s *PipelineService) uploadArtifacts(
	ctx context.Context,
	actorID uuid.UUID,
	compressedPath, thumbnailPath string,
	tracker *progressTracker,
) (mediaURL, thumbnailURL string, fileSize int64, err error) {
	tracker.setUpload(0)

	mediaFile, err := os.Open(compressedPath)
	if err != nil {
		return "", "", 0, UpstreamError("open compressed media", err)
	}
	defer mediaFile.Close()
	if stat, statErr := mediaFile.Stat(); statErr == nil {
		fileSize = stat.Size()
	}

	mediaObject := fmt.Sprintf("media/%s/%s%s", actorID, uuid.New(), filepath.Ext(compressedPath))
	mediaURL, err = s.store.Store(ctx, mediaObject, "video/mp4", mediaFile)
	if err != nil {
		return "", "", 0, UpstreamError("store media blob", err)
	}
	tracker.setUpload(0.7)

	thumbFile, err := os.Open(thumbnailPath)
	if err != nil {
		return "", "", 0, UpstreamError("open thumbnail", err)
	}
	defer thumbFile.Close()

	thumbObject := fmt.Sprintf("thumbnails/%s/%s%s", actorID, uuid.New(), filepath.Ext(thumbnailPath))
	thumbnailURL, err = s.store.Store(ctx, thumbObject, "image/jpeg", thumbFile)
	if err != nil {
		return "", "", 0, UpstreamError("store thumbnail blob", err)
	}
	tracker.setUpload(1)

	return mediaURL, thumbnailURL, fileSize, nil
}

// buildPostFields 合并元数据并组装创建输入。
// 优先级：手动输入 > 内容分析结果 > 上下文默认值（如 "Reply to <父帖标题>"）。
func (s *PipelineService) buildPostFields(
	input RunInput,
	parent *po.VideoPost,
	insights vo.ContentInsights,
	info vo.MediaInfo,
	mediaURL, thumbnailURL string,
	fileSize int64,
) CreatePostFields {
	title := input.ManualTitle
	if title == "" {
		title = insights.Title
	}
	if title == "" {
		if parent != nil {
			title = truncateRunes("Reply to "+parent.Title, titleMaxLen)
		} else {
			title = "Untitled clip"
		}
	}

	var description *string
	switch {
	case input.ManualDescription != "":
		description = &input.ManualDescription
	case insights.Description != "":
		d := insights.Description
		description = &d
	}

	if fileSize <= 0 {
		fileSize = info.SizeBytes
	}

	var aspect *string
	if ratio := aspectRatio(info.Width, info.Height); ratio != "" {
		aspect = &ratio
	}

	return CreatePostFields{
		CreatorID:     input.ActorID,
		Title:         title,
		Description:   description,
		MediaURL:      mediaURL,
		ThumbnailURL:  &thumbnailURL,
		DurationSecs:  info.DurationSeconds,
		FileSize:      fileSize,
		AspectRatio:   aspect,
		Hashtags:      insights.Hashtags,
		TaggedUserIDs: input.TaggedUserIDs,
	}
}

// removeArtifacts 清理本地中间产物。源文件归调用方所有，不在清理范围内；
// 压缩产物仅当与源文件不同路径时删除。
func (s *PipelineService) removeArtifacts(sourcePath string, paths ...string) {
	for _, p := range paths {
		if p == "" || p == sourcePath {
			continue
		}
		if err := os.Remove(p); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			s.log.Warnf("remove intermediate file failed: path=%s err=%v", p, err)
		}
	}
}

// logPhase 记录状态机阶段迁移，终态提升为 Info 级别。
func (s *PipelineService) logPhase(ctx context.Context, phase po.PipelinePhase, actorID uuid.UUID) {
	if phase.Terminal() {
		s.log.WithContext(ctx).Infof("pipeline phase: actor=%s phase=%s", actorID, phase)
		return
	}
	s.log.WithContext(ctx).Debugf("pipeline phase: actor=%s phase=%s", actorID, phase)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// aspectRatio 以最简整数比描述画幅，如 1080×1920 → "9:16"。
func aspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	d := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/d, height/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
