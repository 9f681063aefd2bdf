package services_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"
	"github.com/bionicotaku/lingo-services-posts/internal/services"

	"github.com/google/uuid"
)

// stubMedia 在临时目录产出真实文件，便于断言上传与清理路径。
// 并行阶段的子任务并发调用 makeFile，created 需要加锁。
type stubMedia struct {
	mu   sync.Mutex
	dir  string
	info vo.MediaInfo

	probeErr        error
	compressErr     error
	compressErrOnce error
	compressBlocks  bool

	probeCalls    int
	compressCalls int
	audioCalls    int
	thumbCalls    int

	created []string
}

func (m *stubMedia) makeFile(pattern, content string) (string, error) {
	f, err := os.CreateTemp(m.dir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.created = append(m.created, f.Name())
	m.mu.Unlock()
	return f.Name(), nil
}

func (m *stubMedia) createdPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

func (m *stubMedia) Probe(context.Context, string) (vo.MediaInfo, error) {
	m.probeCalls++
	if m.probeErr != nil {
		return vo.MediaInfo{}, m.probeErr
	}
	return m.info, nil
}

func (m *stubMedia) Compress(ctx context.Context, _ string, _ vo.CompressionSettings, onProgress func(float64)) (string, error) {
	m.compressCalls++
	if onProgress != nil {
		onProgress(0.5)
	}
	if m.compressBlocks {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.compressErr != nil {
		return "", m.compressErr
	}
	if m.compressErrOnce != nil {
		err := m.compressErrOnce
		m.compressErrOnce = nil
		return "", err
	}
	return m.makeFile("compressed-*.mp4", "compressed-bytes")
}

func (m *stubMedia) ExtractAudio(_ context.Context, _ string, onProgress func(float64)) (string, error) {
	m.audioCalls++
	if onProgress != nil {
		onProgress(0.5)
	}
	return m.makeFile("audio-*.m4a", "audio-bytes")
}

func (m *stubMedia) Thumbnail(context.Context, string) (string, error) {
	m.thumbCalls++
	return m.makeFile("thumb-*.jpg", "thumb-bytes")
}

type stubAnalyzer struct {
	insights vo.ContentInsights
	calls    int
}

func (a *stubAnalyzer) Analyze(context.Context, string, uuid.UUID) vo.ContentInsights {
	a.calls++
	return a.insights
}

type stubStore struct {
	objects []string
	err     error
}

func (s *stubStore) Store(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.objects = append(s.objects, objectName)
	return "https://cdn.test/" + objectName, nil
}

type stubGuard struct {
	err      error
	acquires int
	releases int
}

func (g *stubGuard) Acquire(context.Context, uuid.UUID) (func(), error) {
	if g.err != nil {
		return nil, g.err
	}
	g.acquires++
	return func() { g.releases++ }, nil
}

type pipelineEnv struct {
	media    *stubMedia
	analyzer *stubAnalyzer
	store    *stubStore
	guard    *stubGuard
	repo     *memoryThreadRepo
	outbox   *memoryOutbox
	threads  *services.ThreadService
	svc      *services.PipelineService
}

func newPipelineEnv(t *testing.T, cfg services.PipelineConfig) *pipelineEnv {
	t.Helper()

	media := &stubMedia{
		dir: t.TempDir(),
		info: vo.MediaInfo{
			Width:           1080,
			Height:          1920,
			Bitrate:         5_000_000,
			FrameRate:       30,
			DurationSeconds: 42,
			SizeBytes:       24 << 20,
		},
	}
	analyzer := &stubAnalyzer{}
	store := &stubStore{}
	guard := &stubGuard{}
	repo := newMemoryThreadRepo()
	outbox := &memoryOutbox{}
	threads := services.NewThreadService(repo, outbox, noopTxManager{}, services.DefaultThreadConfig(), testLogger())

	svc, err := services.NewPipelineService(media, analyzer, store, threads, guard, cfg, testLogger())
	if err != nil {
		t.Fatalf("NewPipelineService failed: %v", err)
	}
	return &pipelineEnv{
		media:    media,
		analyzer: analyzer,
		store:    store,
		guard:    guard,
		repo:     repo,
		outbox:   outbox,
		threads:  threads,
		svc:      svc,
	}
}

func (e *pipelineEnv) sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mov")
	if err := os.WriteFile(path, []byte("source-bytes"), 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}

func assertRemoved(t *testing.T, paths []string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("intermediate file %s not cleaned up (err=%v)", p, err)
		}
	}
}

func TestPipelineRunCreatesRootPost(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	source := env.sourceFile(t)

	var progress []float64
	detail, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath:  source,
		ActorID:     uuid.New(),
		Tier:        po.TierRegular,
		ManualTitle: "Launch day",
		OnProgress:  func(v float64) { progress = append(progress, v) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if detail.Title != "Launch day" {
		t.Fatalf("title = %q, want manual title", detail.Title)
	}
	if detail.Depth != 0 || detail.ParentID != nil {
		t.Fatalf("expected root post, got depth=%d parent=%v", detail.Depth, detail.ParentID)
	}
	if !strings.HasPrefix(detail.MediaURL, "https://cdn.test/media/") {
		t.Fatalf("media url = %q", detail.MediaURL)
	}
	if detail.ThumbnailURL == nil || !strings.HasPrefix(*detail.ThumbnailURL, "https://cdn.test/thumbnails/") {
		t.Fatalf("thumbnail url = %v", detail.ThumbnailURL)
	}
	if len(env.store.objects) != 2 {
		t.Fatalf("stored objects = %v, want media and thumbnail", env.store.objects)
	}

	// 中间产物全部清理，调用方的源文件保留。
	assertRemoved(t, env.media.createdPaths())
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source file must survive the run: %v", err)
	}

	if env.guard.acquires != 1 || env.guard.releases != 1 {
		t.Fatalf("guard acquires/releases = %d/%d, want 1/1", env.guard.acquires, env.guard.releases)
	}

	if len(progress) == 0 {
		t.Fatalf("no progress reported")
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress regressed at %d: %v -> %v", i, progress[i-1], progress[i])
		}
	}
	if final := progress[len(progress)-1]; final < 0.999 {
		t.Fatalf("final progress = %v, want 1.0", final)
	}

	stored, err := env.threads.GetPost(context.Background(), detail.PostID)
	if err != nil {
		t.Fatalf("created post not found: %v", err)
	}
	if stored.FileSize <= 0 {
		t.Fatalf("file size = %d, want compressed artifact size", stored.FileSize)
	}
	if stored.AspectRatio == nil || *stored.AspectRatio != "9:16" {
		t.Fatalf("aspect ratio = %v, want 9:16", stored.AspectRatio)
	}
}

func TestPipelineTitlePrecedence(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	env.analyzer.insights = vo.ContentInsights{
		Title:       "Auto summary",
		Description: "auto description",
		Hashtags:    []string{"fyp"},
	}

	// 手动标题优先于分析结果。
	detail, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath:        env.sourceFile(t),
		ActorID:           uuid.New(),
		Tier:              po.TierRegular,
		ManualTitle:       "Manual wins",
		ManualDescription: "manual description",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if detail.Title != "Manual wins" {
		t.Fatalf("title = %q, want manual", detail.Title)
	}
	if detail.Description == nil || *detail.Description != "manual description" {
		t.Fatalf("description = %v, want manual", detail.Description)
	}

	// 无手动输入时回落到分析结果。
	detail, err = env.svc.Run(context.Background(), services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
		Tier:       po.TierRegular,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if detail.Title != "Auto summary" {
		t.Fatalf("title = %q, want analyzer title", detail.Title)
	}
	if detail.Description == nil || *detail.Description != "auto description" {
		t.Fatalf("description = %v, want analyzer description", detail.Description)
	}
	if len(detail.Hashtags) != 1 || detail.Hashtags[0] != "fyp" {
		t.Fatalf("hashtags = %v, want analyzer hashtags", detail.Hashtags)
	}
}

func TestPipelineUntitledFallback(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())

	detail, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
		Tier:       po.TierNewcomer,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if detail.Title != "Untitled clip" {
		t.Fatalf("title = %q, want fallback", detail.Title)
	}
}

func TestPipelineReplyDefaultTitle(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	ctx := context.Background()

	fields := validFields(uuid.New())
	fields.Title = "First clip"
	parent, err := env.threads.CreateRoot(ctx, fields)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	detail, err := env.svc.Run(ctx, services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
		Tier:       po.TierRegular,
		ParentID:   &parent.PostID,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if detail.Title != "Reply to First clip" {
		t.Fatalf("title = %q, want contextual default", detail.Title)
	}
	if detail.Depth != 1 {
		t.Fatalf("depth = %d, want 1", detail.Depth)
	}
	if detail.ParentID == nil || *detail.ParentID != parent.PostID {
		t.Fatalf("parent = %v, want %s", detail.ParentID, parent.PostID)
	}
}

func TestPipelineParentNotFoundFailsFast(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	missing := uuid.New()

	_, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
		Tier:       po.TierRegular,
		ParentID:   &missing,
	})
	mustReason(t, err, "POST_NOT_FOUND")

	// 无效引用在任何媒体处理之前失败。
	if env.media.probeCalls != 0 {
		t.Fatalf("probe called %d times before parent check", env.media.probeCalls)
	}
}

func TestPipelineCompressFailureRetriesOnce(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	env.media.compressErr = io.ErrUnexpectedEOF

	_, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
		Tier:       po.TierRegular,
	})
	mustReason(t, err, "UPSTREAM_FAILURE")

	if env.media.compressCalls != 2 {
		t.Fatalf("compress calls = %d, want exactly one retry", env.media.compressCalls)
	}
	// 失败路径同样清理中间产物（两轮的音轨文件）。
	assertRemoved(t, env.media.createdPaths())
	if env.guard.releases != 1 {
		t.Fatalf("guard releases = %d, want 1", env.guard.releases)
	}
}

func TestPipelineRetryKeepsProgressMonotonic(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	env.media.compressErrOnce = io.ErrUnexpectedEOF

	var progress []float64
	detail, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath:  env.sourceFile(t),
		ActorID:     uuid.New(),
		Tier:        po.TierRegular,
		ManualTitle: "Second try",
		OnProgress:  func(v float64) { progress = append(progress, v) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if detail.Title != "Second try" {
		t.Fatalf("title = %q", detail.Title)
	}
	if env.media.compressCalls != 2 {
		t.Fatalf("compress calls = %d, want retry after transient failure", env.media.compressCalls)
	}

	// 第二轮从头处理媒体，但对外进度不得回退到首轮已上报的值之下。
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress regressed across retry at %d: %v -> %v", i, progress[i-1], progress[i])
		}
	}
	if final := progress[len(progress)-1]; final < 0.999 {
		t.Fatalf("final progress = %v, want 1.0", final)
	}
}

func TestPipelineCompressionTimeout(t *testing.T) {
	env := newPipelineEnv(t, services.PipelineConfig{CompressionTimeout: 30 * time.Millisecond})
	env.media.compressBlocks = true

	_, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
		Tier:       po.TierRegular,
	})
	mustReason(t, err, "COMPRESSION_TIMEOUT")

	// 超时归类为可重试：整轮重试一次后仍失败。
	if env.media.compressCalls != 2 {
		t.Fatalf("compress calls = %d, want 2", env.media.compressCalls)
	}
}

func TestPipelineValidationNotRetried(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())

	_, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath: "",
		ActorID:    uuid.New(),
	})
	mustReason(t, err, "VALIDATION_FAILED")

	if env.guard.acquires != 0 {
		t.Fatalf("guard acquired on validation failure")
	}
	if env.media.probeCalls != 0 {
		t.Fatalf("probe called on validation failure")
	}
}

func TestPipelineGuardRejectsDuplicateRun(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	env.guard.err = services.ErrAlreadyInProgress

	_, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
	})
	mustReason(t, err, "ALREADY_IN_PROGRESS")

	if env.media.probeCalls != 0 {
		t.Fatalf("pipeline started despite guard rejection")
	}
}

func TestPipelineAnalysisAbsorbedIntoEmptyInsights(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	// 分析适配器契约：失败吸收为空结果。空结果不影响成功路径。
	env.analyzer.insights = vo.ContentInsights{}

	detail, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath:  env.sourceFile(t),
		ActorID:     uuid.New(),
		Tier:        po.TierRegular,
		ManualTitle: "Still works",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if env.analyzer.calls == 0 {
		t.Fatalf("analyzer never invoked")
	}
	if len(detail.Hashtags) != 0 {
		t.Fatalf("hashtags = %v, want empty", detail.Hashtags)
	}
}

func TestPipelineProbeFailure(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	env.media.probeErr = io.ErrUnexpectedEOF

	_, err := env.svc.Run(context.Background(), services.RunInput{
		SourcePath: env.sourceFile(t),
		ActorID:    uuid.New(),
	})
	mustReason(t, err, "UPSTREAM_FAILURE")

	// Probe 可重试：两轮各探测一次。
	if env.media.probeCalls != 2 {
		t.Fatalf("probe calls = %d, want 2", env.media.probeCalls)
	}
}

func TestPipelineReplyEnqueuesStitchEvent(t *testing.T) {
	env := newPipelineEnv(t, services.DefaultPipelineConfig())
	ctx := context.Background()

	parent, err := env.threads.CreateRoot(ctx, validFields(uuid.New()))
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	if _, err := env.svc.Run(ctx, services.RunInput{
		SourcePath:  env.sourceFile(t),
		ActorID:     uuid.New(),
		Tier:        po.TierRegular,
		ParentID:    &parent.PostID,
		ManualTitle: "A reply",
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := len(env.outbox.byType("posts.stitch.created")); got != 1 {
		t.Fatalf("stitch events = %d, want 1", got)
	}
}
