package services

import "sync"

// 并行阶段三个子任务的进度权重与各阶段的全局进度区间。
const (
	weightAudio       = 0.2
	weightCompression = 0.5
	weightAnalysis    = 0.3

	parallelCeiling  = 0.7 // 并行阶段映射到 [0, 0.7]
	uploadCeiling    = 0.9 // 上传阶段映射到 [0.7, 0.9]
	integrateCeiling = 1.0 // 集成阶段映射到 [0.9, 1.0]
)

// progressTracker 在单一受锁序列上聚合三个并行子任务的进度。
// 子任务可能由适配器的工作线程并发回报；全局值单调不减——
// 某个子任务迟到的更低值绝不会让对外展示的进度回退。
type progressTracker struct {
	mu          sync.Mutex
	audio       float64
	compression float64
	analysis    float64
	global      float64
	onProgress  func(float64)
}

func newProgressTracker(onProgress func(float64)) *progressTracker {
	return &progressTracker{onProgress: onProgress}
}

func clampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// publish 以单调约束更新全局进度，持锁调用。
func (t *progressTracker) publish(candidate float64) {
	if candidate > t.global {
		t.global = candidate
	}
	if t.onProgress != nil {
		t.onProgress(t.global)
	}
}

func (t *progressTracker) setAudio(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audio = clampFraction(v)
	t.publish(t.parallelValue())
}

func (t *progressTracker) setCompression(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.compression = clampFraction(v)
	t.publish(t.parallelValue())
}

func (t *progressTracker) setAnalysis(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.analysis = clampFraction(v)
	t.publish(t.parallelValue())
}

// parallelValue 计算并行阶段加权进度并缩放到 [0, 0.7]，持锁调用。
func (t *progressTracker) parallelValue() float64 {
	weighted := weightAudio*t.audio + weightCompression*t.compression + weightAnalysis*t.analysis
	return weighted * parallelCeiling
}

// setUpload 以 [0,1] 分数回报上传阶段进度，缩放到 [0.7, 0.9]。
func (t *progressTracker) setUpload(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publish(parallelCeiling + clampFraction(v)*(uploadCeiling-parallelCeiling))
}

// setIntegrate 以 [0,1] 分数回报集成阶段进度，缩放到 [0.9, 1.0]。
func (t *progressTracker) setIntegrate(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publish(uploadCeiling + clampFraction(v)*(integrateCeiling-uploadCeiling))
}

// reset 清零三个子任务分数，供整轮重试重新计量。
// 全局值保持不变：重试期间对外展示的进度不回退。
func (t *progressTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audio = 0
	t.compression = 0
	t.analysis = 0
}

// value 返回当前全局进度。
func (t *progressTracker) value() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global
}
