package po

// PipelinePhase 表示一次创建请求的流水线状态机阶段。
// 状态机：ready → parallel_processing → uploading → integrating → {complete | error}。
// complete 与 error 为终态，只有发起全新 Run 才会离开终态。
type PipelinePhase string

// 流水线阶段常量定义
const (
	PhaseReady              PipelinePhase = "ready"               // 尚未开始
	PhaseParallelProcessing PipelinePhase = "parallel_processing" // 三个并行子任务执行中
	PhaseUploading          PipelinePhase = "uploading"           // 顺序上传媒体与缩略图
	PhaseIntegrating        PipelinePhase = "integrating"         // 写入会话树并决策通知
	PhaseComplete           PipelinePhase = "complete"            // 成功终态
	PhaseError              PipelinePhase = "error"               // 失败终态
)

// Terminal 返回该阶段是否为终态。
func (p PipelinePhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}
