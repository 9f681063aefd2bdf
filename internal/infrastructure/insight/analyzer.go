// Package insight 封装远端内容分析服务的 HTTP 客户端。
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Config 描述内容分析服务地址与整体时间预算。
type Config struct {
	Endpoint string        // 为空时分析直接返回空结果
	Wait     time.Duration // 单次分析的整体预算，默认 15s
}

// Analyzer 实现 services.ContentAnalyzer 契约。
//
// best-effort 语义：任何内部失败（网络、超时、解码、非 2xx）都吸收为
// 空结果并记录日志，绝不向调用方返回错误。
type Analyzer struct {
	cfg    Config
	client *http.Client
	log    *log.Helper
}

// NewAnalyzer 构造 Analyzer。
func NewAnalyzer(cfg Config, logger log.Logger) *Analyzer {
	if cfg.Wait <= 0 {
		cfg.Wait = 15 * time.Second
	}
	return &Analyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Wait},
		log:    log.NewHelper(logger),
	}
}

type analyzeRequest struct {
	SourceRef string `json:"source_ref"`
	ActorID   string `json:"actor_id"`
}

type analyzeResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
}

// Analyze 请求远端服务生成标题、描述与标签建议。
func (a *Analyzer) Analyze(ctx context.Context, sourcePath string, actorID uuid.UUID) vo.ContentInsights {
	if a.cfg.Endpoint == "" {
		return vo.ContentInsights{}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Wait)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{SourceRef: sourcePath, ActorID: actorID.String()})
	if err != nil {
		a.log.WithContext(ctx).Warnf("content analysis skipped: encode request: %v", err)
		return vo.ContentInsights{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		a.log.WithContext(ctx).Warnf("content analysis skipped: build request: %v", err)
		return vo.ContentInsights{}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.log.WithContext(ctx).Warnf("content analysis absorbed failure: %v", err)
		return vo.ContentInsights{}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.log.WithContext(ctx).Warnf("content analysis absorbed failure: %v", fmt.Errorf("unexpected status %d", resp.StatusCode))
		return vo.ContentInsights{}
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.log.WithContext(ctx).Warnf("content analysis absorbed failure: decode response: %v", err)
		return vo.ContentInsights{}
	}

	return vo.ContentInsights{
		Title:       parsed.Title,
		Description: parsed.Description,
		Hashtags:    parsed.Hashtags,
	}
}
