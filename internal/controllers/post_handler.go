// Package controllers 实现 HTTP 层的请求处理，负责参数解析与服务层调用。
package controllers

import (
	stdhttp "net/http"
	"strings"

	"github.com/bionicotaku/lingo-services-posts/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-posts/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// actor 身份由网关注入的请求头传递（认证在上游完成）。
const headerUserID = "x-md-global-user-id"

// PostHandler 处理帖子创建、会话树查询与删除、元数据更新。
type PostHandler struct {
	pipeline *services.PipelineService
	threads  *services.ThreadService
	log      *log.Helper
}

// NewPostHandler 构造 PostHandler。
func NewPostHandler(pipeline *services.PipelineService, threads *services.ThreadService, logger log.Logger) *PostHandler {
	return &PostHandler{
		pipeline: pipeline,
		threads:  threads,
		log:      log.NewHelper(logger),
	}
}

// RegisterRoutes 将路由挂载到 HTTP Server。
func (h *PostHandler) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/v1")
	r.POST("/posts", h.CreatePost)
	r.PATCH("/posts/{id}", h.UpdatePost)
	r.GET("/threads/{id}", h.GetThread)
	r.DELETE("/threads/{id}", h.DeleteThread)
}

// CreatePost 触发一次完整流水线：媒体处理、上传、入库、通知。
// actor 身份取自网关注入的请求头，请求体无法冒充他人发帖。
func (h *PostHandler) CreatePost(ctx khttp.Context) error {
	actor, err := requesterID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreatePostRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	input, err := req.ToRunInput(actor)
	if err != nil {
		return services.ValidationError(err.Error())
	}

	detail, err := h.pipeline.Run(ctx, input)
	if err != nil {
		return err
	}
	return ctx.Result(stdhttp.StatusCreated, detail)
}

// UpdatePost 字段级合并更新帖子元数据。
func (h *PostHandler) UpdatePost(ctx khttp.Context) error {
	var path dto.PathID
	if err := ctx.BindVars(&path); err != nil {
		return err
	}
	postID, err := path.Parse()
	if err != nil {
		return services.ValidationError(err.Error())
	}

	var req dto.UpdatePostRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	post, err := h.threads.Update(ctx, postID, req.ToUpdateFields())
	if err != nil {
		return err
	}
	return ctx.Result(stdhttp.StatusOK, post)
}

// GetThread 返回整棵会话树。
func (h *PostHandler) GetThread(ctx khttp.Context) error {
	var path dto.PathID
	if err := ctx.BindVars(&path); err != nil {
		return err
	}
	threadID, err := path.Parse()
	if err != nil {
		return services.ValidationError(err.Error())
	}

	tree, err := h.threads.GetTree(ctx, threadID)
	if err != nil {
		return err
	}
	return ctx.Result(stdhttp.StatusOK, tree)
}

// DeleteThread 由根帖创建者删除整棵会话树（软删除）。
func (h *PostHandler) DeleteThread(ctx khttp.Context) error {
	var path dto.PathID
	if err := ctx.BindVars(&path); err != nil {
		return err
	}
	threadID, err := path.Parse()
	if err != nil {
		return services.ValidationError(err.Error())
	}

	requester, err := requesterID(ctx)
	if err != nil {
		return err
	}

	if err := h.threads.DeleteTree(ctx, threadID, requester); err != nil {
		return err
	}
	return ctx.Result(stdhttp.StatusNoContent, nil)
}

// requesterID 从网关注入的请求头解析当前用户。
func requesterID(ctx khttp.Context) (uuid.UUID, error) {
	raw := strings.TrimSpace(ctx.Header().Get(headerUserID))
	if raw == "" {
		return uuid.Nil, services.PermissionError("missing user identity header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, services.ValidationError("invalid user identity header")
	}
	return id, nil
}
