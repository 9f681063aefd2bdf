// Package dto 定义 HTTP 层请求与响应结构，以及到服务层输入的转换。
package dto

import (
	"fmt"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/services"

	"github.com/google/uuid"
)

// CreatePostRequest 为创建帖子（根帖或回复）的请求体。
// actor 身份不在请求体内，由 Handler 从网关注入的请求头解析后传入。
type CreatePostRequest struct {
	Tier          string   `json:"tier"`
	SourcePath    string   `json:"source_path"`
	ParentID      string   `json:"parent_id,omitempty"`
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	TaggedUserIDs []string `json:"tagged_user_ids,omitempty"`
}

// ToRunInput 解析并转换为流水线输入，actorID 为已认证的请求方身份。
func (r CreatePostRequest) ToRunInput(actorID uuid.UUID) (services.RunInput, error) {
	if actorID == uuid.Nil {
		return services.RunInput{}, fmt.Errorf("actor id is required")
	}

	input := services.RunInput{
		SourcePath:        r.SourcePath,
		ActorID:           actorID,
		Tier:              po.CreatorTier(r.Tier),
		ManualTitle:       r.Title,
		ManualDescription: r.Description,
	}

	if r.ParentID != "" {
		parentID, err := uuid.Parse(r.ParentID)
		if err != nil {
			return services.RunInput{}, fmt.Errorf("invalid parent_id: %w", err)
		}
		input.ParentID = &parentID
	}

	for _, raw := range r.TaggedUserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return services.RunInput{}, fmt.Errorf("invalid tagged user id %q: %w", raw, err)
		}
		input.TaggedUserIDs = append(input.TaggedUserIDs, id)
	}

	return input, nil
}

// UpdatePostRequest 为字段级合并更新的请求体，缺省字段保持原值。
type UpdatePostRequest struct {
	Title                *string  `json:"title,omitempty"`
	Description          *string  `json:"description,omitempty"`
	ThumbnailURL         *string  `json:"thumbnail_url,omitempty"`
	Hashtags             []string `json:"hashtags,omitempty"`
	QualityScore         *float64 `json:"quality_score,omitempty"`
	DiscoverabilityScore *float64 `json:"discoverability_score,omitempty"`
}

// ToUpdateFields 转换为服务层输入。
func (r UpdatePostRequest) ToUpdateFields() services.UpdatePostFields {
	return services.UpdatePostFields{
		Title:                r.Title,
		Description:          r.Description,
		ThumbnailURL:         r.ThumbnailURL,
		Hashtags:             r.Hashtags,
		QualityScore:         r.QualityScore,
		DiscoverabilityScore: r.DiscoverabilityScore,
	}
}

// PathID 绑定路径参数 {id}。
type PathID struct {
	ID string `json:"id"`
}

// Parse 解析路径参数为 UUID。
func (p PathID) Parse() (uuid.UUID, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}
