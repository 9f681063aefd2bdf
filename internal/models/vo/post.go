package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/google/uuid"
)

// PostDetail 封装帖子精简视图，仅包含前端展示需要的核心字段。
type PostDetail struct {
	PostID       uuid.UUID  `json:"post_id"`
	CreatorID    uuid.UUID  `json:"creator_id"`
	ThreadID     uuid.UUID  `json:"thread_id"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	Depth        int16      `json:"depth"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	MediaURL     string     `json:"media_url"`
	ThumbnailURL *string    `json:"thumbnail_url,omitempty"`
	DurationSecs float64    `json:"duration_secs"`
	Hashtags     []string   `json:"hashtags,omitempty"`
	LikeCount    int64      `json:"like_count"`
	ReplyCount   int64      `json:"reply_count"`
	ShareCount   int64      `json:"share_count"`
	ViewCount    int64      `json:"view_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewPostDetail 从领域实体构造精简 VO。
func NewPostDetail(post *po.VideoPost) *PostDetail {
	if post == nil {
		return nil
	}
	return &PostDetail{
		PostID:       post.PostID,
		CreatorID:    post.CreatorID,
		ThreadID:     post.ThreadID,
		ParentID:     post.ParentID,
		Depth:        int16(post.Depth),
		Title:        post.Title,
		Description:  post.Description,
		MediaURL:     post.MediaURL,
		ThumbnailURL: post.ThumbnailURL,
		DurationSecs: post.DurationSecs,
		Hashtags:     append([]string(nil), post.Hashtags...), // 防御性拷贝
		LikeCount:    post.LikeCount,
		ReplyCount:   post.ReplyCount,
		ShareCount:   post.ShareCount,
		ViewCount:    post.ViewCount,
		CreatedAt:    post.CreatedAt,
		UpdatedAt:    post.UpdatedAt,
	}
}

// ThreadNode 表示会话树中一个 Child 及其全部 Stepchild 回复。
type ThreadNode struct {
	Post    *PostDetail   `json:"post"`
	Replies []*PostDetail `json:"replies,omitempty"`
}

// ThreadTree 表示一棵完整会话树：唯一根帖与按层级分组的后代。
type ThreadTree struct {
	Root     *PostDetail   `json:"root"`
	Children []*ThreadNode `json:"children,omitempty"`
}
