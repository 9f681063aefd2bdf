// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
// PO 对象映射数据库表结构，不直接暴露给上层业务逻辑。
package po

import (
	"time"

	"github.com/google/uuid"
)

// ThreadDepth 表示帖子在会话树中的层级。
type ThreadDepth int16

// 会话树层级常量：0 为 Thread（根帖），1 为 Child，2 为 Stepchild（终端层级）。
const (
	DepthThread    ThreadDepth = 0
	DepthChild     ThreadDepth = 1
	DepthStepchild ThreadDepth = 2

	// MaxThreadDepth 为会话树允许的最大层级，Stepchild 之下不允许再回复。
	MaxThreadDepth ThreadDepth = DepthStepchild
)

// CreatorTier 表示创作者的互动等级，用于压缩策略的质量偏置。
type CreatorTier string

// 创作者等级常量定义
const (
	TierNewcomer CreatorTier = "newcomer" // 新注册创作者
	TierRegular  CreatorTier = "regular"  // 普通创作者
	TierRising   CreatorTier = "rising"   // 互动增长期创作者
	TierPartner  CreatorTier = "partner"  // 合作伙伴（特权等级）
	TierIcon     CreatorTier = "icon"     // 头部创作者（特权等级）
)

// Privileged 返回该等级是否属于特权等级（长视频免于最低档降级）。
func (t CreatorTier) Privileged() bool {
	return t == TierPartner || t == TierIcon
}

// VideoPost 表示 posts.video_posts 表的数据库实体。
// 一条已发布的短视频帖子，同时承载会话树（stitch）结构字段。
type VideoPost struct {
	// 基础字段
	PostID    uuid.UUID `db:"post_id"`    // 主键（UUID v4）
	CreatorID uuid.UUID `db:"creator_id"` // 发布者用户 ID
	CreatedAt time.Time `db:"created_at"` // 记录创建时间
	UpdatedAt time.Time `db:"updated_at"` // 最近更新时间

	// 会话树字段
	ThreadID uuid.UUID   `db:"thread_id"` // 所属会话根帖 ID（根帖等于自身 ID）
	ParentID *uuid.UUID  `db:"parent_id"` // 被回复帖子 ID（根帖为 NULL）
	Depth    ThreadDepth `db:"depth"`     // 树层级：0/1/2

	// 内容字段
	Title        string  `db:"title"`         // 标题（必填，1..150）
	Description  *string `db:"description"`   // 描述（可选）
	MediaURL     string  `db:"media_url"`     // 压缩后媒体文件 URL
	ThumbnailURL *string `db:"thumbnail_url"` // 缩略图 URL
	DurationSecs float64 `db:"duration_secs"` // 视频时长（秒）
	FileSize     int64   `db:"file_size"`     // 媒体文件大小（字节）
	AspectRatio  *string `db:"aspect_ratio"`  // 宽高比（如 "9:16"）
	Hashtags     []string `db:"hashtags"`     // 话题标签（PostgreSQL text[]）

	// 互动计数（由服务端自增，单调不减）
	LikeCount    int64 `db:"like_count"`    // 正向反应数
	DislikeCount int64 `db:"dislike_count"` // 负向反应数
	ReplyCount   int64 `db:"reply_count"`   // 回复数
	ShareCount   int64 `db:"share_count"`   // 分享数
	ViewCount    int64 `db:"view_count"`    // 播放数

	// 派生评分（由其他服务计算回写）
	QualityScore        *float64 `db:"quality_score"`        // 技术质量评分
	DiscoverabilityScore *float64 `db:"discoverability_score"` // 可发现性评分

	// 软删除标记：删除即墓碑化，永不物理删除。
	DeletedAt *time.Time `db:"deleted_at"`
}

// IsRoot 返回该帖子是否为会话根帖。
func (p *VideoPost) IsRoot() bool {
	return p.Depth == DepthThread && p.ParentID == nil
}

// Tombstoned 返回该帖子是否已被软删除。
func (p *VideoPost) Tombstoned() bool {
	return p.DeletedAt != nil
}
