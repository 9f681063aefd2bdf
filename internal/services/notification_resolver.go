package services

import (
	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/google/uuid"
)

// ThreadPosition 描述一条新回复在会话树中的位置，由 Hierarchy 层查询组装。
type ThreadPosition struct {
	Parent       *po.VideoPost // 被回复的帖子
	Root         *po.VideoPost // 会话根帖；无法解析时为 nil
	Participants []uuid.UUID   // 整棵树的去重创建者集合（仅 depth 1 广播使用）
	NewDepth     po.ThreadDepth
}

// ResolveRecipients 为一条新回复计算通知接收者集合。纯函数，无 I/O。
//
// depth 1（回复根帖）：{根帖创建者} ∪ {会话全部参与者} − actor，
// 深层回复不应广播整个会话，因此 depth 2 刻意收窄为
// {被回复者} ∪ {根帖创建者} − actor。
// actor 永远不会收到自己动作产生的通知。
func ResolveRecipients(pos ThreadPosition, actorID uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var recipients []uuid.UUID

	add := func(id uuid.UUID) {
		if id == uuid.Nil || id == actorID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}

	// 根帖创建者（original creator）始终在集合内，除非就是 actor 本人。
	if pos.Root != nil {
		add(pos.Root.CreatorID)
	}

	switch pos.NewDepth {
	case po.DepthChild:
		for _, id := range pos.Participants {
			add(id)
		}
	case po.DepthStepchild:
		if pos.Parent != nil {
			add(pos.Parent.CreatorID)
		}
	}

	return recipients
}

// ResolveMentions 为显式 @ 标记计算提及通知目标，与树层级逻辑无关。
// 每个被标记用户各产生一个目标，仅当被标记者即 actor 时抑制。
func ResolveMentions(tagged []uuid.UUID, actorID uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var targets []uuid.UUID
	for _, id := range tagged {
		if id == uuid.Nil || id == actorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	return targets
}
