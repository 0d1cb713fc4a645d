package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MsgTypeText = "text"

// Message MongoDB 消息明细模型
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID uint64             `bson:"conversation_id" json:"conversationId"` // 关联 MySQL 的会话 ID
	SenderID       uint64             `bson:"sender_id" json:"senderId"`
	MsgType        string             `bson:"msg_type" json:"msgType"`
	Content        string             `bson:"content" json:"content"`
	IsDeleted      bool               `bson:"is_deleted" json:"isDeleted"`
	Reactions      []Reaction         `bson:"reactions" json:"reactions"`
	Seq            uint64             `bson:"seq" json:"seq"`         // 会话内唯一序号 (来自 MySQL)
	Version        int64              `bson:"version" json:"version"` // 乐观锁版本
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}

// Reaction 同一 emoji 的回应者集合
type Reaction struct {
	Emoji   string   `bson:"emoji" json:"emoji"`
	UserIDs []uint64 `bson:"user_ids" json:"userIds"`
}

// ToggleReaction 切换 userID 对 emoji 的回应，返回切换后的列表以及是否为新增
func ToggleReaction(reactions []Reaction, emoji string, userID uint64) ([]Reaction, bool) {
	res := make([]Reaction, 0, len(reactions)+1)
	found := false
	added := false
	for _, r := range reactions {
		if r.Emoji != emoji {
			res = append(res, Reaction{Emoji: r.Emoji, UserIDs: append([]uint64(nil), r.UserIDs...)})
			continue
		}
		found = true
		ids := make([]uint64, 0, len(r.UserIDs)+1)
		removed := false
		for _, id := range r.UserIDs {
			if id == userID {
				removed = true
				continue
			}
			ids = append(ids, id)
		}
		if !removed {
			ids = append(ids, userID)
			added = true
		}
		// 无人回应时整条移除
		if len(ids) > 0 {
			res = append(res, Reaction{Emoji: r.Emoji, UserIDs: ids})
		}
	}
	if !found {
		res = append(res, Reaction{Emoji: emoji, UserIDs: []uint64{userID}})
		added = true
	}
	return res, added
}
