package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetHistory(ctx context.Context, convID uint64, beforeSeq uint64, pageSize int) ([]*Message, error)
	GetLatest(ctx context.Context, convID uint64) (*Message, error)
	GetByID(ctx context.Context, id string) (*Message, error)
	MarkDeleted(ctx context.Context, id primitive.ObjectID) error
	UpdateReactions(ctx context.Context, id primitive.ObjectID, reactions []Reaction, version int64) (bool, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	DeleteBySeq(ctx context.Context, convID uint64, seq uint64) error
}

// IsDuplicateKey 判断是否违反 (conversation_id, seq) 唯一索引
func IsDuplicateKey(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// EnsureIndexes 创建 (conversation_id, seq) 唯一索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("message").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// SaveMessage 将消息存入 MongoDB
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.Reactions == nil {
		msg.Reactions = []Reaction{}
	}
	res, err := s.col.InsertOne(ctx, msg)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}

// GetHistory 历史消息查询，按 seq 降序返回
// beforeSeq 为当前页面最旧一条消息的序号，第一页传 0
func (s *messageRepoImpl) GetHistory(ctx context.Context, convID uint64, beforeSeq uint64, pageSize int) ([]*Message, error) {
	filter := bson.M{"conversation_id": convID}
	if beforeSeq > 0 {
		filter["seq"] = bson.M{"$lt": beforeSeq}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(pageSize))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetLatest 获取会话最新一条消息，不存在时返回 nil
func (s *messageRepoImpl) GetLatest(ctx context.Context, convID uint64) (*Message, error) {
	var msg Message
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	err := s.col.FindOne(ctx, bson.M{"conversation_id": convID}, opts).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetByID 根据 ID 获取消息，ID 非法或不存在时返回 nil
func (s *messageRepoImpl) GetByID(ctx context.Context, id string) (*Message, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var msg Message
	err = s.col.FindOne(ctx, bson.M{"_id": objectID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// MarkDeleted 软删除：置删除标记并清空内容
func (s *messageRepoImpl) MarkDeleted(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{"is_deleted": true, "content": ""},
		"$inc": bson.M{"version": 1},
	}
	result, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdateReactions 基于版本号的条件更新，版本不匹配时返回 false
func (s *messageRepoImpl) UpdateReactions(ctx context.Context, id primitive.ObjectID, reactions []Reaction, version int64) (bool, error) {
	filter := bson.M{"_id": id, "version": version, "is_deleted": false}
	update := bson.M{
		"$set": bson.M{"reactions": reactions},
		"$inc": bson.M{"version": 1},
	}
	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// DeleteByID 物理删除消息，用于撤销未提交的发送
func (s *messageRepoImpl) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteBySeq 删除会话内指定序号的消息
// 仅在持有会话行锁且 seq 大于已提交序号时调用，此时该文档必然是残留
func (s *messageRepoImpl) DeleteBySeq(ctx context.Context, convID uint64, seq uint64) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"conversation_id": convID, "seq": seq})
	return err
}
