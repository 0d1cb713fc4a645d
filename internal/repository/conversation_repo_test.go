package repository

import (
	"Tandem/internal/model"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createPair(t *testing.T, repo ConversationRepo, a, b uint64, activity time.Time) uint64 {
	t.Helper()
	key := model.PeerKey(a, b)
	conv := &model.Conversation{PeerKey: &key}
	members := []*model.ConversationMember{
		{UserID: a, LastActivityAt: activity, JoinedAt: activity},
		{UserID: b, LastActivityAt: activity, JoinedAt: activity},
	}
	require.NoError(t, repo.CreateConversation(context.Background(), conv, members))
	require.NotZero(t, conv.ID)
	return conv.ID
}

func mustMember(t *testing.T, repo ConversationRepo, convID, userID uint64) *model.ConversationMember {
	t.Helper()
	m, err := repo.GetMember(context.Background(), convID, userID)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func appendFrom(t *testing.T, repo ConversationRepo, convID, senderID uint64, now time.Time) uint64 {
	t.Helper()
	var got uint64
	err := repo.AppendMessage(context.Background(), convID, senderID, now, func(seq uint64) error {
		got = seq
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestConversationRepo_AppendMessageCounters(t *testing.T) {
	repo := NewConversationRepo(newTestDB(t))
	convID := createPair(t, repo, 1, 2, baseTime)

	now := baseTime.Add(time.Hour)
	assert.Equal(t, uint64(1), appendFrom(t, repo, convID, 1, now))

	sender := mustMember(t, repo, convID, 1)
	other := mustMember(t, repo, convID, 2)
	assert.False(t, sender.HasUnread)
	assert.Zero(t, sender.UnreadCount)
	assert.True(t, other.HasUnread)
	assert.Equal(t, uint64(1), other.UnreadCount)
	assert.WithinDuration(t, now, sender.LastActivityAt, 0)
	assert.WithinDuration(t, now, other.LastActivityAt, 0)

	assert.Equal(t, uint64(2), appendFrom(t, repo, convID, 1, now.Add(time.Second)))
	assert.Equal(t, uint64(3), appendFrom(t, repo, convID, 2, now.Add(2*time.Second)))

	assert.Equal(t, uint64(1), mustMember(t, repo, convID, 1).UnreadCount)
	assert.Equal(t, uint64(2), mustMember(t, repo, convID, 2).UnreadCount)

	conv, err := repo.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), conv.MaxMsgSeq)
	assert.WithinDuration(t, now.Add(2*time.Second), conv.UpdatedAt, 0)
}

func TestConversationRepo_AppendMessageRollsBack(t *testing.T) {
	repo := NewConversationRepo(newTestDB(t))
	ctx := context.Background()
	convID := createPair(t, repo, 1, 2, baseTime)
	appendFrom(t, repo, convID, 1, baseTime.Add(time.Minute))

	storeErr := errors.New("store down")
	err := repo.AppendMessage(ctx, convID, 1, baseTime.Add(time.Hour), func(seq uint64) error {
		assert.Equal(t, uint64(2), seq)
		return storeErr
	})
	require.ErrorIs(t, err, storeErr)

	conv, err := repo.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), conv.MaxMsgSeq)
	other := mustMember(t, repo, convID, 2)
	assert.Equal(t, uint64(1), other.UnreadCount)
	assert.WithinDuration(t, baseTime.Add(time.Minute), other.LastActivityAt, 0)

	err = repo.AppendMessage(ctx, 999, 1, baseTime, func(uint64) error { return nil })
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestConversationRepo_AppendMessageCommitsAfterCancel(t *testing.T) {
	repo := NewConversationRepo(newTestDB(t))
	convID := createPair(t, repo, 1, 2, baseTime)

	// 写入消息成功后请求被取消，事务仍需提交
	ctx, cancel := context.WithCancel(context.Background())
	err := repo.AppendMessage(ctx, convID, 1, baseTime.Add(time.Hour), func(uint64) error {
		cancel()
		return nil
	})
	require.NoError(t, err)

	conv, err := repo.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), conv.MaxMsgSeq)
	assert.Equal(t, uint64(1), mustMember(t, repo, convID, 2).UnreadCount)
}

func TestConversationRepo_ResetUnreadIsIdempotent(t *testing.T) {
	repo := NewConversationRepo(newTestDB(t))
	ctx := context.Background()
	convID := createPair(t, repo, 1, 2, baseTime)
	appendFrom(t, repo, convID, 1, baseTime.Add(time.Minute))
	appendFrom(t, repo, convID, 1, baseTime.Add(2*time.Minute))

	changed, err := repo.ResetUnread(ctx, convID, 2, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)

	m := mustMember(t, repo, convID, 2)
	assert.False(t, m.HasUnread)
	assert.Zero(t, m.UnreadCount)
	assert.WithinDuration(t, baseTime.Add(time.Hour), m.UpdatedAt, 0)

	changed, err = repo.ResetUnread(ctx, convID, 2, baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.WithinDuration(t, baseTime.Add(time.Hour), mustMember(t, repo, convID, 2).UpdatedAt, 0)

	changed, err = repo.ResetUnread(ctx, convID, 1, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.ResetUnread(ctx, convID, 42, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestConversationRepo_ListMembersKeysetWithTies(t *testing.T) {
	repo := NewConversationRepo(newTestDB(t))
	ctx := context.Background()

	t1 := baseTime.Add(time.Minute)
	t2 := baseTime.Add(2 * time.Minute)
	t3 := baseTime.Add(3 * time.Minute)
	c1 := createPair(t, repo, 1, 11, t1)
	c2 := createPair(t, repo, 1, 12, t2)
	c3 := createPair(t, repo, 1, 13, t2)
	c4 := createPair(t, repo, 1, 14, t2)
	c5 := createPair(t, repo, 1, 15, t3)
	createPair(t, repo, 2, 16, t3)

	var got []uint64
	var after *MemberCursor
	pages := 0
	for {
		page, err := repo.ListMembers(ctx, 1, after, 2)
		require.NoError(t, err)
		pages++
		for _, m := range page {
			assert.Equal(t, uint64(1), m.UserID)
			got = append(got, m.ConversationID)
		}
		if len(page) < 2 {
			break
		}
		last := page[len(page)-1]
		after = &MemberCursor{LastActivityAt: last.LastActivityAt, ConversationID: last.ConversationID}
		require.Less(t, pages, 10)
	}
	assert.Equal(t, []uint64{c5, c4, c3, c2, c1}, got)
	assert.Equal(t, 3, pages)

	// 游标落在并列时间的中间
	page, err := repo.ListMembers(ctx, 1, &MemberCursor{LastActivityAt: t2, ConversationID: c3}, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, c2, page[0].ConversationID)
	assert.Equal(t, c1, page[1].ConversationID)
}

func TestConversationRepo_RepairUnreadFlags(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()
	c1 := createPair(t, repo, 1, 2, baseTime)
	c2 := createPair(t, repo, 1, 3, baseTime)
	appendFrom(t, repo, c2, 3, baseTime.Add(time.Minute))

	require.NoError(t, db.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", c1, 1).
		Update("has_unread", true).Error)
	require.NoError(t, db.Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", c1, 2).
		Update("unread_count", 4).Error)

	fixed, err := repo.RepairUnreadFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fixed)

	assert.False(t, mustMember(t, repo, c1, 1).HasUnread)
	m := mustMember(t, repo, c1, 2)
	assert.True(t, m.HasUnread)
	assert.Equal(t, uint64(4), m.UnreadCount)
	assert.True(t, mustMember(t, repo, c2, 1).HasUnread)

	fixed, err = repo.RepairUnreadFlags(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestConversationRepo_PeerKeyIsUnique(t *testing.T) {
	repo := NewConversationRepo(newTestDB(t))
	ctx := context.Background()
	convID := createPair(t, repo, 1, 2, baseTime)

	key := model.PeerKey(2, 1)
	err := repo.CreateConversation(ctx, &model.Conversation{PeerKey: &key}, []*model.ConversationMember{
		{UserID: 2, LastActivityAt: baseTime},
		{UserID: 1, LastActivityAt: baseTime},
	})
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	conv, err := repo.GetConversationByPeerKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, convID, conv.ID)

	ids, err := repo.GetMemberIDs(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, ids)

	page, err := repo.ListMembers(ctx, 1, nil, 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	ok, err := repo.IsMember(ctx, convID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsMember(ctx, convID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := repo.GetConversation(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	convs, err := repo.GetConversations(ctx, []uint64{convID, 999})
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}
