package handler

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/pkg/consts"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*wsSession, *stubUserService, *stubIMService, *stubTypingService) {
	users := &stubUserService{}
	im := &stubIMService{}
	typing := &stubTypingService{}
	h := NewWsHandler(users, im, typing)
	sess, cancel := h.newSession(context.Background(), 7)
	t.Cleanup(cancel)
	return sess, users, im, typing
}

func TestWsSession_SelectMarksRead(t *testing.T) {
	sess, _, im, _ := newTestSession(t)
	ctx := context.Background()

	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameSelect, ConversationID: 3})
	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameSelect, ConversationID: 3})
	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameSelect, ConversationID: 0})
	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameSelect, ConversationID: 4})

	assert.Equal(t, []markReadCall{{userID: 7, convID: 3}, {userID: 7, convID: 4}}, im.reads)
}

func TestWsSession_PeerMessageInSelectedConversation(t *testing.T) {
	sess, _, im, _ := newTestSession(t)
	ctx := context.Background()

	sess.handleEvent(ctx, &dto.EventDTO{Type: consts.EventMessageNew, ConversationID: 3, UserID: 8})
	assert.Empty(t, im.reads)

	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameSelect, ConversationID: 3})
	require.Len(t, im.reads, 1)

	sess.handleEvent(ctx, &dto.EventDTO{Type: consts.EventMessageNew, ConversationID: 3, UserID: 8})
	sess.handleEvent(ctx, &dto.EventDTO{Type: consts.EventMessageNew, ConversationID: 3, UserID: 7})
	sess.handleEvent(ctx, &dto.EventDTO{Type: consts.EventMessageNew, ConversationID: 5, UserID: 8})
	sess.handleEvent(ctx, &dto.EventDTO{Type: consts.EventTyping, ConversationID: 3, UserID: 8})

	assert.Len(t, im.reads, 2)
}

func TestWsSession_TypingIsRateLimited(t *testing.T) {
	sess, _, _, typing := newTestSession(t)
	ctx := context.Background()

	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameTyping})
	assert.Empty(t, typing.sets)

	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameSelect, ConversationID: 3})
	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameTyping})
	sess.handleFrame(ctx, &dto.ClientFrame{Type: frameTyping, ConversationID: 3})

	assert.Equal(t, []uint64{3}, typing.sets)
}

func TestWsSession_HeartbeatRefreshesPresence(t *testing.T) {
	sess, users, _, _ := newTestSession(t)

	sess.handleFrame(context.Background(), &dto.ClientFrame{Type: frameHeartbeat})
	sess.handleFrame(context.Background(), &dto.ClientFrame{Type: "bogus"})

	require.Len(t, users.presence, 1)
	assert.Nil(t, users.presence[0])
}
