package handler

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/api/middleware"
	"Tandem/internal/pkg/consts"
	"Tandem/internal/pkg/logger"
	"Tandem/internal/pkg/metrics"
	"Tandem/internal/pkg/redis"
	"Tandem/internal/pkg/response"
	"Tandem/internal/pkg/state"
	"Tandem/internal/service"
	"context"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	frameSelect    = "select"
	frameTyping    = "typing"
	frameHeartbeat = "heartbeat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	userService   service.UserService
	imService     service.IMService
	typingService service.TypingService
}

func NewWsHandler(userService service.UserService, imService service.IMService, typingService service.TypingService) *WsHandler {
	return &WsHandler{
		userService:   userService,
		imService:     imService,
		typingService: typingService,
	}
}

// wsSession 单个连接的会话状态，当前选中的会话是唯一可变字段
type wsSession struct {
	userID        uint64
	selected      *state.Value[uint64]
	typingLimiter *rate.Limiter
	userService   service.UserService
	imService     service.IMService
	typingService service.TypingService
}

func (s *WsHandler) newSession(ctx context.Context, userID uint64) (*wsSession, func()) {
	sess := &wsSession{
		userID:        userID,
		selected:      state.NewValue[uint64](0),
		typingLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		userService:   s.userService,
		imService:     s.imService,
		typingService: s.typingService,
	}
	// 打开会话即视为已读
	cancel := sess.selected.Subscribe(func(_, cur uint64) {
		if cur == 0 {
			return
		}
		sess.markRead(ctx, cur)
	})
	return sess, cancel
}

func (s *wsSession) markRead(ctx context.Context, convID uint64) {
	if err := s.imService.MarkAsRead(ctx, s.userID, convID); err != nil {
		log.WarnContext(ctx, "WS 标记已读失败", "userID", s.userID, "conversation_id", convID, "err", err)
	}
}

// handleFrame 处理客户端上行帧
func (s *wsSession) handleFrame(ctx context.Context, frame *dto.ClientFrame) {
	switch frame.Type {
	case frameSelect:
		s.selected.Set(frame.ConversationID)
	case frameTyping:
		convID := frame.ConversationID
		if convID == 0 {
			convID = s.selected.Get()
		}
		if convID == 0 || !s.typingLimiter.Allow() {
			return
		}
		if err := s.typingService.Set(ctx, s.userID, convID); err != nil {
			log.WarnContext(ctx, "WS 输入状态更新失败", "userID", s.userID, "err", err)
		}
	case frameHeartbeat:
		if err := s.userService.UpdatePresence(ctx, s.userID, nil); err != nil {
			log.WarnContext(ctx, "WS 心跳失败", "userID", s.userID, "err", err)
		}
	default:
		log.DebugContext(ctx, "WS 未知帧", "type", frame.Type)
	}
}

// handleEvent 下行事件：对方在当前打开的会话中发来新消息时立即已读
func (s *wsSession) handleEvent(ctx context.Context, evt *dto.EventDTO) {
	if evt.Type != consts.EventMessageNew || evt.UserID == s.userID {
		return
	}
	if evt.ConversationID != 0 && evt.ConversationID == s.selected.Get() {
		s.markRead(ctx, evt.ConversationID)
	}
}

func (s *WsHandler) Connect(c *gin.Context) {
	// 鉴权
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := middleware.ParseToken(c.Request.Context(), token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	userID, err := s.userService.Resolve(c.Request.Context(), claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	if userID == 0 {
		response.Error(c, service.UnauthorizedError)
		return
	}

	// 升级 Websocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	defer metrics.WSConnected()()

	ctx := context.WithValue(context.Background(), logger.UserIDKey, userID)
	if traceID, ok := c.Get(logger.TraceIDKey); ok {
		ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, unsubscribe := s.newSession(ctx, userID)
	defer unsubscribe()

	_ = s.userService.UpdatePresence(ctx, userID, nil)
	defer func() {
		offline := false
		presenceCtx, presenceCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer presenceCancel()
		_ = s.userService.UpdatePresence(presenceCtx, userID, &offline)
	}()

	// 订阅用户个人频道
	pubsub := redis.Subscribe(ctx, redis.UserChannel(userID))
	defer func() {
		_ = pubsub.Close()
	}()

	log.Info("用户 WS 连接已建立", "userID", userID)

	stopChan := make(chan struct{})

	// 读循环：处理客户端上行帧，监听主动断开
	go func() {
		defer close(stopChan)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame dto.ClientFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Debug("WS 帧解析失败", "userID", userID, "err", err)
				continue
			}
			sess.handleFrame(ctx, &frame)
		}
	}()

	// 写循环：监听 Redis 并推送至客户端
	redisCh := pubsub.Channel()
	for {
		select {
		case msg, ok := <-redisCh:
			if !ok {
				return
			}
			var evt dto.EventDTO
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				sess.handleEvent(ctx, &evt)
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload))
			if err != nil {
				log.Error("WS 推送失败", "userID", userID, "err", err)
				return
			}
		case <-stopChan:
			log.Info("用户 WS 连接已断开", "userID", userID)
			return
		}
	}
}
