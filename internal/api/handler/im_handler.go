package handler

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/pkg/response"
	"Tandem/internal/pkg/util"
	"Tandem/internal/service"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	imService service.IMService
}

func NewIMHandler(imService service.IMService) *IMHandler {
	return &IMHandler{imService: imService}
}

// GetOrCreateConversation 获取或创建单聊
func (s *IMHandler) GetOrCreateConversation(c *gin.Context) {
	var req dto.GetOrCreateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	convID, err := s.imService.GetOrCreateConversation(c.Request.Context(), currentUserID(c), req.OtherUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, &dto.ConversationIDDTO{ConversationID: convID})
}

// GetConversationList 获取会话列表
func (s *IMHandler) GetConversationList(c *gin.Context) {
	var req dto.PageReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	res, err := s.imService.GetConversationList(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// MarkAsRead 标记已读接口
func (s *IMHandler) MarkAsRead(c *gin.Context) {
	convID, ok := paramUint64(c, "conversation_id")
	if !ok {
		return
	}

	err := s.imService.MarkAsRead(c.Request.Context(), currentUserID(c), convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
