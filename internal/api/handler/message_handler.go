package handler

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/pkg/response"
	"Tandem/internal/pkg/util"
	"Tandem/internal/service"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService service.MessageService
}

func NewMessageHandler(messageService service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// List 获取历史消息
func (s *MessageHandler) List(c *gin.Context) {
	convID, ok := paramUint64(c, "conversation_id")
	if !ok {
		return
	}
	var req dto.ListMessagesReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	res, err := s.messageService.List(c.Request.Context(), currentUserID(c), convID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Send 发送消息接口
func (s *MessageHandler) Send(c *gin.Context) {
	convID, ok := paramUint64(c, "conversation_id")
	if !ok {
		return
	}
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.messageService.Send(c.Request.Context(), currentUserID(c), convID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *MessageHandler) Delete(c *gin.Context) {
	err := s.messageService.Delete(c.Request.Context(), currentUserID(c), c.Param("message_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *MessageHandler) React(c *gin.Context) {
	var req dto.ReactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.messageService.React(c.Request.Context(), currentUserID(c), c.Param("message_id"), req.Emoji)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
