package handler

import (
	"Tandem/internal/pkg/response"
	"Tandem/internal/service"

	"github.com/gin-gonic/gin"
)

type TypingHandler struct {
	typingService service.TypingService
}

func NewTypingHandler(typingService service.TypingService) *TypingHandler {
	return &TypingHandler{typingService: typingService}
}

func (s *TypingHandler) Set(c *gin.Context) {
	convID, ok := paramUint64(c, "conversation_id")
	if !ok {
		return
	}
	if err := s.typingService.Set(c.Request.Context(), currentUserID(c), convID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *TypingHandler) Get(c *gin.Context) {
	convID, ok := paramUint64(c, "conversation_id")
	if !ok {
		return
	}
	res, err := s.typingService.Get(c.Request.Context(), currentUserID(c), convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
