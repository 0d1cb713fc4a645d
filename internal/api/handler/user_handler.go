package handler

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/api/middleware"
	"Tandem/internal/pkg/response"
	"Tandem/internal/pkg/security"
	"Tandem/internal/pkg/util"
	"Tandem/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userSvc service.UserService
}

func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{
		userSvc: userSvc,
	}
}

// Store 登录后调用，首次见到的身份会创建本地用户
func (s *UserHandler) Store(c *gin.Context) {
	var identity *security.Identity
	if v, ok := c.Get(middleware.IdentityKey); ok {
		identity = v.(*security.Identity)
	}
	userID, err := s.userSvc.Store(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": userID})
}

func (s *UserHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	v, ok := c.Get(middleware.ClaimsKey)
	if !ok {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims := v.(*security.IdentityClaims)
	if claims.ExpiresAt == nil {
		response.Success(c, nil)
		return
	}
	err := s.userSvc.Logout(c.Request.Context(), token, claims.ExpiresAt.Time)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) GetMe(c *gin.Context) {
	userDTO, err := s.userSvc.GetMe(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, userDTO)
}

// UpdatePresence 心跳
func (s *UserHandler) UpdatePresence(c *gin.Context) {
	var req dto.PresenceReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
	}
	err := s.userSvc.UpdatePresence(c.Request.Context(), currentUserID(c), req.Online)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) Search(c *gin.Context) {
	var req dto.SearchUserReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}
	users, err := s.userSvc.Search(c.Request.Context(), currentUserID(c), req.Query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}
