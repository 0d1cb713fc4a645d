package handler

import (
	"Tandem/internal/api/middleware"
	"Tandem/internal/pkg/response"
	"Tandem/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// paramUint64 解析路径参数，非法时直接写回参数错误
func paramUint64(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, service.ErrParamInvalid)
		return 0, false
	}
	return id, true
}

func currentUserID(c *gin.Context) uint64 {
	return c.GetUint64(middleware.UserIDKey)
}
