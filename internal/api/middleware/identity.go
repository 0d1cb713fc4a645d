package middleware

import (
	"Tandem/internal/pkg/response"
	"Tandem/internal/pkg/security"
	"context"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

// IdentityResolver 外部身份到本地用户 ID 的映射
type IdentityResolver interface {
	Resolve(ctx context.Context, tokenIdentifier string) (uint64, error)
}

// IdentityMiddleware 将外部身份统一解析为本地用户 ID，未知身份为 0
func IdentityMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint64
		if v, ok := c.Get(IdentityKey); ok {
			identity := v.(*security.Identity)
			id, err := resolver.Resolve(c.Request.Context(), identity.Subject)
			if err != nil {
				log.ErrorContext(c.Request.Context(), "resolve identity failed", "err", err)
				response.Fail(c, response.InternalServerError, "未知错误")
				c.Abort()
				return
			}
			userID = id
		}

		c.Set(UserIDKey, userID)
		newCtx := context.WithValue(c.Request.Context(), UserIDKey, userID)
		c.Request = c.Request.WithContext(newCtx)

		c.Next()
	}
}
