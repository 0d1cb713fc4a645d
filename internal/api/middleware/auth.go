package middleware

import (
	"Tandem/internal/pkg/consts"
	"Tandem/internal/pkg/logger"
	"Tandem/internal/pkg/redis"
	"Tandem/internal/pkg/response"
	"Tandem/internal/pkg/security"
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	IdentityKey = "identity"
	TokenKey    = "token"
	ClaimsKey   = "claims"
	UserIDKey   = logger.UserIDKey
)

var (
	errTokenMissing = errors.New("Token 缺失或格式错误")
	errTokenInvalid = errors.New("Token 无效或已过期")
)

// AuthMiddleware 负责验证 JWT 并将外部身份注入 Context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Fail(c, response.Unauthorized, errTokenMissing.Error())
			c.Abort()
			return
		}

		claims, err := ParseToken(c.Request.Context(), tokenString)
		if err != nil {
			if errors.Is(err, errTokenMissing) || errors.Is(err, errTokenInvalid) {
				response.Fail(c, response.Unauthorized, err.Error())
			} else {
				response.Fail(c, response.InternalServerError, "未知错误")
			}
			c.Abort()
			return
		}

		setIdentity(c, tokenString, claims)
		c.Next()
	}
}

// ParseToken 校验签名与黑名单，WebSocket 握手也走这里
func ParseToken(ctx context.Context, tokenString string) (*security.IdentityClaims, error) {
	signature, err := security.ExtractSignature(tokenString)
	if err != nil {
		return nil, errTokenMissing
	}

	value, err := redis.GetValue(ctx, consts.TokenRevokedKey+signature)
	if err != nil {
		return nil, err
	}
	if value != "" {
		return nil, errTokenInvalid
	}

	claims, err := security.ValidateToken(tokenString)
	if err != nil {
		return nil, errTokenInvalid
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

func setIdentity(c *gin.Context, tokenString string, claims *security.IdentityClaims) {
	c.Set(TokenKey, tokenString)
	c.Set(ClaimsKey, claims)
	c.Set(IdentityKey, claims.Identity())
}
