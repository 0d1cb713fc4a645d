package middleware

import (
	"github.com/gin-gonic/gin"
)

// AuthOptionalMiddleware 可选鉴权：解析成功注入身份，失败或缺失则不注入
func AuthOptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := ParseToken(c.Request.Context(), tokenString)
		if err == nil {
			setIdentity(c, tokenString, claims)
		}

		c.Next()
	}
}
