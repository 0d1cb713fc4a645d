package api

import (
	"Tandem/internal/api/config"
	"Tandem/internal/api/middleware"
	"Tandem/internal/pkg/logger"
	"Tandem/internal/pkg/metrics"
	"Tandem/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup, userService service.UserService, logCfg config.LogstashConfig) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(metrics.GinMiddleware())
	logger.SetupGin(r, logCfg)

	r.GET("/metrics", metrics.Handler())

	identity := middleware.IdentityMiddleware(userService)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		userGroup := apiGroup.Group("/user")
		{
			authGroup := userGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.POST("/store", group.UserHandler.Store)
				authGroup.POST("/logout", group.UserHandler.Logout)
			}

			// 未登录时 user_id 为 0，查询返回空结果
			authOptGroup := userGroup.Group("")
			authOptGroup.Use(middleware.AuthOptionalMiddleware(), identity)
			{
				authOptGroup.GET("/me", group.UserHandler.GetMe)
				authOptGroup.GET("/search", group.UserHandler.Search)
				authOptGroup.POST("/presence", group.UserHandler.UpdatePresence)
			}
		}

		imGroup := apiGroup.Group("/im")
		{
			imGroup.GET("/ws", group.WSHandler.Connect)

			authOptGroup := imGroup.Group("")
			authOptGroup.Use(middleware.AuthOptionalMiddleware(), identity)
			{
				authOptGroup.POST("/conversations", group.IMHandler.GetOrCreateConversation)
				authOptGroup.GET("/conversations", group.IMHandler.GetConversationList)
				authOptGroup.POST("/conversations/:conversation_id/read", group.IMHandler.MarkAsRead)

				authOptGroup.GET("/conversations/:conversation_id/messages", group.MessageHandler.List)
				authOptGroup.POST("/conversations/:conversation_id/messages", group.MessageHandler.Send)
				authOptGroup.DELETE("/messages/:message_id", group.MessageHandler.Delete)
				authOptGroup.POST("/messages/:message_id/reactions", group.MessageHandler.React)

				authOptGroup.POST("/conversations/:conversation_id/typing", group.TypingHandler.Set)
				authOptGroup.GET("/conversations/:conversation_id/typing", group.TypingHandler.Get)
			}
		}
	}

	return r
}
