package api

import "Tandem/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	UserHandler    *handler.UserHandler
	IMHandler      *handler.IMHandler
	MessageHandler *handler.MessageHandler
	TypingHandler  *handler.TypingHandler
	WSHandler      *handler.WsHandler
}
