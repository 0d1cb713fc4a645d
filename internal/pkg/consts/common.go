package consts

const (
	DefaultUserName = "Anonymous"
)

// 推送事件类型
const (
	EventMessageNew       = "message.new"
	EventMessageUpdated   = "message.updated"
	EventConversationRead = "conversation.read"
	EventTyping           = "typing"
)

// 事件总线
const (
	EventBusRedis = "redis"
	EventBusKafka = "kafka"
)
