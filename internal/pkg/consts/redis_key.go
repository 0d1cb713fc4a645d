package consts

const (
	TokenRevokedKey = "auth:revoked:"
	IMUserKey       = "im:user:"
	IMTypingKey     = "im:typing:"
)
