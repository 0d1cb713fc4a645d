package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrUserNotFound         = errors.New("用户不存在")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageNotFound      = errors.New("消息不存在")
	ErrMessageSelf          = errors.New("不能给自己发消息")
	ErrNotMember            = errors.New("不是该会话成员")
	ErrForbidden            = errors.New("不能操作他人的消息")
	ErrMessageDeleted       = errors.New("消息已删除")
	ErrMessageEmpty         = errors.New("消息内容不能为空")
	ErrMessageTooLong       = errors.New("消息内容过长")
	ErrEmojiInvalid         = errors.New("表情无效")
	ErrConcurrentUpdate     = errors.New("操作冲突，请刷新后重试")
	UnauthorizedError       = errors.New("未登录")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrUserNotFound:         NotFound,
	ErrConversationNotFound: NotFound,
	ErrMessageNotFound:      NotFound,
	ErrMessageSelf:          Forbidden,
	ErrNotMember:            Forbidden,
	ErrForbidden:            Forbidden,
	ErrMessageDeleted:       Forbidden,
	ErrMessageEmpty:         BadRequest,
	ErrMessageTooLong:       BadRequest,
	ErrEmojiInvalid:         BadRequest,
	ErrConcurrentUpdate:     Conflict,
	UnauthorizedError:       Unauthorized,
	UnExpectedError:         InternalServerError,
}
