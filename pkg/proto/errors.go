package proto

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed 连接已关闭后继续使用
	ErrConnectionClosed = errors.New("cdp: connection closed")
	// ErrSessionClosed 会话已销毁后继续发送
	ErrSessionClosed = errors.New("cdp: session closed")
	// ErrInvalidArgument 参数非法：未知错误码、异步操作定义不合规等
	ErrInvalidArgument = errors.New("cdp: invalid argument")
)

// ProtocolError 服务端返回的协议级错误
type ProtocolError struct {
	Method  string
	Code    int64
	Message string
	Data    string
}

func (e *ProtocolError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("protocol error (%s): %s (%d) %s", e.Method, e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("protocol error (%s): %s (%d)", e.Method, e.Message, e.Code)
}
