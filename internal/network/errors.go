package network

import "errors"

var (
	// ErrInterceptionNotEnabled 未启用请求拦截时做出拦截决定
	ErrInterceptionNotEnabled = errors.New("network: request interception is not enabled")
	// ErrAlreadyHandled 同一请求的拦截决定只接受一次
	ErrAlreadyHandled = errors.New("network: request is already handled")
)

// ErrorReason 中断请求时使用的网络错误原因，取值固定为
// 协议 Network.ErrorReason 枚举
type ErrorReason string

const (
	ErrorFailed               ErrorReason = "Failed"
	ErrorAborted              ErrorReason = "Aborted"
	ErrorTimedOut             ErrorReason = "TimedOut"
	ErrorAccessDenied         ErrorReason = "AccessDenied"
	ErrorConnectionClosed     ErrorReason = "ConnectionClosed"
	ErrorConnectionReset      ErrorReason = "ConnectionReset"
	ErrorConnectionRefused    ErrorReason = "ConnectionRefused"
	ErrorConnectionAborted    ErrorReason = "ConnectionAborted"
	ErrorConnectionFailed     ErrorReason = "ConnectionFailed"
	ErrorNameNotResolved      ErrorReason = "NameNotResolved"
	ErrorInternetDisconnected ErrorReason = "InternetDisconnected"
	ErrorAddressUnreachable   ErrorReason = "AddressUnreachable"
	ErrorBlockedByClient      ErrorReason = "BlockedByClient"
	ErrorBlockedByResponse    ErrorReason = "BlockedByResponse"
)

var errorReasons = map[ErrorReason]struct{}{
	ErrorFailed:               {},
	ErrorAborted:              {},
	ErrorTimedOut:             {},
	ErrorAccessDenied:         {},
	ErrorConnectionClosed:     {},
	ErrorConnectionReset:      {},
	ErrorConnectionRefused:    {},
	ErrorConnectionAborted:    {},
	ErrorConnectionFailed:     {},
	ErrorNameNotResolved:      {},
	ErrorInternetDisconnected: {},
	ErrorAddressUnreachable:   {},
	ErrorBlockedByClient:      {},
	ErrorBlockedByResponse:    {},
}
