package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"cdpdriver/internal/promise"
	"cdpdriver/pkg/proto"
)

// Session 单个附加目标的逻辑通道。发送委托给 Connection 并
// 携带自身 sessionId；事件按方法名分发给已注册的监听器。
type Session struct {
	conn     *Connection
	id       string
	targetID string

	mu        sync.Mutex
	listeners map[string][]EventHandler

	closed atomic.Bool
}

func newSession(c *Connection, id, targetID string) *Session {
	return &Session{
		conn:      c,
		id:        id,
		targetID:  targetID,
		listeners: make(map[string][]EventHandler),
	}
}

// ID 会话标识
func (s *Session) ID() string { return s.id }

// TargetID 所附加目标的标识
func (s *Session) TargetID() string { return s.targetID }

// Closed 会话是否已销毁
func (s *Session) Closed() bool { return s.closed.Load() }

// Send 同步调用，命令打上本会话的 sessionId
func (s *Session) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return s.SendAsync(method, params).Wait(ctx)
}

// SendAsync 异步调用，立即返回 Promise；会话销毁后拒绝
func (s *Session) SendAsync(method string, params any) *promise.Promise[json.RawMessage] {
	if s.closed.Load() {
		return promise.Rejected[json.RawMessage](fmt.Errorf("%s: 会话 %s: %w", method, s.id, proto.ErrSessionClosed))
	}
	return s.conn.sendAsync(method, params, s.id)
}

// On 注册事件监听器，按注册顺序依次调用
func (s *Session) On(method string, h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[method] = append(s.listeners[method], h)
}

// dispatch 在连接的分发路径上投递事件。单个监听器 panic
// 被隔离记录，不影响其余监听器和分发循环。
func (s *Session) dispatch(method string, params json.RawMessage) {
	s.mu.Lock()
	hs := append([]EventHandler(nil), s.listeners[method]...)
	s.mu.Unlock()
	for _, h := range hs {
		invoke(s.conn.log, method, h, params)
	}
}

// Detach 主动从目标分离
func (s *Session) Detach(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("会话 %s: %w", s.id, proto.ErrSessionClosed)
	}
	_, err := s.conn.Send(ctx, "Target.detachFromTarget", map[string]any{"sessionId": s.id})
	return err
}

func (s *Session) markClosed() {
	s.closed.Store(true)
}
