package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"cdpdriver/internal/logger"
	"cdpdriver/internal/promise"
	"cdpdriver/internal/transport"
	"cdpdriver/pkg/proto"
)

// EventHandler 事件监听回调，参数为事件的原始 params
type EventHandler func(params json.RawMessage)

type pendingCall struct {
	method string
	p      *promise.Promise[json.RawMessage]
}

// Connection 协议连接：分配消息 id、登记未完成调用、
// 按 sessionId 路由入站消息。所有会话共享同一条连接。
type Connection struct {
	t      transport.Transport
	log    logger.Logger
	lastID atomic.Int64

	mu        sync.Mutex
	closed    bool
	pending   map[int64]pendingCall
	sessions  map[string]*Session
	listeners map[string][]EventHandler

	closeOnce sync.Once
}

// Connect 在已建立的传输层上启动协议连接
func Connect(t transport.Transport, l logger.Logger) *Connection {
	if l == nil {
		l = logger.NewNop()
	}
	c := &Connection{
		t:         t,
		log:       l,
		pending:   make(map[int64]pendingCall),
		sessions:  make(map[string]*Session),
		listeners: make(map[string][]EventHandler),
	}
	go c.loop()
	return c
}

// Send 同步调用：发送命令并阻塞等待应答
func (c *Connection) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.SendAsync(method, params).Wait(ctx)
}

// SendAsync 异步调用：立即返回承载应答的 Promise
func (c *Connection) SendAsync(method string, params any) *promise.Promise[json.RawMessage] {
	return c.sendAsync(method, params, "")
}

func (c *Connection) sendAsync(method string, params any, sessionID string) *promise.Promise[json.RawMessage] {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return promise.Rejected[json.RawMessage](fmt.Errorf("%s: 编码参数: %w", method, err))
		}
		raw = b
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return promise.Rejected[json.RawMessage](fmt.Errorf("%s: %w", method, proto.ErrConnectionClosed))
	}
	id := c.lastID.Add(1)
	p := promise.New[json.RawMessage]()
	c.pending[id] = pendingCall{method: method, p: p}
	c.mu.Unlock()

	frame, _ := json.Marshal(proto.Message{ID: id, SessionID: sessionID, Method: method, Params: raw})
	c.log.Debug("发送命令", "id", id, "method", method, "sessionId", sessionID)
	if err := c.t.Send(context.Background(), frame); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		p.Reject(fmt.Errorf("%s: %w", method, err))
	}
	return p
}

// On 注册连接级事件监听（无 sessionId 的事件）
func (c *Connection) On(method string, h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[method] = append(c.listeners[method], h)
}

// loop 单一入站分发路径。传输层 EOF 等价于显式 Close。
func (c *Connection) loop() {
	for frame := range c.t.Recv() {
		c.dispatch(frame)
	}
	_ = c.Close()
}

// dispatch 将一帧入站消息分发到对应的未完成调用或会话。
// 先用 gjson 探查 id/method/sessionId，命中后才做完整解码。
func (c *Connection) dispatch(frame []byte) {
	if id := gjson.GetBytes(frame, "id"); id.Exists() {
		c.mu.Lock()
		call, ok := c.pending[id.Int()]
		if ok {
			delete(c.pending, id.Int())
		}
		c.mu.Unlock()
		if !ok {
			// 对端可能在超时/关闭后才回包，直接丢弃
			c.log.Debug("丢弃无人认领的应答", "id", id.Int())
			return
		}
		var msg proto.Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			call.p.Reject(fmt.Errorf("%s: 解码应答: %w", call.method, err))
			return
		}
		if msg.Error != nil {
			call.p.Reject(&proto.ProtocolError{
				Method:  call.method,
				Code:    msg.Error.Code,
				Message: msg.Error.Message,
				Data:    msg.Error.Data,
			})
			return
		}
		call.p.Resolve(msg.Result)
		return
	}

	method := gjson.GetBytes(frame, "method").String()
	sessionID := gjson.GetBytes(frame, "sessionId").String()
	params := json.RawMessage(gjson.GetBytes(frame, "params").Raw)

	switch method {
	case "Target.attachedToTarget":
		sid := gjson.GetBytes(params, "sessionId").String()
		tid := gjson.GetBytes(params, "targetInfo.targetId").String()
		c.createSession(sid, tid)
	case "Target.detachedFromTarget":
		sid := gjson.GetBytes(params, "sessionId").String()
		if sid == "" {
			sid = sessionID
		}
		c.destroySession(sid)
	}

	if sessionID != "" {
		c.mu.Lock()
		s := c.sessions[sessionID]
		c.mu.Unlock()
		if s == nil {
			c.log.Warn("丢弃未知会话的事件", "sessionId", sessionID, "method", method)
			return
		}
		s.dispatch(method, params)
		return
	}
	c.emit(method, params)
}

func (c *Connection) emit(method string, params json.RawMessage) {
	c.mu.Lock()
	hs := append([]EventHandler(nil), c.listeners[method]...)
	c.mu.Unlock()
	for _, h := range hs {
		invoke(c.log, method, h, params)
	}
}

func (c *Connection) createSession(sessionID, targetID string) *Session {
	if sessionID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		return s
	}
	s := newSession(c, sessionID, targetID)
	c.sessions[sessionID] = s
	c.log.Info("创建协议会话", "sessionId", sessionID, "targetId", targetID)
	return s
}

func (c *Connection) destroySession(sessionID string) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	if s != nil {
		s.markClosed()
		c.log.Info("销毁协议会话", "sessionId", sessionID)
	}
}

// Session 查询已注册的会话
func (c *Connection) Session(sessionID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	return s, ok
}

// AttachToTarget 附加目标并返回扁平模式下的新会话
func (c *Connection) AttachToTarget(ctx context.Context, targetID string) (*Session, error) {
	result, err := c.Send(ctx, "Target.attachToTarget", map[string]any{
		"targetId": targetID,
		"flatten":  true,
	})
	if err != nil {
		return nil, err
	}
	sid := gjson.GetBytes(result, "sessionId").String()
	if sid == "" {
		return nil, fmt.Errorf("Target.attachToTarget: 应答缺少 sessionId")
	}
	// 事件可能先于应答到达并已注册，createSession 幂等
	return c.createSession(sid, targetID), nil
}

// Close 关闭连接：拒绝所有未完成调用并销毁全部会话，幂等
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		pend := c.pending
		c.pending = make(map[int64]pendingCall)
		sess := c.sessions
		c.sessions = make(map[string]*Session)
		c.mu.Unlock()

		for id, call := range pend {
			c.log.Debug("连接关闭，拒绝未完成调用", "id", id, "method", call.method)
			call.p.Reject(fmt.Errorf("%s: %w", call.method, proto.ErrConnectionClosed))
		}
		for _, s := range sess {
			s.markClosed()
		}
		_ = c.t.Close()
	})
	return nil
}

// invoke 调用单个监听器并隔离其 panic，保证分发不被阻断
func invoke(l logger.Logger, method string, h EventHandler, params json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			l.Error("事件监听器 panic", "method", method, "panic", r)
		}
	}()
	h(params)
}
