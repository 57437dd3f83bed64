package network

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"cdpdriver/internal/cdp"
	"cdpdriver/internal/logger"
)

// EventType 网络事件类型
type EventType string

const (
	EventRequest         EventType = "request"
	EventResponse        EventType = "response"
	EventRequestFailed   EventType = "request_failed"
	EventRequestFinished EventType = "request_finished"
)

// Event 对外发布的网络事件
type Event struct {
	Type    EventType
	Request *Request
}

// RecordInfo 请求到达终态时落库的记录
type RecordInfo struct {
	RequestID    string
	URL          string
	Method       string
	ResourceType string
	Status       int
	Failure      string
	FromCache    bool
	RedirectHops int
}

// Recorder 流量落库接口，由 storage 层实现
type Recorder interface {
	Record(info RecordInfo) error
}

// Manager 消费 Network/Fetch 事件流，维护在途请求表并
// 构建重定向链，对外暴露拦截决定 API。
type Manager struct {
	session *cdp.Session
	log     logger.Logger
	rec     Recorder

	mu       sync.Mutex
	requests map[string]*Request
	// Fetch.requestPaused 可能先于 requestWillBeSent 到达，
	// 先暂存 networkId 到拦截 id 的映射
	pausedEarly map[string]string

	intercepting atomic.Bool
	events       chan Event
}

// NewManager 创建网络管理器并在会话上注册事件监听
func NewManager(s *cdp.Session, rec Recorder, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	m := &Manager{
		session:     s,
		log:         l,
		rec:         rec,
		requests:    make(map[string]*Request),
		pausedEarly: make(map[string]string),
		events:      make(chan Event, 256),
	}
	s.On("Network.requestWillBeSent", m.onRequestWillBeSent)
	s.On("Network.responseReceived", m.onResponseReceived)
	s.On("Network.loadingFailed", m.onLoadingFailed)
	s.On("Network.loadingFinished", m.onLoadingFinished)
	s.On("Fetch.requestPaused", m.onRequestPaused)
	return m
}

// Events 网络事件流。分发路径上的投递不阻塞，溢出即丢弃。
func (m *Manager) Events() <-chan Event { return m.events }

// Enable 启用 Network 域事件上报
func (m *Manager) Enable(ctx context.Context) error {
	_, err := m.session.Send(ctx, "Network.enable", nil)
	return err
}

// SetRequestInterception 启用或关闭请求拦截
func (m *Manager) SetRequestInterception(ctx context.Context, enabled bool) error {
	if enabled {
		_, err := m.session.Send(ctx, "Fetch.enable", map[string]any{
			"patterns": []map[string]any{{"urlPattern": "*"}},
		})
		if err != nil {
			return err
		}
		m.intercepting.Store(true)
		return nil
	}
	m.intercepting.Store(false)
	_, err := m.session.Send(ctx, "Fetch.disable", nil)
	return err
}

// SetCacheDisabled 开关浏览器缓存
func (m *Manager) SetCacheDisabled(ctx context.Context, disabled bool) error {
	_, err := m.session.Send(ctx, "Network.setCacheDisabled", map[string]any{
		"cacheDisabled": disabled,
	})
	return err
}

func (m *Manager) interceptionEnabled() bool { return m.intercepting.Load() }

// Request 按协议 id 查询在途请求
func (m *Manager) Request(id string) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	return r, ok
}

func (m *Manager) onRequestWillBeSent(params json.RawMessage) {
	requestID := gjson.GetBytes(params, "requestId").String()
	loaderID := gjson.GetBytes(params, "loaderId").String()
	resourceType := gjson.GetBytes(params, "type").String()
	redirect := gjson.GetBytes(params, "redirectResponse")

	req := &Request{
		mgr:          m,
		id:           requestID,
		url:          gjson.GetBytes(params, "request.url").String(),
		method:       gjson.GetBytes(params, "request.method").String(),
		headers:      headerFromJSON(json.RawMessage(gjson.GetBytes(params, "request.headers").Raw)),
		postData:     gjson.GetBytes(params, "request.postData").String(),
		resourceType: resourceType,
		frameID:      gjson.GetBytes(params, "frameId").String(),
		isNavigation: requestID == loaderID && resourceType == "Document",
	}

	m.mu.Lock()
	if prev, ok := m.requests[requestID]; ok && redirect.Exists() {
		// 同一 requestId 带 redirectResponse 再次出现：上一跳
		// 被重定向取代，进入新请求的重定向链
		resp := m.responseFrom(prev, redirect)
		if prev.setResponse(resp) {
			req.redirectChain = append(append([]*Request(nil), prev.redirectChain...), prev)
		}
	}
	if fetchID, ok := m.pausedEarly[requestID]; ok {
		delete(m.pausedEarly, requestID)
		req.interceptionID = fetchID
	}
	m.requests[requestID] = req
	m.mu.Unlock()

	if len(req.redirectChain) > 0 {
		prev := req.redirectChain[len(req.redirectChain)-1]
		m.emit(Event{Type: EventResponse, Request: prev})
		m.emit(Event{Type: EventRequestFinished, Request: prev})
	}
	m.emit(Event{Type: EventRequest, Request: req})
}

func (m *Manager) onRequestPaused(params json.RawMessage) {
	fetchID := gjson.GetBytes(params, "requestId").String()
	networkID := gjson.GetBytes(params, "networkId").String()
	if networkID == "" {
		networkID = fetchID
	}
	m.mu.Lock()
	req, ok := m.requests[networkID]
	if !ok {
		m.pausedEarly[networkID] = fetchID
	}
	m.mu.Unlock()
	if ok {
		req.setInterceptionID(fetchID)
	}
}

func (m *Manager) onResponseReceived(params json.RawMessage) {
	requestID := gjson.GetBytes(params, "requestId").String()
	m.mu.Lock()
	req, ok := m.requests[requestID]
	m.mu.Unlock()
	if !ok {
		// 导航之后事件可能迟到，容忍并记录
		m.log.Debug("响应找不到对应的在途请求", "requestId", requestID)
		return
	}
	resp := m.responseFrom(req, gjson.GetBytes(params, "response"))
	if !req.setResponse(resp) {
		m.log.Debug("请求已到终态，丢弃后到的响应", "requestId", requestID)
		return
	}
	m.emit(Event{Type: EventResponse, Request: req})
}

func (m *Manager) onLoadingFailed(params json.RawMessage) {
	requestID := gjson.GetBytes(params, "requestId").String()
	errorText := gjson.GetBytes(params, "errorText").String()
	m.mu.Lock()
	req, ok := m.requests[requestID]
	delete(m.requests, requestID)
	m.mu.Unlock()
	if !ok {
		m.log.Debug("失败事件找不到对应的在途请求", "requestId", requestID)
		return
	}
	if !req.setFailure(errorText) {
		m.log.Debug("请求已到终态，丢弃后到的失败事件", "requestId", requestID)
		return
	}
	m.emit(Event{Type: EventRequestFailed, Request: req})
	m.record(req)
}

func (m *Manager) onLoadingFinished(params json.RawMessage) {
	requestID := gjson.GetBytes(params, "requestId").String()
	m.mu.Lock()
	req, ok := m.requests[requestID]
	delete(m.requests, requestID)
	m.mu.Unlock()
	if !ok {
		return
	}
	m.emit(Event{Type: EventRequestFinished, Request: req})
	m.record(req)
}

// responseFrom 从协议响应对象构建 Response
func (m *Manager) responseFrom(req *Request, v gjson.Result) *Response {
	return &Response{
		request:    req,
		status:     int(v.Get("status").Int()),
		statusText: v.Get("statusText").String(),
		headers:    headerFromJSON(json.RawMessage(v.Get("headers").Raw)),
		fromCache:  v.Get("fromDiskCache").Bool() || v.Get("fromPrefetchCache").Bool(),
	}
}

// emit 不阻塞分发路径：订阅方跟不上时丢弃并记录
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.Debug("事件缓冲已满，丢弃网络事件", "type", ev.Type, "requestId", ev.Request.id)
	}
}

// record 请求到达终态后异步落库，失败只记日志
func (m *Manager) record(req *Request) {
	if m.rec == nil {
		return
	}
	info := RecordInfo{
		RequestID:    req.id,
		URL:          req.url,
		Method:       req.method,
		ResourceType: req.resourceType,
		Failure:      req.Failure(),
		RedirectHops: len(req.redirectChain),
	}
	if resp := req.Response(); resp != nil {
		info.Status = resp.status
		info.FromCache = resp.fromCache
	}
	go func() {
		if err := m.rec.Record(info); err != nil {
			m.log.Warn("流量记录写入失败", "requestId", info.RequestID, "error", err)
		}
	}()
}
