package network

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"cdpdriver/internal/cdp"
	"cdpdriver/internal/transport"
)

// command 对端收到的一条命令帧
type command struct {
	ID        int64
	Method    string
	Frame     []byte
	SessionID string
}

// fakePeer 扮演协议对端：记录命令、回空 result、可注入事件
type fakePeer struct {
	tr *transport.Pipe

	mu   sync.Mutex
	cmds []command
}

func startPeer(tr *transport.Pipe) *fakePeer {
	p := &fakePeer{tr: tr}
	go func() {
		for frame := range tr.Recv() {
			c := command{
				ID:        gjson.GetBytes(frame, "id").Int(),
				Method:    gjson.GetBytes(frame, "method").String(),
				SessionID: gjson.GetBytes(frame, "sessionId").String(),
				Frame:     append([]byte(nil), frame...),
			}
			p.mu.Lock()
			p.cmds = append(p.cmds, c)
			p.mu.Unlock()
			_ = tr.Send(context.Background(), []byte(fmt.Sprintf(`{"id":%d,"result":{}}`, c.ID)))
		}
	}()
	return p
}

func (p *fakePeer) commands() []command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]command(nil), p.cmds...)
}

// decisions 已收到的拦截决定命令（Fetch.enable/disable 除外）
func (p *fakePeer) decisions() []command {
	var out []command
	for _, c := range p.commands() {
		switch c.Method {
		case "Fetch.continueRequest", "Fetch.fulfillRequest", "Fetch.failRequest":
			out = append(out, c)
		}
	}
	return out
}

// harness 完整的连接/会话/网络管理器测试装置
type harness struct {
	t    *testing.T
	conn *cdp.Connection
	sess *cdp.Session
	mgr  *Manager
	peer *fakePeer
}

func newHarness(t *testing.T, rec Recorder) *harness {
	t.Helper()
	client, server := transport.NewPipe()
	conn := cdp.Connect(client, nil)
	t.Cleanup(func() { _ = conn.Close() })
	peer := startPeer(server)

	require.NoError(t, peer.tr.Send(context.Background(),
		[]byte(`{"method":"Target.attachedToTarget","params":{"sessionId":"S1","targetInfo":{"targetId":"T1","type":"page"}}}`)))

	h := &harness{t: t, conn: conn, peer: peer}
	h.barrier()
	sess, ok := conn.Session("S1")
	require.True(t, ok)
	h.sess = sess
	h.mgr = NewManager(sess, rec, nil)
	return h
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

// barrier 一次命令往返，保证此前注入的事件都已分发
func (h *harness) barrier() {
	h.t.Helper()
	_, err := h.conn.Send(h.ctx(), "Browser.getVersion", nil)
	require.NoError(h.t, err)
}

// event 注入一条会话事件并等待分发完成
func (h *harness) event(frame string) {
	h.t.Helper()
	require.NoError(h.t, h.peer.tr.Send(context.Background(), []byte(frame)))
	h.barrier()
}

func (h *harness) requestWillBeSent(id, url string) {
	h.event(fmt.Sprintf(`{"method":"Network.requestWillBeSent","sessionId":"S1","params":{
		"requestId":%q,"loaderId":%q,"frameId":"F1","type":"Document",
		"request":{"url":%q,"method":"GET","headers":{"User-Agent":"cdpdriver-test"}}}}`, id, id, url))
}

func (h *harness) requestPaused(fetchID, networkID string) {
	h.event(fmt.Sprintf(`{"method":"Fetch.requestPaused","sessionId":"S1","params":{
		"requestId":%q,"networkId":%q}}`, fetchID, networkID))
}

func (h *harness) enableInterception() {
	h.t.Helper()
	require.NoError(h.t, h.mgr.SetRequestInterception(h.ctx(), true))
}

func (h *harness) request(id string) *Request {
	h.t.Helper()
	req, ok := h.mgr.Request(id)
	require.True(h.t, ok, "在途请求 %s 不存在", id)
	return req
}
