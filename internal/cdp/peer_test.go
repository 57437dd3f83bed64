package cdp

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"cdpdriver/internal/transport"
)

// command 对端收到的一条命令帧
type command struct {
	ID        int64
	Method    string
	SessionID string
	Frame     []byte
}

// fakePeer 扮演协议对端：记录收到的命令并按 reply 回包
type fakePeer struct {
	tr *transport.Pipe

	mu   sync.Mutex
	cmds []command
}

// startPeer 启动对端读取循环。reply 为 nil 时只记录不回包。
func startPeer(tr *transport.Pipe, reply func(c command) [][]byte) *fakePeer {
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
			if reply != nil {
				for _, out := range reply(c) {
					_ = tr.Send(context.Background(), out)
				}
			}
		}
	}()
	return p
}

// okReply 对任何命令回空 result
func okReply(c command) [][]byte {
	return [][]byte{[]byte(fmt.Sprintf(`{"id":%d,"result":{}}`, c.ID))}
}

// emit 从对端注入一帧事件
func (p *fakePeer) emit(t *testing.T, frame string) {
	t.Helper()
	require.NoError(t, p.tr.Send(context.Background(), []byte(frame)))
}

// commands 已收到命令的快照
func (p *fakePeer) commands() []command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]command(nil), p.cmds...)
}

// methods 已收到命令的方法名列表
func (p *fakePeer) methods() []string {
	var out []string
	for _, c := range p.commands() {
		out = append(out, c.Method)
	}
	return out
}
