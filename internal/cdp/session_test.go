package cdp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpdriver/internal/transport"
	"cdpdriver/pkg/proto"
)

// attachSession 建立连接并通过 attachedToTarget 事件注册会话
func attachSession(t *testing.T, reply func(c command) [][]byte) (*Connection, *Session, *fakePeer) {
	t.Helper()
	client, server := transport.NewPipe()
	conn := Connect(client, nil)
	t.Cleanup(func() { _ = conn.Close() })
	peer := startPeer(server, reply)

	peer.emit(t, `{"method":"Target.attachedToTarget","params":{"sessionId":"S1","targetInfo":{"targetId":"T1","type":"page"}}}`)
	_, err := conn.Send(testCtx(t), "Browser.getVersion", nil)
	require.NoError(t, err)

	s, ok := conn.Session("S1")
	require.True(t, ok)
	return conn, s, peer
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	_, s, peer := attachSession(t, okReply)

	var order []int
	done := make(chan struct{})
	s.On("Custom.event", func(json.RawMessage) { order = append(order, 1) })
	s.On("Custom.event", func(json.RawMessage) { order = append(order, 2) })
	s.On("Custom.event", func(json.RawMessage) { order = append(order, 3); close(done) })

	peer.emit(t, `{"method":"Custom.event","sessionId":"S1","params":{}}`)
	<-done
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	_, s, peer := attachSession(t, okReply)

	var order []int
	done := make(chan struct{})
	s.On("Custom.event", func(json.RawMessage) { order = append(order, 1) })
	s.On("Custom.event", func(json.RawMessage) { panic("listener boom") })
	s.On("Custom.event", func(json.RawMessage) { order = append(order, 3); close(done) })

	peer.emit(t, `{"method":"Custom.event","sessionId":"S1","params":{}}`)
	<-done
	// 第二个监听器 panic 不影响其余监听器
	assert.Equal(t, []int{1, 3}, order)

	// 分发循环不受影响
	_, err := s.Send(testCtx(t), "Page.enable", nil)
	require.NoError(t, err)
}

func TestSendAfterDetachFails(t *testing.T) {
	conn, s, peer := attachSession(t, okReply)

	peer.emit(t, `{"method":"Target.detachedFromTarget","params":{"sessionId":"S1"}}`)
	_, err := conn.Send(testCtx(t), "Browser.getVersion", nil)
	require.NoError(t, err)

	assert.True(t, s.Closed())
	_, err = s.Send(testCtx(t), "Page.enable", nil)
	assert.ErrorIs(t, err, proto.ErrSessionClosed)

	_, ok := conn.Session("S1")
	assert.False(t, ok)
}

func TestConnectionCloseDestroysSessions(t *testing.T) {
	conn, s, _ := attachSession(t, okReply)
	require.NoError(t, conn.Close())

	assert.True(t, s.Closed())
	_, err := s.Send(testCtx(t), "Page.enable", nil)
	assert.ErrorIs(t, err, proto.ErrSessionClosed)
}

func TestDetach(t *testing.T) {
	_, s, peer := attachSession(t, okReply)
	require.NoError(t, s.Detach(testCtx(t)))

	methods := peer.methods()
	assert.Contains(t, methods, "Target.detachFromTarget")
}
