package transport

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"cdpdriver/internal/logger"
	"cdpdriver/pkg/proto"
)

// Transport 双工帧通道抽象：一帧一条 JSON 消息，不含任何协议语义。
// 抽象成接口便于在测试中用内存管道替代真实 WebSocket。
type Transport interface {
	// Send 发送一帧
	Send(ctx context.Context, frame []byte) error
	// Recv 入站帧流，通道关闭即对端断开
	Recv() <-chan []byte
	// Close 关闭通道，幂等
	Close() error
}

type wsTransport struct {
	conn    *websocket.Conn
	in      chan []byte
	log     logger.Logger
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial 建立到 DevTools 端点的 WebSocket 连接
func Dial(ctx context.Context, url string, l logger.Logger) (Transport, error) {
	if l == nil {
		l = logger.NewNop()
	}
	dialer := websocket.Dialer{
		// CDP 单帧可能很大，放大读写缓冲
		ReadBufferSize:  1 << 20,
		WriteBufferSize: 1 << 20,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	t := &wsTransport{
		conn:   conn,
		in:     make(chan []byte, 256),
		log:    l,
		closed: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *wsTransport) readLoop() {
	defer close(t.in)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.closed:
			default:
				t.log.Debug("传输层读取结束", "error", err)
			}
			return
		}
		select {
		case t.in <- data:
		case <-t.closed:
			return
		}
	}
}

func (t *wsTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return proto.ErrConnectionClosed
	default:
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Recv() <-chan []byte { return t.in }

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}
