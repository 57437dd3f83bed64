package transport

import (
	"context"
	"sync"

	"cdpdriver/pkg/proto"
)

// Pipe 内存双工管道，用于在测试中扮演协议对端
type Pipe struct {
	mu     sync.Mutex
	closed bool
	in     chan []byte
	peer   *Pipe
}

// NewPipe 创建一对互联端点：一端 Send 的帧从另一端 Recv 出来
func NewPipe() (*Pipe, *Pipe) {
	a := &Pipe{in: make(chan []byte, 256)}
	b := &Pipe{in: make(chan []byte, 256)}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *Pipe) Send(_ context.Context, frame []byte) error {
	return p.peer.deliver(frame)
}

func (p *Pipe) deliver(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return proto.ErrConnectionClosed
	}
	p.in <- frame
	return nil
}

func (p *Pipe) Recv() <-chan []byte { return p.in }

// Close 关闭两端，模拟连接断开
func (p *Pipe) Close() error {
	p.shut()
	p.peer.shut()
	return nil
}

func (p *Pipe) shut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.in)
}
