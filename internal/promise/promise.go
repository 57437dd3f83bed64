package promise

import (
	"context"
	"sync"
)

// Promise 单次赋值的异步结果容器。Resolve/Reject 只有第一次生效，
// 之后的调用全部丢弃；Wait 阻塞直到完成或 ctx 取消。
type Promise[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// New 创建未完成的 Promise
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolved 创建已携带结果的 Promise
func Resolved[T any](v T) *Promise[T] {
	p := New[T]()
	p.Resolve(v)
	return p
}

// Rejected 创建已携带错误的 Promise
func Rejected[T any](err error) *Promise[T] {
	p := New[T]()
	p.Reject(err)
	return p
}

// Resolve 写入结果，返回本次调用是否生效
func (p *Promise[T]) Resolve(v T) bool {
	ok := false
	p.once.Do(func() {
		p.val = v
		close(p.done)
		ok = true
	})
	return ok
}

// Reject 写入错误，返回本次调用是否生效
func (p *Promise[T]) Reject(err error) bool {
	ok := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		ok = true
	})
	return ok
}

// Wait 阻塞等待结果，失败时原样返回 Reject 写入的错误
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved 查询是否已完成，不阻塞
func (p *Promise[T]) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Done 完成信号，可用于 select
func (p *Promise[T]) Done() <-chan struct{} { return p.done }
