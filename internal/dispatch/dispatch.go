// Package dispatch 提供声明式的调用约定派生：同一份同步操作体
// 注册一次，即可派生出立即返回 Promise 的异步同名操作。
// 所有合法性校验都在定义期完成，调用期不再失败于定义问题。
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cdpdriver/internal/logger"
	"cdpdriver/internal/promise"
	"cdpdriver/pkg/proto"
)

// AsyncPrefix 异步操作名必须携带的标记前缀
const AsyncPrefix = "async_"

// Func 操作体：业务逻辑只以同步形式书写一次
type Func func(ctx context.Context, args []any) (any, error)

type op struct {
	name     string
	body     Func
	exported bool
	async    bool
}

// Table 操作描述符表，按名字派生并解析两种调用约定
type Table struct {
	log logger.Logger

	mu  sync.RWMutex
	ops map[string]op
}

// NewTable 创建空操作表
func NewTable(l logger.Logger) *Table {
	if l == nil {
		l = logger.NewNop()
	}
	return &Table{log: l, ops: make(map[string]op)}
}

// Define 注册同步操作。名字不得携带异步标记，也不得与已有操作冲突。
func (t *Table) Define(name string, body Func) error {
	if name == "" || body == nil {
		return fmt.Errorf("%w: 操作名与操作体不能为空", proto.ErrInvalidArgument)
	}
	if strings.HasPrefix(name, AsyncPrefix) {
		return fmt.Errorf("%w: 同步操作名 %q 不得携带 %q 前缀", proto.ErrInvalidArgument, name, AsyncPrefix)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ops[name]; ok {
		return fmt.Errorf("%w: 操作 %q 已存在", proto.ErrInvalidArgument, name)
	}
	t.ops[name] = op{name: name, body: body, exported: true}
	return nil
}

// DefineAsync 派生异步同胞操作。name 必须以 AsyncPrefix 开头，
// 去掉前缀后的原操作必须已定义，且 name 不得与任何已有操作
// （同步或异步）冲突；违反任何一条都在此处立即失败，不落表。
// exported 独立控制派生操作的可见性，与原操作无关。
func (t *Table) DefineAsync(name string, exported bool) error {
	if !strings.HasPrefix(name, AsyncPrefix) {
		return fmt.Errorf("%w: 异步操作名 %q 必须以 %q 开头", proto.ErrInvalidArgument, name, AsyncPrefix)
	}
	base := strings.TrimPrefix(name, AsyncPrefix)
	t.mu.Lock()
	defer t.mu.Unlock()
	src, ok := t.ops[base]
	if !ok || src.async {
		return fmt.Errorf("%w: 找不到可派生的同步操作 %q", proto.ErrInvalidArgument, base)
	}
	if _, ok := t.ops[name]; ok {
		return fmt.Errorf("%w: 操作 %q 已存在", proto.ErrInvalidArgument, name)
	}
	t.ops[name] = op{name: name, body: src.body, exported: exported, async: true}
	return nil
}

// MustDefine Define 的 panic 版本，用于静态注册
func (t *Table) MustDefine(name string, body Func) {
	if err := t.Define(name, body); err != nil {
		panic(err)
	}
}

// MustDefineAsync DefineAsync 的 panic 版本，用于静态注册
func (t *Table) MustDefineAsync(name string, exported bool) {
	if err := t.DefineAsync(name, exported); err != nil {
		panic(err)
	}
}

// Invoke 按名字调用操作。同步操作就地执行并返回结果；
// 异步操作把收到的参数原样转交给操作体、在新的 goroutine 上
// 执行，并立即返回 *promise.Promise[any]，其 Wait 重新抛出失败。
func (t *Table) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	t.mu.RLock()
	o, ok := t.ops[name]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: 未定义的操作 %q", proto.ErrInvalidArgument, name)
	}
	if !o.async {
		return o.body(ctx, args)
	}
	p := promise.New[any]()
	go func() {
		v, err := o.body(ctx, args)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p, nil
}

// Lookup 公开解析路径：只能看到 exported 的操作
func (t *Table) Lookup(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.ops[name]
	return ok && o.exported
}

// Names 返回全部公开操作名，便于诊断
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var names []string
	for n, o := range t.ops {
		if o.exported {
			names = append(names, n)
		}
	}
	return names
}
