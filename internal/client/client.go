// Package client 在协议会话之上提供页面级操作门面。
// 每个操作的业务逻辑只以同步形式定义一次，异步调用约定由
// dispatch 表在构造期派生。
package client

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"cdpdriver/internal/cdp"
	"cdpdriver/internal/dispatch"
	"cdpdriver/internal/logger"
	"cdpdriver/internal/network"
	"cdpdriver/internal/promise"
)

// Client 页面级操作门面
type Client struct {
	session *cdp.Session
	network *network.Manager
	ops     *dispatch.Table
	log     logger.Logger
}

// New 创建门面并注册全部操作及其异步同胞
func New(s *cdp.Session, nm *network.Manager, l logger.Logger) *Client {
	if l == nil {
		l = logger.NewNop()
	}
	c := &Client{session: s, network: nm, ops: dispatch.NewTable(l), log: l}

	c.ops.MustDefine("navigate", c.opNavigate)
	c.ops.MustDefine("reload", c.opReload)
	c.ops.MustDefine("set_cache_disabled", c.opSetCacheDisabled)
	c.ops.MustDefine("set_request_interception", c.opSetRequestInterception)

	c.ops.MustDefineAsync("async_navigate", true)
	c.ops.MustDefineAsync("async_reload", true)
	c.ops.MustDefineAsync("async_set_cache_disabled", true)
	c.ops.MustDefineAsync("async_set_request_interception", true)

	return c
}

// Ops 操作表，供按名调用
func (c *Client) Ops() *dispatch.Table { return c.ops }

func (c *Client) opNavigate(ctx context.Context, args []any) (any, error) {
	url, ok := stringArg(args, 0)
	if !ok {
		return nil, fmt.Errorf("navigate: 需要 url 参数")
	}
	result, err := c.session.Send(ctx, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return nil, err
	}
	if txt := gjson.GetBytes(result, "errorText").String(); txt != "" {
		return nil, fmt.Errorf("navigate %s: %s", url, txt)
	}
	return gjson.GetBytes(result, "frameId").String(), nil
}

func (c *Client) opReload(ctx context.Context, args []any) (any, error) {
	// 可选参数：是否绕过缓存，缺省 false
	ignoreCache := false
	if len(args) > 0 {
		if v, ok := args[0].(bool); ok {
			ignoreCache = v
		}
	}
	_, err := c.session.Send(ctx, "Page.reload", map[string]any{"ignoreCache": ignoreCache})
	return nil, err
}

func (c *Client) opSetCacheDisabled(ctx context.Context, args []any) (any, error) {
	disabled, ok := boolArg(args, 0)
	if !ok {
		return nil, fmt.Errorf("set_cache_disabled: 需要 bool 参数")
	}
	return nil, c.network.SetCacheDisabled(ctx, disabled)
}

func (c *Client) opSetRequestInterception(ctx context.Context, args []any) (any, error) {
	enabled, ok := boolArg(args, 0)
	if !ok {
		return nil, fmt.Errorf("set_request_interception: 需要 bool 参数")
	}
	return nil, c.network.SetRequestInterception(ctx, enabled)
}

// Navigate 导航到指定地址，返回帧 id
func (c *Client) Navigate(ctx context.Context, url string) (string, error) {
	v, err := c.ops.Invoke(ctx, "navigate", url)
	if err != nil {
		return "", err
	}
	frameID, _ := v.(string)
	return frameID, nil
}

// NavigateAsync Navigate 的异步调用约定
func (c *Client) NavigateAsync(ctx context.Context, url string) *promise.Promise[any] {
	v, _ := c.ops.Invoke(ctx, "async_navigate", url)
	return v.(*promise.Promise[any])
}

// Reload 重新加载当前页面
func (c *Client) Reload(ctx context.Context, ignoreCache bool) error {
	_, err := c.ops.Invoke(ctx, "reload", ignoreCache)
	return err
}

// ReloadAsync Reload 的异步调用约定
func (c *Client) ReloadAsync(ctx context.Context, ignoreCache bool) *promise.Promise[any] {
	v, _ := c.ops.Invoke(ctx, "async_reload", ignoreCache)
	return v.(*promise.Promise[any])
}

// SetRequestInterception 开关请求拦截
func (c *Client) SetRequestInterception(ctx context.Context, enabled bool) error {
	_, err := c.ops.Invoke(ctx, "set_request_interception", enabled)
	return err
}

// SetCacheDisabled 开关浏览器缓存
func (c *Client) SetCacheDisabled(ctx context.Context, disabled bool) error {
	_, err := c.ops.Invoke(ctx, "set_cache_disabled", disabled)
	return err
}

func stringArg(args []any, i int) (string, bool) {
	if len(args) <= i {
		return "", false
	}
	v, ok := args[i].(string)
	return v, ok
}

func boolArg(args []any, i int) (bool, bool) {
	if len(args) <= i {
		return false, false
	}
	v, ok := args[i].(bool)
	return v, ok
}
