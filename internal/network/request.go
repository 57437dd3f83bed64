package network

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/sjson"

	"cdpdriver/pkg/proto"
)

// Request 一次在途网络请求。字段只由 NetworkManager 在分发路径上
// 通过包内方法写入，外部只读。
type Request struct {
	mgr *Manager

	id             string // Network 域的 requestId
	interceptionID string // Fetch 域的 requestId，仅拦截启用时出现
	url            string
	method         string
	headers        Header
	postData       string
	resourceType   string
	frameID        string
	isNavigation   bool
	redirectChain  []*Request

	mu       sync.Mutex
	handled  bool
	response *Response
	failure  string
}

// ID 协议请求标识
func (r *Request) ID() string { return r.id }

// URL 请求地址
func (r *Request) URL() string { return r.url }

// Method HTTP 方法
func (r *Request) Method() string { return r.method }

// Headers 请求头（大小写不敏感）
func (r *Request) Headers() Header { return r.headers }

// PostData 请求体
func (r *Request) PostData() string { return r.postData }

// ResourceType 资源类型，如 Document、XHR
func (r *Request) ResourceType() string { return r.resourceType }

// FrameID 所属帧标识
func (r *Request) FrameID() string { return r.frameID }

// IsNavigationRequest 是否为导航请求
func (r *Request) IsNavigationRequest() bool { return r.isNavigation }

// RedirectChain 同一次导航中先于本请求的重定向历史，最旧在前。
// 返回副本，链上元素一经追加不再变化。
func (r *Request) RedirectChain() []*Request {
	return append([]*Request(nil), r.redirectChain...)
}

// Response 已关联的响应，未收到时为 nil
func (r *Request) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// Failure 加载失败原因，成功或未完成时为空串
func (r *Request) Failure() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

// InterceptionHandled 是否已做出拦截决定
func (r *Request) InterceptionHandled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handled
}

// setResponse 关联响应。response 与 failure 互斥，先到者生效。
func (r *Request) setResponse(resp *Response) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.response != nil || r.failure != "" {
		return false
	}
	r.response = resp
	return true
}

// setFailure 记录失败原因。与 setResponse 互斥，先到者生效。
func (r *Request) setFailure(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.response != nil || r.failure != "" {
		return false
	}
	r.failure = text
	return true
}

func (r *Request) setInterceptionID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interceptionID = id
}

func (r *Request) isDataURL() bool {
	return strings.HasPrefix(r.url, "data:")
}

// ContinueOverrides 放行请求时可选的覆盖项，零值字段不生效
type ContinueOverrides struct {
	URL      string
	Method   string
	PostData []byte
	Headers  Header
}

// RespondOptions 伪造响应的选项。Status 为 0 时默认 200。
type RespondOptions struct {
	Status      int
	Headers     Header
	ContentType string
	Body        []byte
}

// Continue 放行请求，可带覆盖项。对 data: 请求为空操作。
func (r *Request) Continue(ov *ContinueOverrides) error {
	if r.isDataURL() {
		return nil
	}
	params := []byte(`{}`)
	params, _ = sjson.SetBytes(params, "requestId", r.interceptionID)
	if ov != nil {
		var err error
		if ov.URL != "" {
			if params, err = sjson.SetBytes(params, "url", ov.URL); err != nil {
				return err
			}
		}
		if ov.Method != "" {
			if params, err = sjson.SetBytes(params, "method", ov.Method); err != nil {
				return err
			}
		}
		if ov.PostData != nil {
			if params, err = sjson.SetBytes(params, "postData", base64.StdEncoding.EncodeToString(ov.PostData)); err != nil {
				return err
			}
		}
		if ov.Headers != nil {
			if params, err = sjson.SetBytes(params, "headers", headerEntries(ov.Headers)); err != nil {
				return err
			}
		}
	}
	return r.commit("Fetch.continueRequest", params)
}

// Respond 用给定内容完成请求，浏览器不再发出真实请求。
// 状态默认 200 并取标准原因短语；提供 body 时自动补
// content-length，等于 body 的字节长度。
func (r *Request) Respond(opts RespondOptions) error {
	if r.isDataURL() {
		return nil
	}
	status := opts.Status
	if status == 0 {
		status = http.StatusOK
	}
	headers := opts.Headers.Clone()
	if headers == nil {
		headers = make(Header)
	}
	if opts.ContentType != "" {
		headers.Set("content-type", opts.ContentType)
	}
	if opts.Body != nil {
		headers.Set("content-length", strconv.Itoa(len(opts.Body)))
	}

	params := []byte(`{}`)
	params, _ = sjson.SetBytes(params, "requestId", r.interceptionID)
	params, _ = sjson.SetBytes(params, "responseCode", status)
	if phrase := http.StatusText(status); phrase != "" {
		params, _ = sjson.SetBytes(params, "responsePhrase", phrase)
	}
	params, _ = sjson.SetBytes(params, "responseHeaders", headerEntries(headers))
	if opts.Body != nil {
		params, _ = sjson.SetBytes(params, "body", base64.StdEncoding.EncodeToString(opts.Body))
	}
	return r.commit("Fetch.fulfillRequest", params)
}

// Abort 以给定错误原因中断请求。错误码在触碰 handled 标记之前
// 校验，不合法时请求保持未处理状态。
func (r *Request) Abort(reason ErrorReason) error {
	if r.isDataURL() {
		return nil
	}
	if _, ok := errorReasons[reason]; !ok {
		return fmt.Errorf("%w: 未知的网络错误原因 %q", proto.ErrInvalidArgument, reason)
	}
	params := []byte(`{}`)
	params, _ = sjson.SetBytes(params, "requestId", r.interceptionID)
	params, _ = sjson.SetBytes(params, "errorReason", string(reason))
	return r.commit("Fetch.failRequest", params)
}

// commit 原子地翻转 handled 标记并发出底层调用。两个并发决定
// 恰好一个成立；底层调用之后失败只记日志，本地决定已生效。
func (r *Request) commit(method string, params []byte) error {
	r.mu.Lock()
	if !r.mgr.interceptionEnabled() {
		r.mu.Unlock()
		return fmt.Errorf("请求 %s: %w", r.id, ErrInterceptionNotEnabled)
	}
	if r.handled {
		r.mu.Unlock()
		return fmt.Errorf("请求 %s: %w", r.id, ErrAlreadyHandled)
	}
	r.handled = true
	p := r.mgr.session.SendAsync(method, json.RawMessage(params))
	r.mu.Unlock()

	// 目标可能已经跳转或关闭，协议层失败不回传给早已继续
	// 执行的调用方
	go func() {
		if _, err := p.Wait(context.Background()); err != nil {
			r.mgr.log.Warn("拦截调用失败", "method", method, "requestId", r.id, "error", err)
		}
	}()
	return nil
}
