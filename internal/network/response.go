package network

// Response 已收到的响应元信息
type Response struct {
	request    *Request
	status     int
	statusText string
	headers    Header
	fromCache  bool
}

// Status 状态码
func (r *Response) Status() int { return r.status }

// StatusText 原因短语
func (r *Response) StatusText() string { return r.statusText }

// Headers 响应头（大小写不敏感）
func (r *Response) Headers() Header { return r.headers }

// Request 所属请求
func (r *Response) Request() *Request { return r.request }

// FromCache 是否来自磁盘或预取缓存
func (r *Response) FromCache() bool { return r.fromCache }

// OK 状态码是否在成功区间
func (r *Response) OK() bool { return r.status == 0 || (r.status >= 200 && r.status <= 299) }
