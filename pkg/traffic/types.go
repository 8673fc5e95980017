package traffic

import (
	"net/http"
	"strings"
)

// Header 封装通用的头部操作（键统一为小写）
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Has 判断是否存在指定 Header
func (h Header) Has(key string) bool {
	if h == nil {
		return false
	}
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone 深拷贝
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Params 查询参数，值可以是标量或标量切片
type Params map[string]any

// Clone 浅拷贝（切片值按引用共享，调用方不应原地修改）
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Request 请求描述。一经发出不再修改，拦截器总是在副本上工作
type Request struct {
	ID      string // 事务唯一ID
	Method  string // HTTP方法
	BaseURL string // 基础地址
	Path    string // 目标路径（也可以是完整URL）
	Params  Params // 查询参数
	Headers Header // 请求头
	Body    any    // 结构化值，或 []byte / string 原始数据
}

// NewRequest 创建初始化请求对象
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(Header),
	}
}

// Clone 复制请求描述
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Headers = r.Headers.Clone()
	cp.Params = r.Params.Clone()
	return &cp
}

// Response 响应封装
type Response struct {
	StatusCode int      // 状态码
	StatusText string   // 状态描述
	Headers    Header   // 响应头
	Body       Payload  // 解码后的响应体
	Request    *Request // 发起该响应的请求
}

// NewResponse 创建初始化响应对象
func NewResponse(req *Request) *Response {
	return &Response{
		StatusCode: http.StatusOK,
		StatusText: http.StatusText(http.StatusOK),
		Headers:    make(Header),
		Request:    req,
	}
}

// OK 状态码是否位于 200-299
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}
