package httpclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"thehub/internal/adapter/nethttp"
	"thehub/internal/ctxkeys"
	"thehub/internal/logger"
	"thehub/pkg/traffic"

	"github.com/google/uuid"
)

// RequestInterceptor 请求拦截器
//
// OnRequest 在副本上工作，返回 nil 表示不修改；返回错误时，若注册了 OnError
// 则交由其恢复，否则中断整个流水线。
type RequestInterceptor struct {
	OnRequest func(ctx context.Context, req *traffic.Request) (*traffic.Request, error)
	OnError   func(ctx context.Context, err error) (*traffic.Request, error)
}

// ResponseInterceptor 响应拦截器
//
// OnResponse 仅处理 2xx 响应；OnError 处理 TransportError：
// 返回错误立即中断并抛给调用方，返回非 nil 的 Response 即为替代结果，
// 两者皆为 nil 表示不处理，交给下一个处理器。
type ResponseInterceptor struct {
	OnResponse func(ctx context.Context, res *traffic.Response) (*traffic.Response, error)
	OnError    func(ctx context.Context, err *TransportError) (*traffic.Response, error)
}

// Config 客户端实例级配置
type Config struct {
	Name       string            // 实例名称，用于日志与指标
	BaseURL    string            // 基础地址
	Headers    map[string]string // 默认请求头，单次调用的同名头优先
	Timeout    time.Duration     // 透传给底层 http.Client
	HTTPClient *http.Client
	Logger     logger.Logger
}

type registered[T any] struct {
	id int
	ic T
}

// Client HTTP 客户端引擎
type Client struct {
	cfg  Config
	hc   *http.Client
	log  logger.Logger
	mu   sync.RWMutex
	seq  int
	reqs []registered[RequestInterceptor]
	ress []registered[ResponseInterceptor]
}

// New 创建客户端实例
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.Timeout > 0 {
		cp := *hc
		cp.Timeout = cfg.Timeout
		hc = &cp
	}
	l := logger.OrNop(cfg.Logger)
	if cfg.Name != "" {
		l = l.With("client", cfg.Name)
	}
	return &Client{cfg: cfg, hc: hc, log: l}
}

// Name 返回实例名称
func (c *Client) Name() string { return c.cfg.Name }

// BaseURL 返回基础地址
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// UseRequest 注册请求拦截器，返回注册 ID
func (c *Client) UseRequest(ic RequestInterceptor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.reqs = append(c.reqs, registered[RequestInterceptor]{id: c.seq, ic: ic})
	return c.seq
}

// UseResponse 注册响应拦截器，返回注册 ID
func (c *Client) UseResponse(ic ResponseInterceptor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.ress = append(c.ress, registered[ResponseInterceptor]{id: c.seq, ic: ic})
	return c.seq
}

// Eject 按注册 ID 移除拦截器
func (c *Client) Eject(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.reqs {
		if r.id == id {
			c.reqs = append(c.reqs[:i:i], c.reqs[i+1:]...)
			return
		}
	}
	for i, r := range c.ress {
		if r.id == id {
			c.ress = append(c.ress[:i:i], c.ress[i+1:]...)
			return
		}
	}
}

func (c *Client) snapshot() ([]RequestInterceptor, []ResponseInterceptor) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reqs := make([]RequestInterceptor, len(c.reqs))
	for i, r := range c.reqs {
		reqs[i] = r.ic
	}
	ress := make([]ResponseInterceptor, len(c.ress))
	for i, r := range c.ress {
		ress[i] = r.ic
	}
	return reqs, ress
}

// Execute 执行一次完整请求：合并配置、请求拦截、发送、解码、响应拦截
func (c *Client) Execute(ctx context.Context, call *traffic.Request) (*traffic.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req := c.merge(call)
	traceID := req.ID
	ctx = ctxkeys.WithTraceID(ctx, traceID)

	reqICs, resICs := c.snapshot()

	req, err := runRequestInterceptors(ctx, reqICs, req)
	if err != nil {
		c.log.Debug("请求拦截器中断", "requestID", req.ID, "error", err)
		return nil, err
	}
	if req.BaseURL == "" {
		req.BaseURL = c.cfg.BaseURL
	}

	target, err := BuildURL(req.BaseURL, req.Path, req.Params)
	if err != nil {
		return nil, err
	}

	headers := req.Headers.Clone()
	body, err := encodeBody(req.Method, req.Body, headers)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = traceID
	}
	headers.Set("X-Request-Id", req.ID)
	sent := req.Clone()
	sent.Headers = headers

	hr, err := nethttp.ToHTTPRequest(ctx, sent, target, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.hc.Do(hr)
	if err != nil {
		c.log.Warn("网络请求失败", "requestID", sent.ID, "method", hr.Method, "url", target, "error", err)
		return nil, &ConnectivityError{Request: sent, Err: err}
	}

	res, err := nethttp.ToNeutralResponse(resp, sent)
	if err != nil {
		return nil, &ConnectivityError{Request: sent, Err: err}
	}
	c.log.Debug("请求完成", "requestID", sent.ID, "method", hr.Method, "url", target,
		"status", res.StatusCode, "duration", time.Since(start))

	if !res.OK() {
		return runErrorInterceptors(ctx, resICs, &TransportError{Request: sent, Response: res})
	}
	return runResponseInterceptors(ctx, resICs, res)
}

// merge 将实例默认值与单次调用配置合并，调用方优先
func (c *Client) merge(call *traffic.Request) *traffic.Request {
	var req *traffic.Request
	if call == nil {
		req = traffic.NewRequest(http.MethodGet, "")
	} else {
		req = call.Clone()
	}
	if req.Headers == nil {
		req.Headers = make(traffic.Header)
	}
	if req.BaseURL == "" {
		req.BaseURL = c.cfg.BaseURL
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	for k, v := range c.cfg.Headers {
		if !req.Headers.Has(k) {
			req.Headers.Set(k, v)
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return req
}

func runRequestInterceptors(ctx context.Context, ics []RequestInterceptor, req *traffic.Request) (*traffic.Request, error) {
	for _, ic := range ics {
		if ic.OnRequest == nil {
			continue
		}
		next, err := ic.OnRequest(ctx, req.Clone())
		if err != nil {
			if ic.OnError == nil {
				return req, err
			}
			next, err = ic.OnError(ctx, err)
			if err != nil {
				return req, err
			}
		}
		if next != nil {
			req = next
		}
	}
	return req, nil
}

func runErrorInterceptors(ctx context.Context, ics []ResponseInterceptor, te *TransportError) (*traffic.Response, error) {
	for _, ic := range ics {
		if ic.OnError == nil {
			continue
		}
		sub, err := ic.OnError(ctx, te)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			return sub, nil
		}
	}
	return nil, te
}

func runResponseInterceptors(ctx context.Context, ics []ResponseInterceptor, res *traffic.Response) (*traffic.Response, error) {
	for _, ic := range ics {
		if ic.OnResponse == nil {
			continue
		}
		next, err := ic.OnResponse(ctx, res)
		if err != nil {
			return nil, err
		}
		if next != nil {
			res = next
		}
	}
	return res, nil
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, path string, params traffic.Params) (*traffic.Response, error) {
	req := traffic.NewRequest(http.MethodGet, path)
	req.Params = params
	return c.Execute(ctx, req)
}

// Post 发送 POST 请求
func (c *Client) Post(ctx context.Context, path string, body any) (*traffic.Response, error) {
	return c.send(ctx, http.MethodPost, path, body)
}

// Put 发送 PUT 请求
func (c *Client) Put(ctx context.Context, path string, body any) (*traffic.Response, error) {
	return c.send(ctx, http.MethodPut, path, body)
}

// Patch 发送 PATCH 请求
func (c *Client) Patch(ctx context.Context, path string, body any) (*traffic.Response, error) {
	return c.send(ctx, http.MethodPatch, path, body)
}

// Delete 发送 DELETE 请求
func (c *Client) Delete(ctx context.Context, path string) (*traffic.Response, error) {
	return c.Execute(ctx, traffic.NewRequest(http.MethodDelete, path))
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*traffic.Response, error) {
	req := traffic.NewRequest(method, path)
	req.Body = body
	return c.Execute(ctx, req)
}
