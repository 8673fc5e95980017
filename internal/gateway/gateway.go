package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"thehub/internal/httpclient"
	"thehub/internal/logger"
	"thehub/internal/session"
	"thehub/pkg/traffic"
)

// Surface 后端 API 面
type Surface string

const (
	SurfaceAuth Surface = "auth"
	SurfaceCore Surface = "core"
)

const bearerPrefix = "Bearer "

// Options 网关配置
type Options struct {
	AuthBaseURL string
	CoreBaseURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Store       *session.Store
	Emitter     *Emitter
	Logger      logger.Logger

	// Interceptors 在网关自身拦截器之前为每个客户端安装额外拦截器
	Interceptors func(surface Surface, c *httpclient.Client)
}

// Gateway 鉴权请求层：两个独立客户端实例，统一注入令牌并处理 401
type Gateway struct {
	auth    *httpclient.Client
	core    *httpclient.Client
	store   *session.Store
	emitter *Emitter
	mu      sync.Mutex
	log     logger.Logger
}

// New 创建网关并为两个客户端安装拦截器
func New(opts Options) *Gateway {
	l := logger.OrNop(opts.Logger)
	store := opts.Store
	if store == nil {
		store = session.New(session.NewMemory(), session.DefaultKeys, l)
	}
	em := opts.Emitter
	if em == nil {
		em = NewEmitter(l)
	}

	g := &Gateway{store: store, emitter: em, log: l}
	g.auth = g.newClient(SurfaceAuth, opts.AuthBaseURL, opts)
	g.core = g.newClient(SurfaceCore, opts.CoreBaseURL, opts)
	return g
}

func (g *Gateway) newClient(surface Surface, baseURL string, opts Options) *httpclient.Client {
	c := httpclient.New(httpclient.Config{
		Name:       string(surface),
		BaseURL:    baseURL,
		Headers:    map[string]string{"Accept": "application/json"},
		Timeout:    opts.Timeout,
		HTTPClient: opts.HTTPClient,
		Logger:     g.log,
	})
	if opts.Interceptors != nil {
		opts.Interceptors(surface, c)
	}
	c.UseRequest(httpclient.RequestInterceptor{OnRequest: g.injectToken})
	c.UseResponse(httpclient.ResponseInterceptor{OnError: g.handleUnauthorized})
	return c
}

// Auth 鉴权 API 客户端
func (g *Gateway) Auth() *httpclient.Client { return g.auth }

// Core 业务 API 客户端
func (g *Gateway) Core() *httpclient.Client { return g.core }

// Clients 按 API 面返回全部客户端
func (g *Gateway) Clients() map[Surface]*httpclient.Client {
	return map[Surface]*httpclient.Client{SurfaceAuth: g.auth, SurfaceCore: g.core}
}

// Store 会话存储
func (g *Gateway) Store() *session.Store { return g.store }

// OnUnauthorized 订阅未授权事件
func (g *Gateway) OnUnauthorized(fn func()) (unsubscribe func()) {
	return g.emitter.Subscribe(fn)
}

func (g *Gateway) injectToken(_ context.Context, req *traffic.Request) (*traffic.Request, error) {
	if token := g.store.Token().Get(); token != "" {
		req.Headers.Set("Authorization", bearerPrefix+token)
	}
	return req, nil
}

// handleUnauthorized 401 时清除令牌并通知订阅者，始终向调用方抛出原错误
//
// 同一令牌的并发 401 只处理一次：请求携带的令牌已被替换或清除时跳过。
// 未携带令牌的请求每次都会通知订阅者。
func (g *Gateway) handleUnauthorized(ctx context.Context, te *httpclient.TransportError) (*traffic.Response, error) {
	if te.StatusCode() != http.StatusUnauthorized {
		return nil, nil
	}

	sent := sentToken(te.Request)
	g.mu.Lock()
	stale := sent != "" && sent != g.store.Token().Get()
	if !stale {
		g.store.Token().Clear()
	}
	g.mu.Unlock()

	if stale {
		g.log.Debug("忽略已失效令牌的重复未授权响应", "path", te.Request.Path)
		return nil, te
	}

	g.log.Warn("会话已失效，清除令牌", "path", te.Request.Path, "requestID", te.Request.ID)
	g.emitter.Emit()
	return nil, te
}

func sentToken(req *traffic.Request) string {
	if req == nil {
		return ""
	}
	h := req.Headers.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(h, bearerPrefix)
}
