// Package service 组装会话存储、网关与各协调组件
package service

import (
	"context"
	"fmt"
	"net/http"

	"thehub/internal/auth"
	"thehub/internal/cart"
	"thehub/internal/catalog"
	"thehub/internal/config"
	"thehub/internal/gateway"
	"thehub/internal/httpclient"
	"thehub/internal/logger"
	"thehub/internal/metrics"
	"thehub/internal/session"
	"thehub/internal/storage"
	"thehub/pkg/model"
	"thehub/pkg/traffic"
)

// Option 可选依赖
type Option func(*options)

type options struct {
	redirector auth.Redirector
	httpClient *http.Client
	backend    session.Backend
}

// WithRedirector 设置登录跳转端口
func WithRedirector(r auth.Redirector) Option {
	return func(o *options) { o.redirector = r }
}

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBackend 使用指定的会话存储后端，忽略 session.backend 配置
func WithBackend(b session.Backend) Option {
	return func(o *options) { o.backend = b }
}

// Service 店铺前端服务
type Service struct {
	cfg     *config.Config
	log     logger.Logger
	kv      *storage.KV
	gw      *gateway.Gateway
	metrics *metrics.Collector
	auth    *auth.Service
	cart    *cart.Service
	catalog *catalog.Service
}

// New 按配置创建服务
func New(cfg *config.Config, l logger.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	l = logger.OrNop(l)
	for _, w := range cfg.Warnings {
		l.Warn(w)
	}

	var o options
	for _, fn := range opts {
		fn(&o)
	}

	s := &Service{cfg: cfg, log: l}

	backend := o.backend
	if backend == nil {
		switch cfg.Session.Backend {
		case config.BackendMemory:
			backend = session.NewMemory()
		default:
			kv, err := storage.Open(storage.Options{Dsn: cfg.Sqlite.Dsn, Prefix: cfg.Sqlite.Prefix, Logger: l})
			if err != nil {
				return nil, fmt.Errorf("open session storage: %w", err)
			}
			s.kv = kv
			backend = kv
		}
	}
	store := session.New(backend, session.Keys{Token: cfg.Session.TokenKey, Cart: cfg.Session.CartKey}, l)

	// 计数拦截器先于网关的 401 处理安装，被拒绝的请求同样计入
	s.metrics = metrics.NewCollector("")
	s.gw = gateway.New(gateway.Options{
		AuthBaseURL:  cfg.API.AuthBaseURL,
		CoreBaseURL:  cfg.API.CoreBaseURL,
		Timeout:      cfg.API.Timeout,
		HTTPClient:   o.httpClient,
		Store:        store,
		Logger:       l,
		Interceptors: func(surface gateway.Surface, c *httpclient.Client) {
			s.metrics.Instrument(string(surface), c)
		},
	})

	// 购物车先于认证服务订阅未授权事件
	s.cart = cart.New(cart.Options{Gateway: s.gw, Logger: l})
	s.auth = auth.New(auth.Options{
		Gateway:        s.gw,
		LoginPath:      cfg.Auth.LoginPath,
		RestoreRetries: cfg.Auth.RestoreRetries,
		Redirector:     o.redirector,
		Logger:         l,
	})
	s.cart.Watch(s.auth)
	s.catalog = catalog.New(s.gw, l)

	l.Info("服务已创建", "auth", cfg.API.AuthBaseURL, "core", cfg.API.CoreBaseURL, "backend", cfg.Session.Backend)
	return s, nil
}

// Close 取消订阅并关闭存储
func (s *Service) Close() error {
	s.cart.Close()
	s.auth.Close()
	if s.kv != nil {
		return s.kv.Close()
	}
	return nil
}

func (s *Service) Restore(ctx context.Context) (*model.Profile, error) {
	return s.auth.Restore(ctx)
}

func (s *Service) Login(ctx context.Context, identifier, password string) (*model.Profile, error) {
	return s.auth.Login(ctx, auth.Credentials{Identifier: identifier, Password: password})
}

func (s *Service) Signup(ctx context.Context, payload map[string]any) (*model.Profile, error) {
	return s.auth.Signup(ctx, payload)
}

func (s *Service) Logout() { s.auth.Logout() }

func (s *Service) Status() model.Status { return s.auth.Status() }

func (s *Service) Profile() *model.Profile { return s.auth.Profile() }

func (s *Service) LastError() string { return s.auth.LastError() }

func (s *Service) RequireAdmin() error { return s.auth.RequireAdmin() }

func (s *Service) SubscribeAuth(fn func(model.Transition)) (unsubscribe func()) {
	return s.auth.Subscribe(fn)
}

func (s *Service) Cart(ctx context.Context) (model.CartView, error) {
	return s.cart.Init(ctx)
}

func (s *Service) CartTotals() model.Totals { return s.cart.Totals() }

func (s *Service) AddToCart(ctx context.Context, productID string, qty int) (model.CartView, error) {
	return s.cart.AddItem(ctx, productID, qty)
}

func (s *Service) UpdateCartItem(ctx context.Context, lineID string, qty int) (model.CartView, error) {
	return s.withView(ctx, func() (model.CartView, error) { return s.cart.UpdateQuantity(ctx, lineID, qty) })
}

func (s *Service) IncrementCartItem(ctx context.Context, lineID string) (model.CartView, error) {
	return s.withView(ctx, func() (model.CartView, error) { return s.cart.IncrementItem(ctx, lineID) })
}

func (s *Service) DecrementCartItem(ctx context.Context, lineID string) (model.CartView, error) {
	return s.withView(ctx, func() (model.CartView, error) { return s.cart.DecrementItem(ctx, lineID) })
}

func (s *Service) RemoveCartItem(ctx context.Context, lineID string) (model.CartView, error) {
	return s.withView(ctx, func() (model.CartView, error) { return s.cart.RemoveItem(ctx, lineID) })
}

func (s *Service) ClearCart(ctx context.Context) (model.CartView, error) {
	return s.withView(ctx, func() (model.CartView, error) { return s.cart.Clear(ctx) })
}

// withView 本地视图没有行时先从服务端加载，再执行依赖本地行的操作
func (s *Service) withView(ctx context.Context, op func() (model.CartView, error)) (model.CartView, error) {
	if len(s.cart.View().Items) == 0 && s.cart.CartID() != "" {
		if _, err := s.cart.Refresh(ctx, ""); err != nil {
			return s.cart.View(), err
		}
	}
	return op()
}

func (s *Service) Products(ctx context.Context, params traffic.Params) ([]model.Product, error) {
	return s.catalog.List(ctx, params)
}

func (s *Service) Product(ctx context.Context, id string) (model.Product, error) {
	return s.catalog.Get(ctx, id)
}

func (s *Service) RelatedProducts(ctx context.Context, id string, n int) ([]model.Product, error) {
	return s.catalog.Related(ctx, id, n)
}

func (s *Service) MetricsHandler() http.Handler { return s.metrics.Handler() }

// RequestCounts 按 "surface method code" 汇总的请求计数
func (s *Service) RequestCounts() (map[string]float64, error) {
	samples, err := s.metrics.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, sm := range samples {
		if sm.Labels["code"] == "" {
			continue
		}
		out[sm.Labels["surface"]+" "+sm.Labels["method"]+" "+sm.Labels["code"]] = sm.Value
	}
	return out, nil
}
