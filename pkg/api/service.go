package api

import (
	"context"
	"net/http"

	"thehub/internal/auth"
	"thehub/internal/config"
	"thehub/internal/logger"
	"thehub/internal/service"
	"thehub/pkg/model"
	"thehub/pkg/traffic"
)

// Service 服务接口
type Service interface {
	// Restore 用已保存的令牌恢复会话
	Restore(ctx context.Context) (*model.Profile, error)

	// Login 登录，identifier 可以是邮箱或用户名
	Login(ctx context.Context, identifier, password string) (*model.Profile, error)

	// Signup 注册并登录
	Signup(ctx context.Context, payload map[string]any) (*model.Profile, error)

	// Logout 登出
	Logout()

	// Status 认证状态
	Status() model.Status

	// Profile 当前用户资料
	Profile() *model.Profile

	// LastError 最近一次认证错误描述
	LastError() string

	// RequireAdmin 仅管理员可通过
	RequireAdmin() error

	// SubscribeAuth 订阅认证状态变化
	SubscribeAuth(fn func(model.Transition)) (unsubscribe func())

	// Cart 加载购物车，不存在时创建
	Cart(ctx context.Context) (model.CartView, error)

	// CartTotals 购物车汇总
	CartTotals() model.Totals

	// AddToCart 添加商品
	AddToCart(ctx context.Context, productID string, qty int) (model.CartView, error)

	// UpdateCartItem 修改行数量
	UpdateCartItem(ctx context.Context, lineID string, qty int) (model.CartView, error)

	// IncrementCartItem 行数量加一
	IncrementCartItem(ctx context.Context, lineID string) (model.CartView, error)

	// DecrementCartItem 行数量减一
	DecrementCartItem(ctx context.Context, lineID string) (model.CartView, error)

	// RemoveCartItem 删除行
	RemoveCartItem(ctx context.Context, lineID string) (model.CartView, error)

	// ClearCart 清空购物车
	ClearCart(ctx context.Context) (model.CartView, error)

	// Products 商品列表
	Products(ctx context.Context, params traffic.Params) ([]model.Product, error)

	// Product 商品详情
	Product(ctx context.Context, id string) (model.Product, error)

	// RelatedProducts 相关商品
	RelatedProducts(ctx context.Context, id string, n int) ([]model.Product, error)

	// MetricsHandler Prometheus 指标
	MetricsHandler() http.Handler

	// RequestCounts 请求计数汇总
	RequestCounts() (map[string]float64, error)

	// Close 释放资源
	Close() error
}

// RedirectFunc 登录跳转回调
type RedirectFunc = auth.RedirectFunc

// Options 创建服务的可选项
type Options struct {
	Redirect   RedirectFunc
	HTTPClient *http.Client
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger, opts Options) (Service, error) {
	var so []service.Option
	if opts.Redirect != nil {
		so = append(so, service.WithRedirector(opts.Redirect))
	}
	if opts.HTTPClient != nil {
		so = append(so, service.WithHTTPClient(opts.HTTPClient))
	}
	svc, err := service.New(cfg, l, so...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
