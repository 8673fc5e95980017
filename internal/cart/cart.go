package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"thehub/internal/gateway"
	"thehub/internal/httpclient"
	"thehub/internal/logger"
	"thehub/internal/validation"
	"thehub/pkg/model"

	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"
)

// ErrNoCartID 服务端创建购物车未返回 ID
var ErrNoCartID = errors.New("cart: server returned no cart id")

// StatusSource 认证状态来源
type StatusSource interface {
	Subscribe(fn func(model.Transition)) (unsubscribe func())
}

// Options 购物车服务配置
//
// 购物车须先于认证服务订阅未授权事件，因此 Auth 通常留空，
// 在认证服务创建后再调用 Watch。
type Options struct {
	Gateway *gateway.Gateway
	Auth    StatusSource // 可选；为空时不响应认证状态变化
	Logger  logger.Logger
}

type addInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type updateInput struct {
	LineID   string `json:"cart_item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type lineInput struct {
	LineID string `json:"cart_item_id" validate:"required"`
}

// Service 购物车协调：与服务端和认证状态保持一致
type Service struct {
	gw  *gateway.Gateway
	log logger.Logger

	mu   sync.RWMutex
	view model.CartView

	umu    sync.Mutex
	unsubs []func()
}

// New 创建购物车服务并订阅认证状态与未授权事件
func New(opts Options) *Service {
	if opts.Gateway == nil {
		panic("cart: gateway is required")
	}
	s := &Service{
		gw:  opts.Gateway,
		log: logger.OrNop(opts.Logger).With("component", "cart"),
	}
	s.view.CartID = s.gw.Store().Cart().Get()
	s.unsubs = append(s.unsubs, s.gw.OnUnauthorized(s.handleUnauthorized))
	if opts.Auth != nil {
		s.Watch(opts.Auth)
	}
	return s
}

// Watch 订阅认证状态变化
func (s *Service) Watch(src StatusSource) {
	un := src.Subscribe(s.handleTransition)
	s.umu.Lock()
	s.unsubs = append(s.unsubs, un)
	s.umu.Unlock()
}

// Close 取消所有订阅
func (s *Service) Close() {
	s.umu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.umu.Unlock()
	for _, un := range unsubs {
		un()
	}
}

// View 当前本地视图副本
func (s *Service) View() model.CartView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Clone()
}

// Totals 件数与金额汇总
func (s *Service) Totals() model.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Totals()
}

// CartID 缓存的购物车 ID
func (s *Service) CartID() string {
	return s.gw.Store().Cart().Get()
}

// Init 有缓存 ID 时直接刷新，否则先创建再刷新
func (s *Service) Init(ctx context.Context) (model.CartView, error) {
	if id := s.CartID(); id != "" {
		return s.Refresh(ctx, id)
	}
	id, err := s.EnsureCartID(ctx)
	if err != nil {
		return s.View(), err
	}
	return s.Refresh(ctx, id)
}

// EnsureCartID 返回缓存的购物车 ID，不存在时在服务端创建
func (s *Service) EnsureCartID(ctx context.Context) (string, error) {
	if id := s.CartID(); id != "" {
		return id, nil
	}

	res, err := s.gw.Core().Post(ctx, "/cart", nil)
	if err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	view := Normalize(res.Body)
	if view.CartID == "" {
		return "", ErrNoCartID
	}
	s.apply(view)
	s.log.Info("已创建购物车", "cartID", view.CartID)
	return view.CartID, nil
}

// Refresh 拉取购物车并整体替换本地视图；id 为空时使用缓存 ID
//
// 服务端返回 404 表示缓存的购物车已不存在：清除 ID 与视图，返回空视图。
func (s *Service) Refresh(ctx context.Context, id string) (model.CartView, error) {
	if id == "" {
		id = s.CartID()
	}
	if id == "" {
		return s.View(), nil
	}

	res, err := s.gw.Core().Get(ctx, "/cart/"+url.PathEscape(id), nil)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			s.log.Warn("购物车已不存在，清除本地缓存", "cartID", id)
			s.reset()
			return s.View(), nil
		}
		return s.View(), fmt.Errorf("refresh cart %s: %w", id, err)
	}
	s.apply(Normalize(res.Body))
	return s.View(), nil
}

// AddItem 添加商品行，完成后整体刷新
func (s *Service) AddItem(ctx context.Context, productID string, qty int) (model.CartView, error) {
	in := addInput{ProductID: productID, Quantity: qty}
	if err := validation.Struct("cart.addItem", in); err != nil {
		return s.View(), err
	}

	cartID, err := s.EnsureCartID(ctx)
	if err != nil {
		return s.View(), err
	}

	payload, err := linePayload(cartID, in.ProductID, in.Quantity)
	if err != nil {
		return s.View(), err
	}
	if _, err := s.gw.Core().Post(ctx, "/cart_item", payload); err != nil {
		return s.settle(ctx, cartID, fmt.Errorf("add item: %w", err))
	}
	s.log.Debug("已添加商品", "cartID", cartID, "productID", in.ProductID, "quantity", in.Quantity)
	return s.Refresh(ctx, cartID)
}

// AddProduct 以商品快照添加
func (s *Service) AddProduct(ctx context.Context, p model.Product, qty int) (model.CartView, error) {
	return s.AddItem(ctx, p.ID, qty)
}

// UpdateQuantity 修改行数量
func (s *Service) UpdateQuantity(ctx context.Context, lineID string, qty int) (model.CartView, error) {
	in := updateInput{LineID: lineID, Quantity: qty}
	if err := validation.Struct("cart.updateQuantity", in); err != nil {
		return s.View(), err
	}

	raw, err := sjson.SetBytes([]byte("{}"), "quantity", in.Quantity)
	if err != nil {
		return s.View(), err
	}
	if _, err := s.gw.Core().Patch(ctx, "/cart_item/"+url.PathEscape(lineID), json.RawMessage(raw)); err != nil {
		return s.settle(ctx, "", fmt.Errorf("update item %s: %w", lineID, err))
	}
	return s.Refresh(ctx, "")
}

// RemoveItem 删除行
func (s *Service) RemoveItem(ctx context.Context, lineID string) (model.CartView, error) {
	if err := validation.Struct("cart.removeItem", lineInput{LineID: lineID}); err != nil {
		return s.View(), err
	}
	if err := s.deleteLine(ctx, lineID); err != nil {
		return s.settle(ctx, "", err)
	}
	return s.Refresh(ctx, "")
}

// IncrementItem 数量加一
func (s *Service) IncrementItem(ctx context.Context, lineID string) (model.CartView, error) {
	l, err := s.localLine("cart.incrementItem", lineID)
	if err != nil {
		return s.View(), err
	}
	return s.UpdateQuantity(ctx, lineID, l.Quantity+1)
}

// DecrementItem 数量减一；减到零及以下时删除该行
func (s *Service) DecrementItem(ctx context.Context, lineID string) (model.CartView, error) {
	l, err := s.localLine("cart.decrementItem", lineID)
	if err != nil {
		return s.View(), err
	}
	if l.Quantity-1 <= 0 {
		return s.RemoveItem(ctx, lineID)
	}
	return s.UpdateQuantity(ctx, lineID, l.Quantity-1)
}

// Clear 拉取购物车后并行删除所有行，再刷新；无 ID 时不发起请求，服务端为空时不删除
//
// 单行删除失败不会取消其它删除请求。
func (s *Service) Clear(ctx context.Context) (model.CartView, error) {
	id := s.CartID()
	if id == "" {
		return s.View(), nil
	}

	res, err := s.gw.Core().Get(ctx, "/cart/"+url.PathEscape(id), nil)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			s.reset()
			return s.View(), nil
		}
		return s.View(), fmt.Errorf("clear cart %s: %w", id, err)
	}
	remote := Normalize(res.Body)
	if remote.CartID == "" {
		remote.CartID = id
	}
	if len(remote.Items) == 0 {
		s.apply(remote)
		return s.View(), nil
	}

	var g errgroup.Group
	for _, l := range remote.Items {
		lineID := l.ID
		g.Go(func() error { return s.deleteLine(ctx, lineID) })
	}
	if err := g.Wait(); err != nil {
		return s.settle(ctx, id, err)
	}
	s.log.Info("购物车已清空", "cartID", id, "lines", len(remote.Items))
	return s.Refresh(ctx, id)
}

func (s *Service) deleteLine(ctx context.Context, lineID string) error {
	if _, err := s.gw.Core().Delete(ctx, "/cart_item/"+url.PathEscape(lineID)); err != nil {
		return fmt.Errorf("remove item %s: %w", lineID, err)
	}
	return nil
}

// settle 变更失败后的收尾：404 时刷新以确认购物车是否仍然存在
func (s *Service) settle(ctx context.Context, id string, err error) (model.CartView, error) {
	if httpclient.IsStatus(err, http.StatusNotFound) {
		if _, rerr := s.Refresh(ctx, id); rerr != nil {
			s.log.Warn("刷新购物车失败", "error", rerr)
		}
	}
	return s.View(), err
}

func (s *Service) localLine(op, lineID string) (model.CartLine, error) {
	if err := validation.Struct(op, lineInput{LineID: lineID}); err != nil {
		return model.CartLine{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.view.Line(lineID)
	if !ok {
		return model.CartLine{}, validation.New(op, "cart_item_id", "is not in the cart")
	}
	return l, nil
}

// apply 整体替换视图并把购物车 ID 写入会话
func (s *Service) apply(view model.CartView) {
	if view.CartID != "" {
		s.gw.Store().Cart().Set(view.CartID)
	}
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
}

// reset 丢弃购物车 ID 与本地视图
func (s *Service) reset() {
	s.gw.Store().Cart().Clear()
	s.mu.Lock()
	s.view = model.CartView{}
	s.mu.Unlock()
}

// handleTransition 进入 authenticated 或从 authenticated 退回 unauthenticated 时更换购物车
func (s *Service) handleTransition(t model.Transition) {
	into := t.To == model.StatusAuthenticated
	out := t.From == model.StatusAuthenticated && t.To == model.StatusUnauthenticated
	if !into && !out {
		return
	}

	s.log.Info("认证状态变化，重置购物车", "from", string(t.From), "to", string(t.To))
	s.reset()

	ctx := context.Background()
	id, err := s.EnsureCartID(ctx)
	if err != nil {
		s.log.Err(err, "认证状态变化后创建购物车失败")
		return
	}
	if _, err := s.Refresh(ctx, id); err != nil {
		s.log.Err(err, "认证状态变化后刷新购物车失败")
	}
}

// handleUnauthorized 会话失效时丢弃购物车
func (s *Service) handleUnauthorized() {
	s.log.Warn("会话失效，丢弃购物车")
	s.reset()
}

// linePayload 生成 /cart_item 请求体，纯数字 ID 以数字形式发送
func linePayload(cartID, productID string, qty int) (json.RawMessage, error) {
	raw := []byte("{}")
	var err error
	if raw, err = setID(raw, "cart_id", cartID); err != nil {
		return nil, err
	}
	if raw, err = setID(raw, "product_id", productID); err != nil {
		return nil, err
	}
	if raw, err = sjson.SetBytes(raw, "quantity", qty); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func setID(raw []byte, path, id string) ([]byte, error) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && strconv.FormatInt(n, 10) == id {
		return sjson.SetRawBytes(raw, path, []byte(id))
	}
	return sjson.SetBytes(raw, path, id)
}
