package model

// Status 认证状态
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusChecking        Status = "checking"
	StatusAuthenticated   Status = "authenticated"
)

// Transition 认证状态变化
type Transition struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// Profile 当前用户资料
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	Raw      []byte `json:"-"` // 服务端原始返回
}

// IsAdmin 是否为管理员
func (p *Profile) IsAdmin() bool {
	return p != nil && p.UserType == "admin"
}

// Product 商品快照
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Stock       *int64   `json:"stock"`
	Images      []string `json:"images"`
	Image       string   `json:"image"`
}

// CartLine 购物车行
type CartLine struct {
	ID        string  `json:"id"`
	CartID    string  `json:"cartId"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
	Subtotal  float64 `json:"subtotal"`
}

// CartView 本地购物车视图
type CartView struct {
	CartID string     `json:"cartId"`
	UserID string     `json:"userId"`
	Items  []CartLine `json:"items"`
}

// Totals 购物车汇总
type Totals struct {
	Items int     `json:"totalItems"`
	Price float64 `json:"totalPrice"`
}

// Totals 计算件数与金额
func (v CartView) Totals() Totals {
	var t Totals
	for _, it := range v.Items {
		t.Items += it.Quantity
		t.Price += it.Subtotal
	}
	return t
}

// Line 按行 ID 查找
func (v CartView) Line(id string) (CartLine, bool) {
	for _, it := range v.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CartLine{}, false
}

// Clone 复制视图，避免外部修改内部状态
func (v CartView) Clone() CartView {
	cp := v
	if v.Items != nil {
		cp.Items = make([]CartLine, len(v.Items))
		copy(cp.Items, v.Items)
	}
	return cp
}
