package cart

import (
	"strings"

	"thehub/internal/catalog"
	"thehub/pkg/model"
	"thehub/pkg/traffic"

	"github.com/tidwall/gjson"
)

// Normalize 将服务端购物车转换为本地视图
//
// 商品字段展开到每一行并计算小计；数量不为正或缺少商品 ID 的行被丢弃。
func Normalize(body traffic.Payload) model.CartView {
	doc := body.JSON()
	if !doc.IsObject() {
		return model.CartView{}
	}

	view := model.CartView{
		CartID: idString(doc.Get("id")),
		UserID: idString(doc.Get("user_id")),
		Items:  []model.CartLine{},
	}
	doc.Get("items").ForEach(func(_, item gjson.Result) bool {
		if l, ok := normalizeLine(item); ok {
			view.Items = append(view.Items, l)
		}
		return true
	})
	return view
}

func normalizeLine(item gjson.Result) (model.CartLine, bool) {
	if !item.IsObject() {
		return model.CartLine{}, false
	}
	product := item.Get("product")

	productID := firstID(item.Get("product_id"), product.Get("id"))
	qty := quantity(item.Get("quantity"))
	if productID == "" || qty <= 0 {
		return model.CartLine{}, false
	}

	p := catalog.ParseProduct(product)
	if p.ID == "" {
		p.ID = productID
	}
	return model.CartLine{
		ID:        firstID(item.Get("id"), item.Get("product_id"), product.Get("id")),
		CartID:    idString(item.Get("cart_id")),
		ProductID: productID,
		Quantity:  qty,
		Product:   p,
		Subtotal:  p.Price * float64(qty),
	}, true
}

func quantity(r gjson.Result) int {
	switch r.Type {
	case gjson.Number:
		return int(r.Int())
	case gjson.String:
		// 兼容字符串形式的数量
		return int(gjson.Parse(strings.TrimSpace(r.Str)).Int())
	default:
		return 0
	}
}

func idString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}

func firstID(rs ...gjson.Result) string {
	for _, r := range rs {
		if s := idString(r); s != "" {
			return s
		}
	}
	return ""
}
