package catalog

import (
	"context"
	"fmt"
	"net/url"

	"thehub/internal/gateway"
	"thehub/internal/logger"
	"thehub/internal/validation"
	"thehub/pkg/model"
	"thehub/pkg/traffic"

	"github.com/tidwall/gjson"
)

// DefaultRelated 相关商品默认数量
const DefaultRelated = 4

// Service 商品浏览
type Service struct {
	gw  *gateway.Gateway
	log logger.Logger
}

// New 创建商品服务
func New(gw *gateway.Gateway, l logger.Logger) *Service {
	return &Service{gw: gw, log: logger.OrNop(l).With("component", "catalog")}
}

// List 商品列表，params 原样作为查询参数
func (s *Service) List(ctx context.Context, params traffic.Params) ([]model.Product, error) {
	res, err := s.gw.Core().Get(ctx, "/product", params)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products(res.Body), nil
}

// Get 商品详情
func (s *Service) Get(ctx context.Context, id string) (model.Product, error) {
	if id == "" {
		return model.Product{}, validation.New("catalog.get", "id", "is required")
	}
	res, err := s.gw.Core().Get(ctx, "/product/"+url.PathEscape(id), nil)
	if err != nil {
		return model.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return ParseProduct(res.Body.JSON()), nil
}

// Related 相关商品；id 为空时直接返回空列表
func (s *Service) Related(ctx context.Context, id string, n int) ([]model.Product, error) {
	if id == "" {
		return []model.Product{}, nil
	}
	if n <= 0 {
		n = DefaultRelated
	}
	res, err := s.gw.Core().Get(ctx, "/product/"+url.PathEscape(id)+"/related", traffic.Params{"n": n})
	if err != nil {
		return nil, fmt.Errorf("related products of %s: %w", id, err)
	}
	return products(res.Body), nil
}

// products 兼容裸数组与 {items: [...]} 两种形式，其它形式返回空列表
func products(body traffic.Payload) []model.Product {
	doc := body.JSON()
	var arr gjson.Result
	switch {
	case doc.IsArray():
		arr = doc
	case doc.Get("items").IsArray():
		arr = doc.Get("items")
	default:
		return []model.Product{}
	}

	out := make([]model.Product, 0, len(arr.Array()))
	arr.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			out = append(out, ParseProduct(v))
		}
		return true
	})
	return out
}

// ParseProduct 解析商品快照；价格依次取 price、price_value、priceNumber
func ParseProduct(product gjson.Result) model.Product {
	images := []string{}
	if arr := product.Get("images"); arr.IsArray() {
		for _, img := range arr.Array() {
			if s := img.String(); s != "" {
				images = append(images, s)
			}
		}
	} else if img := product.Get("image").String(); img != "" {
		images = []string{img}
	}

	image := product.Get("image").String()
	if image == "" && len(images) > 0 {
		image = images[0]
	}

	p := model.Product{
		ID:          idString(product.Get("id")),
		Name:        product.Get("name").String(),
		Description: product.Get("description").String(),
		Category:    product.Get("category").String(),
		Price:       price(product),
		Images:      images,
		Image:       image,
	}
	if st := product.Get("stock"); st.Exists() && st.Type != gjson.Null {
		v := st.Int()
		p.Stock = &v
	}
	return p
}

func price(product gjson.Result) float64 {
	for _, path := range []string{"price", "price_value", "priceNumber"} {
		if v := product.Get(path); v.Exists() && v.Type != gjson.Null {
			return v.Float()
		}
	}
	return 0
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
