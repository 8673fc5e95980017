package mockapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

func (s *Server) routes(r *gin.Engine) {
	r.POST("/auth/login", s.login)
	r.POST("/auth/signup", s.signup)
	r.GET("/auth/me", s.me)

	r.POST("/cart", s.createCart)
	r.GET("/cart/:id", s.getCart)
	r.POST("/cart_item", s.addLine)
	r.PATCH("/cart_item/:id", s.updateLine)
	r.DELETE("/cart_item/:id", s.deleteLine)

	r.GET("/product", s.listProducts)
	r.GET("/product/:id", s.getProduct)
	r.GET("/product/:id/related", s.relatedProducts)
}

func body(c *gin.Context) gjson.Result {
	raw, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(raw) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

// currentUser 解析 Bearer 令牌，调用方需持有锁
func (s *Server) currentUser(c *gin.Context) (*User, bool) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return nil, false
	}
	id, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	u, ok := s.users[id]
	return u, ok
}

func (s *Server) issue(u *User) string {
	token := uuid.NewString()
	s.tokens[token] = u.ID
	return token
}

func (s *Server) login(c *gin.Context) {
	in := body(c)
	email := strings.ToLower(in.Get("email").String())
	username := in.Get("username").String()
	password := in.Get("password").String()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		match := (email != "" && strings.ToLower(u.Email) == email) || (username != "" && u.Username == username)
		if match && u.Password == password {
			c.JSON(http.StatusOK, gin.H{"authToken": s.issue(u)})
			return
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials."})
}

func (s *Server) signup(c *gin.Context) {
	in := body(c)
	email := strings.TrimSpace(in.Get("email").String())
	password := in.Get("password").String()
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"message": "email and password are required"}}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c.JSON(http.StatusConflict, gin.H{"error": "This account is already in use."})
			return
		}
	}
	s.seq++
	u := &User{
		ID:       s.seq,
		Name:     in.Get("name").String(),
		Email:    email,
		Username: in.Get("username").String(),
		Password: password,
		UserType: "customer",
	}
	s.users[u.ID] = u
	c.JSON(http.StatusOK, gin.H{"authToken": s.issue(u)})
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unable to locate auth: token is invalid or expired."})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) createCart(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct := &cart{ID: s.nextID("c")}
	if u, ok := s.currentUser(c); ok {
		id := u.ID
		ct.UserID = &id
	}
	s.carts[ct.ID] = ct
	c.JSON(http.StatusOK, s.cartJSON(ct))
}

func (s *Server) getCart(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.carts[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found."})
		return
	}
	c.JSON(http.StatusOK, s.cartJSON(ct))
}

// cartJSON 按行 ID 顺序输出购物车，调用方需持有锁
func (s *Server) cartJSON(ct *cart) gin.H {
	items := make([]gin.H, 0)
	ids := make([]string, 0)
	for id, l := range s.lines {
		if l.CartID == ct.ID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return idNum(ids[i]) < idNum(ids[j]) })
	for _, id := range ids {
		l := s.lines[id]
		items = append(items, gin.H{
			"id":         l.ID,
			"cart_id":    l.CartID,
			"product_id": l.ProductID,
			"quantity":   l.Quantity,
			"product":    s.products[l.ProductID],
		})
	}
	var userID any
	if ct.UserID != nil {
		userID = *ct.UserID
	}
	return gin.H{"id": ct.ID, "user_id": userID, "items": items}
}

func (s *Server) addLine(c *gin.Context) {
	in := body(c)
	cartID := in.Get("cart_id").String()
	productID := int(in.Get("product_id").Int())
	qty := int(in.Get("quantity").Int())
	if qty <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "quantity must be positive"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[cartID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "cart not found"})
		return
	}
	if _, ok := s.products[productID]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unknown product"})
		return
	}
	for _, l := range s.lines {
		if l.CartID == cartID && l.ProductID == productID {
			l.Quantity += qty
			c.JSON(http.StatusOK, lineJSON(l))
			return
		}
	}
	l := &line{ID: s.nextID("l"), CartID: cartID, ProductID: productID, Quantity: qty}
	s.lines[l.ID] = l
	c.JSON(http.StatusOK, lineJSON(l))
}

func (s *Server) updateLine(c *gin.Context) {
	qty := int(body(c).Get("quantity").Int())
	if qty <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "quantity must be positive"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found."})
		return
	}
	l.Quantity = qty
	c.JSON(http.StatusOK, lineJSON(l))
}

func (s *Server) deleteLine(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[c.Param("id")]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found."})
		return
	}
	delete(s.lines, c.Param("id"))
	c.JSON(http.StatusOK, nil)
}

func lineJSON(l *line) gin.H {
	return gin.H{"id": l.ID, "cart_id": l.CartID, "product_id": l.ProductID, "quantity": l.Quantity}
}

func (s *Server) sortedProducts() []Product {
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) listProducts(c *gin.Context) {
	category := c.Query("category")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0)
	for _, p := range s.sortedProducts() {
		if category == "" || strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	if c.Query("wrap") == "items" {
		c.JSON(http.StatusOK, gin.H{"items": out})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getProduct(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found."})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) relatedProducts(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))
	n, err := strconv.Atoi(c.DefaultQuery("n", "4"))
	if err != nil || n <= 0 {
		n = 4
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.products[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found."})
		return
	}
	out := make([]Product, 0, n)
	for _, p := range s.sortedProducts() {
		if p.ID != id && p.Category == base.Category && len(out) < n {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func idNum(id string) int {
	n, _ := strconv.Atoi(strings.TrimLeft(id, "abcdefghijklmnopqrstuvwxyz"))
	return n
}
