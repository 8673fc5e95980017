// Package mockapi 内存实现的后端 REST 接口，用于本地运行与测试
package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"thehub/internal/logger"

	"github.com/gin-gonic/gin"
)

// Product 商品记录
type Product struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Image       string   `json:"image,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// User 用户记录
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"-"`
	UserType string `json:"user_type"`
}

type cart struct {
	ID     string
	UserID *int
}

type line struct {
	ID        string
	CartID    string
	ProductID int
	Quantity  int
}

// Call 一次已处理的请求
type Call struct {
	Method string
	Path   string
	Auth   string
}

type failure struct {
	status int
	times  int // <0 表示一直生效
}

// Server 内存后端
type Server struct {
	mu       sync.Mutex
	users    map[int]*User
	tokens   map[string]int
	carts    map[string]*cart
	lines    map[string]*line
	products map[int]Product
	seq      int
	calls    []Call
	failures map[string]*failure

	engine *gin.Engine
	log    logger.Logger
}

// Option 配置项
type Option func(*Server)

// WithLogger 设置日志器
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithProducts 替换默认商品目录
func WithProducts(ps ...Product) Option {
	return func(s *Server) {
		s.products = make(map[int]Product, len(ps))
		for _, p := range ps {
			s.products[p.ID] = p
		}
	}
}

// New 创建内存后端并注册路由
func New(opts ...Option) *Server {
	s := &Server{
		users:    make(map[int]*User),
		tokens:   make(map[string]int),
		carts:    make(map[string]*cart),
		lines:    make(map[string]*line),
		products: make(map[int]Product),
		failures: make(map[string]*failure),
	}
	for _, p := range defaultProducts() {
		s.products[p.ID] = p
	}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log).With("component", "mockapi")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.inject)
	s.routes(r)
	s.engine = r
	return s
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler { return s.engine }

// AddUser 注册用户，返回用户 ID
func (s *Server) AddUser(u User) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	u.ID = s.seq
	if u.UserType == "" {
		u.UserType = "customer"
	}
	s.users[u.ID] = &u
	return u.ID
}

// ExpireTokens 使所有已签发令牌失效
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]int)
}

// Fail 让后续 times 次匹配 "METHOD /path" 的请求返回指定状态码，times<0 表示一直失败
func (s *Server) Fail(method, path string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(method) + " " + path
	if times == 0 {
		delete(s.failures, key)
		return
	}
	s.failures[key] = &failure{status: status, times: times}
}

// DropCart 删除购物车，模拟服务端数据丢失
func (s *Server) DropCart(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	for lid, l := range s.lines {
		if l.CartID == id {
			delete(s.lines, lid)
		}
	}
}

// Calls 返回请求记录副本
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ResetCalls 清空请求记录
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Count 统计匹配方法与路径前缀的请求数
func (s *Server) Count(method, prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// CartCount 当前购物车数量
func (s *Server) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: c.Request.Method, Path: c.Request.URL.Path, Auth: c.GetHeader("Authorization")})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	s.mu.Lock()
	f, ok := s.failures[key]
	if ok {
		if f.times > 0 {
			f.times--
			if f.times == 0 {
				delete(s.failures, key)
			}
		}
	}
	s.mu.Unlock()

	if ok {
		s.log.Debug("注入失败响应", "route", key, "status", f.status)
		c.AbortWithStatusJSON(f.status, gin.H{"message": fmt.Sprintf("injected failure %d", f.status)})
		return
	}
	c.Next()
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func defaultProducts() []Product {
	return []Product{
		{ID: 1, Name: "Wireless Charger", Category: "chargers", Price: 39.9, Stock: 12, Image: "/img/p1.png", Images: []string{"/img/p1.png", "/img/p1_2.png"}},
		{ID: 2, Name: "Noise Cancelling Headphones", Category: "audio", Price: 74.9, Stock: 5, Image: "/img/p2.png"},
		{ID: 3, Name: "Shield Case", Category: "cases", Price: 24.9, Stock: 40},
		{ID: 4, Name: "Compact Keyboard", Category: "office", Price: 54.9, Stock: 8},
		{ID: 5, Name: "360 Speaker", Category: "audio", Price: 89.9, Stock: 3},
		{ID: 6, Name: "Earbuds", Category: "audio", Price: 49.9, Stock: 20},
	}
}
