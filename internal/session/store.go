package session

import (
	"fmt"
	"sync"

	"thehub/internal/logger"
)

// Backend 持久化键值存储
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Keys 两个槽位对应的存储键
type Keys struct {
	Token string `yaml:"token_key"`
	Cart  string `yaml:"cart_key"`
}

// DefaultKeys 默认存储键
var DefaultKeys = Keys{Token: "THEHUB_TOKEN", Cart: "THEHUB_CART_ID"}

// Store 会话存储：令牌与购物车 ID 两个独立槽位
//
// 所有操作同步执行且不返回错误；后端不可用时退化为空操作。
type Store struct {
	mu      sync.RWMutex
	backend Backend
	keys    Keys
	log     logger.Logger
}

// New 创建会话存储，backend 为 nil 时所有读取返回空
func New(b Backend, keys Keys, l logger.Logger) *Store {
	if keys.Token == "" {
		keys.Token = DefaultKeys.Token
	}
	if keys.Cart == "" {
		keys.Cart = DefaultKeys.Cart
	}
	return &Store{backend: b, keys: keys, log: logger.OrNop(l)}
}

// Token 令牌槽位
func (s *Store) Token() Slot { return Slot{store: s, key: s.keys.Token} }

// Cart 购物车 ID 槽位
func (s *Store) Cart() Slot { return Slot{store: s, key: s.keys.Cart} }

// Clear 清空两个槽位
func (s *Store) Clear() {
	s.Token().Clear()
	s.Cart().Clear()
}

func (s *Store) get(key string) (val string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backend == nil {
		return ""
	}
	defer s.guard("读取", key)

	v, ok, err := s.backend.Get(key)
	if err != nil {
		s.log.Err(err, "读取会话存储失败", "key", key)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Store) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return
	}
	defer s.guard("写入", key)

	var err error
	if value == "" {
		err = s.backend.Delete(key)
	} else {
		err = s.backend.Set(key, value)
	}
	if err != nil {
		s.log.Err(err, "写入会话存储失败", "key", key)
	}
}

func (s *Store) guard(op, key string) {
	if r := recover(); r != nil {
		s.log.Err(fmt.Errorf("%v", r), "会话存储异常", "op", op, "key", key)
	}
}

// Slot 单个持久化槽位
type Slot struct {
	store *Store
	key   string
}

// Key 槽位存储键
func (s Slot) Key() string { return s.key }

// Get 读取值，不存在时返回空串
func (s Slot) Get() string { return s.store.get(s.key) }

// Set 写入值；空值等价于删除
func (s Slot) Set(v string) { s.store.set(s.key, v) }

// Clear 删除槽位
func (s Slot) Clear() { s.store.set(s.key, "") }
