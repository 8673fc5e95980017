package gateway

import (
	"fmt"
	"sync"

	"thehub/internal/logger"
)

// Emitter 未授权事件的订阅者集合
type Emitter struct {
	mu   sync.Mutex
	seq  uint64
	subs []subscriber
	log  logger.Logger
}

type subscriber struct {
	id uint64
	fn func()
}

// NewEmitter 创建事件发布器
func NewEmitter(l logger.Logger) *Emitter {
	return &Emitter{log: logger.OrNop(l)}
}

// Subscribe 注册回调，返回的函数只移除本次注册，可重复调用
func (e *Emitter) Subscribe(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	e.seq++
	id := e.seq
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}

// Len 当前订阅数量
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Emit 依次调用所有订阅者；单个订阅者 panic 只记录日志，不影响其它订阅者
func (e *Emitter) Emit() {
	e.mu.Lock()
	subs := make([]subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, s := range subs {
		e.call(s)
	}
}

func (e *Emitter) call(s subscriber) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Err(fmt.Errorf("%v", r), "未授权回调执行失败", "subscriber", s.id)
		}
	}()
	s.fn()
}
