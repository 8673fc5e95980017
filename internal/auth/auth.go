package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"thehub/internal/gateway"
	"thehub/internal/httpclient"
	"thehub/internal/logger"
	"thehub/internal/validation"
	"thehub/pkg/model"
)

const (
	msgSessionExpired = "session expired, please sign in again"
	msgLoginFailed    = "could not sign in, check your credentials"
	msgSignupFailed   = "could not create the account, please try again"

	defaultLoginPath = "/login"
	defaultBackoff   = 500 * time.Millisecond
)

// ErrForbidden 当前用户不是管理员
var ErrForbidden = errors.New("admin access required")

// Error 登录/注册失败，Message 为面向用户的描述
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Redirector 跳转到登录入口等页面
type Redirector interface {
	Redirect(path, reason string)
}

// RedirectFunc 函数形式的 Redirector
type RedirectFunc func(path, reason string)

func (f RedirectFunc) Redirect(path, reason string) { f(path, reason) }

// Options 认证服务配置
type Options struct {
	Gateway        *gateway.Gateway
	LoginPath      string
	RestoreRetries int           // 恢复会话时对网络错误与 5xx 的重试次数
	RetryBackoff   time.Duration // 线性退避基数
	Redirector     Redirector
	Logger         logger.Logger
}

// Service 认证状态机：unauthenticated / checking / authenticated
type Service struct {
	gw         *gateway.Gateway
	loginPath  string
	retries    int
	backoff    time.Duration
	redirector Redirector
	log        logger.Logger

	mu      sync.RWMutex
	status  model.Status
	profile *model.Profile
	lastErr string

	lmu       sync.Mutex
	lseq      int
	listeners []listener

	unsubscribe func()
}

type listener struct {
	id int
	fn func(model.Transition)
}

// New 创建认证服务；本地已有令牌时初始状态为 checking
func New(opts Options) *Service {
	if opts.Gateway == nil {
		panic("auth: gateway is required")
	}
	s := &Service{
		gw:         opts.Gateway,
		loginPath:  opts.LoginPath,
		retries:    opts.RestoreRetries,
		backoff:    opts.RetryBackoff,
		redirector: opts.Redirector,
		log:        logger.OrNop(opts.Logger).With("component", "auth"),
		status:     model.StatusUnauthenticated,
	}
	if s.loginPath == "" {
		s.loginPath = defaultLoginPath
	}
	if s.backoff <= 0 {
		s.backoff = defaultBackoff
	}
	if s.retries < 0 {
		s.retries = 0
	}
	if s.redirector == nil {
		s.redirector = RedirectFunc(func(string, string) {})
	}
	if s.gw.Store().Token().Get() != "" {
		s.status = model.StatusChecking
	}
	s.unsubscribe = s.gw.OnUnauthorized(s.handleUnauthorized)
	return s
}

// Close 取消未授权事件订阅
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Status 当前状态
func (s *Service) Status() model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// IsAuthenticated 是否已认证
func (s *Service) IsAuthenticated() bool { return s.Status() == model.StatusAuthenticated }

// Profile 当前用户资料，未认证时为 nil
func (s *Service) Profile() *model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	cp := *s.profile
	return &cp
}

// LastError 最近一次面向用户的错误描述
func (s *Service) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// RequireAdmin 仅管理员可通过
func (s *Service) RequireAdmin() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != model.StatusAuthenticated || !s.profile.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// Subscribe 订阅状态变化，仅在状态真正改变时回调
func (s *Service) Subscribe(fn func(model.Transition)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.lmu.Lock()
	s.lseq++
	id := s.lseq
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			defer s.lmu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Restore 启动时用已保存的令牌恢复会话
//
// 401 清除会话并跳转登录；其它 4xx 清除会话不跳转；网络错误与 5xx 按配置重试，
// 全部失败后清除会话不跳转。
func (s *Service) Restore(ctx context.Context) (*model.Profile, error) {
	if s.gw.Store().Token().Get() == "" {
		s.transition(func() { s.status = model.StatusUnauthenticated })
		return nil, nil
	}
	s.transition(func() { s.status = model.StatusChecking })

	var err error
retry:
	for attempt := 0; ; attempt++ {
		var p *model.Profile
		p, err = s.fetchProfile(ctx)
		if err == nil {
			s.transition(func() {
				s.status = model.StatusAuthenticated
				s.profile = p
				s.lastErr = ""
			})
			s.log.Info("会话已恢复", "user", p.ID)
			return p, nil
		}
		if !transient(err) || attempt >= s.retries {
			break
		}

		s.log.Warn("恢复会话失败，准备重试", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(time.Duration(attempt+1) * s.backoff):
		}
	}

	msg := ExtractMessage(err, msgSessionExpired)
	if httpclient.IsStatus(err, http.StatusUnauthorized) {
		s.expire(msg)
		return nil, err
	}
	s.log.Warn("恢复会话失败，清除本地令牌", "error", err)
	s.clear(msg)
	return nil, err
}

// Login 提交凭据，保存令牌后拉取用户资料
func (s *Service) Login(ctx context.Context, c Credentials) (*model.Profile, error) {
	payload, err := LoginPayload(c)
	if err != nil {
		return nil, err
	}
	return s.exchange(ctx, "/auth/login", payload, msgLoginFailed)
}

// Signup 提交注册信息，成功后等同于登录
func (s *Service) Signup(ctx context.Context, payload map[string]any) (*model.Profile, error) {
	if payload == nil {
		return nil, validation.New("auth.signup", "", "payload must be an object")
	}
	return s.exchange(ctx, "/auth/signup", payload, msgSignupFailed)
}

// Logout 清除会话，永不失败
func (s *Service) Logout() {
	s.clear("")
	s.log.Info("用户已登出")
}

func (s *Service) exchange(ctx context.Context, path string, body any, fallback string) (*model.Profile, error) {
	s.transition(func() {
		s.status = model.StatusChecking
		s.lastErr = ""
	})

	p, err := s.submit(ctx, path, body)
	if err != nil {
		msg := ExtractMessage(err, fallback)
		s.log.Warn("认证失败", "path", path, "message", msg)
		s.clear(msg)
		return nil, &Error{Message: msg, Err: err}
	}

	s.transition(func() {
		s.status = model.StatusAuthenticated
		s.profile = p
	})
	s.log.Info("认证成功", "user", p.ID, "userType", p.UserType)
	return p, nil
}

func (s *Service) submit(ctx context.Context, path string, body any) (*model.Profile, error) {
	res, err := s.gw.Auth().Post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	if token := ExtractToken(res.Body); token != "" {
		s.gw.Store().Token().Set(token)
	}
	return s.fetchProfile(ctx)
}

func (s *Service) fetchProfile(ctx context.Context) (*model.Profile, error) {
	res, err := s.gw.Auth().Get(ctx, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	return ParseProfile(res.Body)
}

// handleUnauthorized 任意状态下收到未授权事件：登出并跳转登录入口
func (s *Service) handleUnauthorized() {
	s.log.Warn("收到未授权事件，强制登出")
	s.clear(msgSessionExpired)
	s.redirector.Redirect(s.loginPath, msgSessionExpired)
}

// expire 清除会话；未授权事件已处理过跳转时不再重复跳转
func (s *Service) expire(msg string) {
	s.mu.RLock()
	wasActive := s.status != model.StatusUnauthenticated
	s.mu.RUnlock()

	s.clear(msg)
	if wasActive {
		s.redirector.Redirect(s.loginPath, msg)
	}
}

func (s *Service) clear(msg string) {
	s.gw.Store().Token().Clear()
	s.transition(func() {
		s.status = model.StatusUnauthenticated
		s.profile = nil
		s.lastErr = msg
	})
}

// transition 在锁内修改状态，锁外通知订阅者
func (s *Service) transition(mutate func()) {
	s.mu.Lock()
	from := s.status
	mutate()
	to := s.status
	s.mu.Unlock()

	if from == to {
		return
	}
	s.log.Debug("认证状态变化", "from", string(from), "to", string(to))

	s.lmu.Lock()
	ls := make([]listener, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.Unlock()

	t := model.Transition{From: from, To: to}
	for _, l := range ls {
		l.fn(t)
	}
}

// transient 网络错误与 5xx 视为临时故障
func transient(err error) bool {
	if httpclient.IsConnectivity(err) {
		return true
	}
	code, ok := httpclient.StatusCode(err)
	return ok && code >= 500
}
