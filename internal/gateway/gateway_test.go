package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"thehub/internal/httpclient"
	"thehub/internal/session"
	"thehub/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, h http.HandlerFunc) (*Gateway, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	store := session.New(session.NewMemory(), session.DefaultKeys, nil)
	return New(Options{AuthBaseURL: srv.URL, CoreBaseURL: srv.URL, Store: store}), store
}

func TestGateway_InjectsBearer(t *testing.T) {
	var got atomic.Value
	g, store := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
	})

	_, err := g.Core().Get(context.Background(), "/product", nil)
	require.NoError(t, err)
	assert.Equal(t, "", got.Load())

	store.Token().Set("tok")
	_, err = g.Auth().Get(context.Background(), "/auth/me", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", got.Load())
}

func TestGateway_UnauthorizedClearsOnceUnderConcurrency(t *testing.T) {
	const n = 8
	var arrived int32
	gate := make(chan struct{})
	g, store := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		// 所有请求都携带旧令牌到达后才统一返回 401
		if atomic.AddInt32(&arrived, 1) == n {
			close(gate)
		}
		<-gate
		w.WriteHeader(http.StatusUnauthorized)
	})
	store.Token().Set("expired")
	store.Cart().Set("c1")

	var a, b int32
	g.OnUnauthorized(func() { atomic.AddInt32(&a, 1) })
	g.OnUnauthorized(func() { atomic.AddInt32(&b, 1) })

	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := g.Core()
			if i%2 == 0 {
				c = g.Auth()
			}
			_, err := c.Get(context.Background(), "/cart/c1", nil)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.Error(t, err)
		assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&a))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b))
	assert.Equal(t, "", store.Token().Get())
	assert.Equal(t, "c1", store.Cart().Get())
}

func TestGateway_AnonymousUnauthorizedEmits(t *testing.T) {
	g, store := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	var calls int32
	g.OnUnauthorized(func() { atomic.AddInt32(&calls, 1) })

	_, err := g.Auth().Post(context.Background(), "/auth/login", map[string]any{"email": "a@b.c"})
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, store.Token().Get())

	_, err = g.Core().Get(context.Background(), "/cart/c1", nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGateway_StaleTokenUnauthorizedSkipped(t *testing.T) {
	var store *session.Store
	g, s := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		// 响应返回前令牌已被新登录替换
		store.Token().Set("fresh")
		w.WriteHeader(http.StatusUnauthorized)
	})
	store = s
	store.Token().Set("old")
	called := false
	g.OnUnauthorized(func() { called = true })

	_, err := g.Core().Get(context.Background(), "/cart/c1", nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	assert.False(t, called)
	assert.Equal(t, "fresh", store.Token().Get())
}

func TestGateway_UnauthorizedNotSwallowedByLaterHandler(t *testing.T) {
	g, store := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	store.Token().Set("tok")

	later := 0
	g.Core().UseResponse(httpclient.ResponseInterceptor{
		OnError: func(_ context.Context, te *httpclient.TransportError) (*traffic.Response, error) {
			later++
			return traffic.NewResponse(te.Request), nil
		},
	})

	res, err := g.Core().Get(context.Background(), "/cart/c1", nil)
	assert.Nil(t, res)
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	assert.Zero(t, later)
	assert.Empty(t, store.Token().Get())
}

func TestGateway_InterceptorsRunBeforeUnauthorizedHandling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/denied" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	seen := map[Surface][]int{}
	var mu sync.Mutex
	g := New(Options{
		AuthBaseURL:  srv.URL,
		CoreBaseURL:  srv.URL,
		Interceptors: func(surface Surface, c *httpclient.Client) {
			c.UseResponse(httpclient.ResponseInterceptor{
				OnError: func(_ context.Context, te *httpclient.TransportError) (*traffic.Response, error) {
					mu.Lock()
					seen[surface] = append(seen[surface], te.StatusCode())
					mu.Unlock()
					return nil, nil
				},
			})
		},
	})

	_, err := g.Auth().Get(context.Background(), "/denied", nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	_, err = g.Core().Get(context.Background(), "/other", nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusForbidden))

	assert.Equal(t, []int{http.StatusUnauthorized}, seen[SurfaceAuth])
	assert.Equal(t, []int{http.StatusForbidden}, seen[SurfaceCore])
}

func TestGateway_OtherStatusesKeepToken(t *testing.T) {
	g, store := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store.Token().Set("tok")
	called := false
	g.OnUnauthorized(func() { called = true })

	_, err := g.Core().Get(context.Background(), "/x", nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusForbidden))
	assert.False(t, called)
	assert.Equal(t, "tok", store.Token().Get())
}

func TestGateway_SubscriberPanicIsolated(t *testing.T) {
	g, store := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	store.Token().Set("tok")

	second := false
	g.OnUnauthorized(func() { panic("subscriber failed") })
	g.OnUnauthorized(func() { second = true })

	_, err := g.Core().Get(context.Background(), "/x", nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	assert.True(t, second)
}

func TestEmitter_UnsubscribeRemovesExactlyOne(t *testing.T) {
	em := NewEmitter(nil)
	count := 0
	fn := func() { count++ }

	un1 := em.Subscribe(fn)
	em.Subscribe(fn)
	assert.Equal(t, 2, em.Len())

	un1()
	un1()
	assert.Equal(t, 1, em.Len())

	em.Emit()
	assert.Equal(t, 1, count)
}

func TestEmitter_SubscribeDuringEmit(t *testing.T) {
	em := NewEmitter(nil)
	var late int
	em.Subscribe(func() {
		em.Subscribe(func() { late++ })
	})

	em.Emit()
	assert.Equal(t, 0, late)
	em.Emit()
	assert.Equal(t, 1, late)
}
