package mockapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func do(t *testing.T, s *Server, method, path, body, token string) (int, gjson.Result) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec.Code, gjson.Parse(rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	s := New()
	s.AddUser(User{Name: "Ana", Email: "Ana@Hub.test", Username: "ana", Password: "pw"})

	code, res := do(t, s, http.MethodPost, "/auth/login", `{"email":"ana@hub.test","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, code)
	token := res.Get("authToken").String()
	require.NotEmpty(t, token)

	code, res = do(t, s, http.MethodGet, "/auth/me", "", token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ana", res.Get("name").String())
	assert.Equal(t, "customer", res.Get("user_type").String())
	assert.False(t, res.Get("password").Exists())

	code, _ = do(t, s, http.MethodPost, "/auth/login", `{"username":"ana","password":"bad"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	s.ExpireTokens()
	code, _ = do(t, s, http.MethodGet, "/auth/me", "", token)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignup(t *testing.T) {
	s := New()
	code, res := do(t, s, http.MethodPost, "/auth/signup", `{"email":"a@b.c","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, res.Get("authToken").String())

	code, res = do(t, s, http.MethodPost, "/auth/signup", `{"email":"A@B.c","password":"pw"}`, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, res.Get("error").String())

	code, res = do(t, s, http.MethodPost, "/auth/signup", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, res.Get("errors.0.message").String())
}

func TestCartLifecycle(t *testing.T) {
	s := New()

	code, res := do(t, s, http.MethodPost, "/cart", "", "")
	require.Equal(t, http.StatusOK, code)
	cartID := res.Get("id").String()
	assert.Equal(t, "c1", cartID)
	assert.Equal(t, 1, s.CartCount())

	code, res = do(t, s, http.MethodPost, "/cart_item", `{"cart_id":"c1","product_id":2,"quantity":1}`, "")
	require.Equal(t, http.StatusOK, code)
	lineID := res.Get("id").String()

	code, _ = do(t, s, http.MethodPost, "/cart_item", `{"cart_id":"c1","product_id":2,"quantity":2}`, "")
	require.Equal(t, http.StatusOK, code)

	code, res = do(t, s, http.MethodGet, "/cart/c1", "", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Get("items").Array(), 1)
	assert.EqualValues(t, 3, res.Get("items.0.quantity").Int())
	assert.Equal(t, "Noise Cancelling Headphones", res.Get("items.0.product.name").String())

	code, _ = do(t, s, http.MethodPatch, "/cart_item/"+lineID, `{"quantity":0}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, s, http.MethodPatch, "/cart_item/"+lineID, `{"quantity":5}`, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodDelete, "/cart_item/"+lineID, "", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodDelete, "/cart_item/"+lineID, "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodPost, "/cart_item", `{"cart_id":"c1","product_id":42,"quantity":1}`, "")
	assert.Equal(t, http.StatusBadRequest, code)

	s.DropCart("c1")
	code, _ = do(t, s, http.MethodGet, "/cart/c1", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, s, http.MethodPost, "/cart_item", `{"cart_id":"c1","product_id":2,"quantity":1}`, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCartOwner(t *testing.T) {
	s := New()
	id := s.AddUser(User{Email: "a@b.c", Password: "pw"})
	_, res := do(t, s, http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"pw"}`, "")

	_, cart := do(t, s, http.MethodPost, "/cart", "", res.Get("authToken").String())
	assert.EqualValues(t, id, cart.Get("user_id").Int())

	_, anon := do(t, s, http.MethodPost, "/cart", "", "")
	assert.Equal(t, gjson.Null, anon.Get("user_id").Type)
}

func TestProducts(t *testing.T) {
	s := New(WithProducts(
		Product{ID: 1, Name: "A", Category: "x", Price: 1},
		Product{ID: 2, Name: "B", Category: "x", Price: 2},
		Product{ID: 3, Name: "C", Category: "y", Price: 3},
	))

	_, res := do(t, s, http.MethodGet, "/product", "", "")
	assert.Len(t, res.Array(), 3)

	_, res = do(t, s, http.MethodGet, "/product?category=X&wrap=items", "", "")
	assert.Len(t, res.Get("items").Array(), 2)

	code, res := do(t, s, http.MethodGet, "/product/3", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "C", res.Get("name").String())

	_, res = do(t, s, http.MethodGet, "/product/1/related?n=5", "", "")
	require.Len(t, res.Get("items").Array(), 1)
	assert.EqualValues(t, 2, res.Get("items.0.id").Int())

	code, _ = do(t, s, http.MethodGet, "/product/9/related", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFailureInjection(t *testing.T) {
	s := New()
	s.Fail(http.MethodGet, "/product", http.StatusServiceUnavailable, 2)

	for i := 0; i < 2; i++ {
		code, res := do(t, s, http.MethodGet, "/product", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "injected failure 503", res.Get("message").String())
	}
	code, _ := do(t, s, http.MethodGet, "/product", "", "")
	assert.Equal(t, http.StatusOK, code)

	s.Fail(http.MethodGet, "/product", http.StatusInternalServerError, -1)
	for i := 0; i < 3; i++ {
		code, _ = do(t, s, http.MethodGet, "/product", "", "")
		assert.Equal(t, http.StatusInternalServerError, code)
	}
	s.Fail(http.MethodGet, "/product", 0, 0)
	code, _ = do(t, s, http.MethodGet, "/product", "", "")
	assert.Equal(t, http.StatusOK, code)

	assert.Equal(t, 7, s.Count(http.MethodGet, "/product"))
	s.ResetCalls()
	assert.Empty(t, s.Calls())
}
