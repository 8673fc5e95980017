package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"thehub/internal/mockapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	cfgPath string
	mock    *mockapi.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mock := mockapi.New()
	mock.AddUser(mockapi.User{Name: "Ana", Email: "ana@hub.test", Password: "pw"})
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "api:\n" +
		"  auth_base_url: " + srv.URL + "\n" +
		"  core_base_url: " + srv.URL + "\n" +
		"sqlite:\n" +
		"  dsn: " + filepath.Join(dir, "session.sqlite3") + "\n" +
		"log:\n" +
		"  writer: []\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return &harness{t: t, cfgPath: cfgPath, mock: mock}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(nil)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", h.cfgPath, "--env", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_SessionAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")

	out, err = h.run("login", "ana@hub.test", "-p", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as Ana <ana@hub.test>")

	out, err = h.run("cart", "add", "2", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Noise Cancelling Headphones")
	assert.Contains(t, out, "2 item(s), total 149.80")

	// 用户占用 ID 1，登录后创建的购物车为 c2，第一行为 l3
	out, err = h.run("cart", "inc", "l3")
	require.NoError(t, err)
	assert.Contains(t, out, "3 item(s)")

	out, err = h.run("cart", "dec", "l3")
	require.NoError(t, err)
	assert.Contains(t, out, "2 item(s)")

	out, err = h.run("cart", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "0 item(s)")

	out, err = h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana <ana@hub.test>")
	assert.Contains(t, out, "role=customer")

	out, err = h.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	out, err = h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")
}

func TestCLI_LoginFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("login", "ana@hub.test", "-p", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials.", err.Error())

	_, err = h.run("login", "ana@hub.test")
	assert.Error(t, err)
}

func TestCLI_Products(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("products", "list", "--category", "audio")
	require.NoError(t, err)
	assert.Contains(t, out, "Earbuds")
	assert.NotContains(t, out, "Shield Case")

	out, err = h.run("products", "get", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Wireless Charger")
	assert.Contains(t, out, "images: /img/p1.png, /img/p1_2.png")

	out, err = h.run("products", "related", "2", "-n", "1", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "360 Speaker")
	assert.Contains(t, out, "core GET 200  1")
}

func TestCLI_BadQuantity(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("cart", "add", "2", "many")
	assert.Error(t, err)
	_, err = h.run("cart", "add", "2", "0")
	assert.Error(t, err)
}

func TestParseUser(t *testing.T) {
	u, err := parseUser("root@hub.test:pw:admin")
	require.NoError(t, err)
	assert.Equal(t, "root@hub.test", u.Email)
	assert.Equal(t, "root", u.Username)
	assert.Equal(t, "admin", u.UserType)

	u, err = parseUser("ana@hub.test:pw")
	require.NoError(t, err)
	assert.Empty(t, u.UserType)

	_, err = parseUser("ana@hub.test")
	assert.Error(t, err)
}
