package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"thehub/internal/httpclient"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_CountsResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/denied":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewCollector("")
	client := httpclient.New(httpclient.Config{BaseURL: srv.URL})
	c.Instrument("core", client)

	ctx := context.Background()
	_, err := client.Get(ctx, "/ok", nil)
	require.NoError(t, err)
	_, err = client.Get(ctx, "/ok", nil)
	require.NoError(t, err)
	_, err = client.Get(ctx, "/denied", nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	_, err = client.Delete(ctx, "/missing")
	assert.True(t, httpclient.IsStatus(err, http.StatusNotFound))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.RequestsVec().WithLabelValues("core", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RequestsVec().WithLabelValues("core", "GET", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RequestsVec().WithLabelValues("core", "DELETE", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.UnauthorizedVec().WithLabelValues("core")))

	samples, err := c.Snapshot()
	require.NoError(t, err)
	assert.Len(t, samples, 4)
}

func TestHandler_ExposesText(t *testing.T) {
	c := NewCollector("thehub")
	c.UnauthorizedVec().WithLabelValues("auth").Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `thehub_http_unauthorized_total{surface="auth"} 1`)
}
