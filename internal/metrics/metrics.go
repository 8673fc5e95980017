// Package metrics 以拦截器形式统计客户端请求
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"thehub/internal/httpclient"
	"thehub/pkg/traffic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 请求计数器
type Collector struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	unauthorized *prometheus.CounterVec
}

// NewCollector 创建独立注册表的采集器
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "thehub"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Completed HTTP exchanges by API surface, method and status code",
		},
		[]string{"surface", "method", "code"},
	)
	c.unauthorized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "unauthorized_total",
			Help:      "Responses with status 401 by API surface",
		},
		[]string{"surface"},
	)
	c.registry.MustRegister(c.requests, c.unauthorized)
	return c
}

// Registry 底层注册表
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler 以 Prometheus 文本格式暴露指标
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Instrument 为客户端安装计数拦截器，返回注册 ID
//
// OnError 只计数不处理，须安装在会抛出错误的处理器之前。
func (c *Collector) Instrument(surface string, client *httpclient.Client) int {
	return client.UseResponse(httpclient.ResponseInterceptor{
		OnResponse: func(_ context.Context, res *traffic.Response) (*traffic.Response, error) {
			c.observe(surface, res)
			return res, nil
		},
		OnError: func(_ context.Context, te *httpclient.TransportError) (*traffic.Response, error) {
			c.observe(surface, te.Response)
			if te.StatusCode() == http.StatusUnauthorized {
				c.unauthorized.WithLabelValues(surface).Inc()
			}
			return nil, nil
		},
	})
}

// RequestsVec 请求计数器
func (c *Collector) RequestsVec() *prometheus.CounterVec { return c.requests }

// UnauthorizedVec 401 计数器
func (c *Collector) UnauthorizedVec() *prometheus.CounterVec { return c.unauthorized }

// Sample 单个计数器的当前值
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Snapshot 采集当前所有计数器
func (c *Collector) Snapshot() ([]Sample, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, Sample{Name: mf.GetName(), Labels: labels, Value: m.GetCounter().GetValue()})
		}
	}
	return out, nil
}

func (c *Collector) observe(surface string, res *traffic.Response) {
	if res == nil {
		return
	}
	method := http.MethodGet
	if res.Request != nil && res.Request.Method != "" {
		method = strings.ToUpper(res.Request.Method)
	}
	c.requests.WithLabelValues(surface, method, strconv.Itoa(res.StatusCode)).Inc()
}
