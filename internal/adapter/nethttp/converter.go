package nethttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"thehub/pkg/traffic"

	"github.com/tidwall/gjson"
)

// ToHTTPRequest 将中立 Request 模型转换为 net/http 请求
func ToHTTPRequest(ctx context.Context, req *traffic.Request, target string, body io.Reader) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	hr, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}
	return hr, nil
}

// ToNeutralResponse 读取完整响应体并转换为中立 Response 模型
func ToNeutralResponse(resp *http.Response, req *traffic.Request) (*traffic.Response, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	res := traffic.NewResponse(req)
	res.StatusCode = resp.StatusCode
	res.StatusText = statusText(resp)
	res.Headers = ToNeutralHeader(resp.Header)
	res.Body = DecodePayload(res.Headers.Get("Content-Type"), raw)
	return res, nil
}

// ToNeutralHeader 将 net/http Header 转换为中立 Header，多值以逗号连接
func ToNeutralHeader(h http.Header) traffic.Header {
	out := make(traffic.Header, len(h))
	for k, vs := range h {
		out.Set(k, strings.Join(vs, ", "))
	}
	return out
}

// DecodePayload 按 Content-Type 解码响应体
func DecodePayload(contentType string, raw []byte) traffic.Payload {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json") || strings.Contains(ct, "+json"):
		// JSON 解析失败时视为空响应体
		if len(raw) == 0 || !gjson.ValidBytes(raw) {
			return traffic.Payload{Kind: traffic.BodyNone}
		}
		return traffic.JSONPayload(raw)
	case strings.Contains(ct, "application/octet-stream") || strings.Contains(ct, "image/"):
		return traffic.Payload{Kind: traffic.BodyBlob, Raw: raw}
	case strings.Contains(ct, "text/"):
		return traffic.Payload{Kind: traffic.BodyText, Raw: raw}
	default:
		if len(raw) == 0 || !utf8.Valid(raw) {
			return traffic.Payload{Kind: traffic.BodyNone}
		}
		return traffic.Payload{Kind: traffic.BodyText, Raw: raw}
	}
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
