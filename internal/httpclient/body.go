package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"thehub/pkg/traffic"
)

const contentTypeJSON = "application/json"

// encodeBody 生成请求体。GET/HEAD 永不携带请求体；
// 调用方已设置的 Content-Type 不会被覆盖，非 JSON 类型只接受 fmt.Stringer 形式的结构化请求体。
func encodeBody(method string, body any, h traffic.Header) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return nil, nil
	}

	switch b := body.(type) {
	case json.RawMessage:
		if !h.Has("Content-Type") {
			h.Set("Content-Type", contentTypeJSON)
		}
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	}

	if !h.Has("Content-Type") {
		h.Set("Content-Type", contentTypeJSON)
	}
	if ct := h.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), contentTypeJSON) {
		if st, ok := body.(fmt.Stringer); ok {
			return strings.NewReader(st.String()), nil
		}
		return nil, fmt.Errorf("encode body: %T cannot be sent as %q", body, ct)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(payload), nil
}
