package traffic

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// BodyKind 响应体类型
type BodyKind string

const (
	BodyNone BodyKind = "none"
	BodyJSON BodyKind = "json"
	BodyText BodyKind = "text"
	BodyBlob BodyKind = "blob"
)

// Payload 按 Content-Type 解码后的响应体
type Payload struct {
	Kind BodyKind
	Raw  []byte
}

// JSONPayload 构造 JSON 响应体
func JSONPayload(raw []byte) Payload { return Payload{Kind: BodyJSON, Raw: raw} }

// TextPayload 构造文本响应体
func TextPayload(s string) Payload { return Payload{Kind: BodyText, Raw: []byte(s)} }

// IsNull 是否为空响应体（包括 JSON null）
func (p Payload) IsNull() bool {
	if p.Kind == BodyNone {
		return true
	}
	if p.Kind == BodyJSON {
		return p.JSON().Type == gjson.Null
	}
	return false
}

// JSON 以 gjson 方式访问结构化响应体，非 JSON 返回空结果
func (p Payload) JSON() gjson.Result {
	if p.Kind != BodyJSON {
		return gjson.Result{}
	}
	return gjson.ParseBytes(p.Raw)
}

// Get 按 gjson 路径读取字段
func (p Payload) Get(path string) gjson.Result {
	if p.Kind != BodyJSON {
		return gjson.Result{}
	}
	return gjson.GetBytes(p.Raw, path)
}

// Text 返回文本形式；JSON 字符串会去掉引号
func (p Payload) Text() string {
	switch p.Kind {
	case BodyText:
		return string(p.Raw)
	case BodyJSON:
		if r := p.JSON(); r.Type == gjson.String {
			return r.Str
		}
		return string(p.Raw)
	default:
		return ""
	}
}

// Decode 将 JSON 响应体解码到目标结构
func (p Payload) Decode(v any) error {
	if p.Kind != BodyJSON {
		return nil
	}
	return json.Unmarshal(p.Raw, v)
}
