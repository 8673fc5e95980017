package auth

import (
	"encoding/json"
	"errors"
	"strings"

	"thehub/internal/httpclient"
	"thehub/internal/validation"
	"thehub/pkg/model"
	"thehub/pkg/traffic"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Credentials 登录凭据；Email / Username 优先于 Identifier
type Credentials struct {
	Identifier string         `json:"identifier"`
	Email      string         `json:"email"`
	Username   string         `json:"username"`
	Password   string         `json:"password" validate:"required"`
	Extra      map[string]any `json:"-"` // 原样透传的附加字段
}

// LoginPayload 生成 /auth/login 请求体
func LoginPayload(c Credentials) (json.RawMessage, error) {
	if err := validation.Struct("auth.login", c); err != nil {
		return nil, err
	}

	raw := []byte("{}")
	if len(c.Extra) > 0 {
		b, err := json.Marshal(c.Extra)
		if err != nil {
			return nil, validation.New("auth.login", "extra", "must be JSON encodable")
		}
		raw = b
	}

	var err error
	if raw, err = sjson.SetBytes(raw, "password", c.Password); err != nil {
		return nil, err
	}

	identifier := strings.TrimSpace(c.Identifier)
	switch {
	case strings.TrimSpace(c.Email) != "":
		raw, err = sjson.SetBytes(raw, "email", strings.TrimSpace(c.Email))
	case strings.TrimSpace(c.Username) != "":
		raw, err = sjson.SetBytes(raw, "username", strings.TrimSpace(c.Username))
	case strings.Contains(identifier, "@"):
		raw, err = sjson.SetBytes(raw, "email", identifier)
	case identifier != "":
		raw, err = sjson.SetBytes(raw, "username", identifier)
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// ExtractToken 按优先级提取令牌：裸字符串、authToken、token
func ExtractToken(body traffic.Payload) string {
	if body.Kind == traffic.BodyText {
		return strings.TrimSpace(body.Text())
	}
	doc := body.JSON()
	switch {
	case doc.Type == gjson.String:
		return doc.Str
	case nonEmptyString(doc.Get("authToken")):
		return doc.Get("authToken").Str
	case nonEmptyString(doc.Get("token")):
		return doc.Get("token").Str
	}
	return ""
}

// ExtractMessage 从错误中提取面向用户的描述
//
// 优先级：字符串响应体、message、error、errors[0]、detail；
// 非 HTTP 状态错误使用其自身描述，其余返回 fallback。
func ExtractMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var te *httpclient.TransportError
	if !errors.As(err, &te) {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
		return fallback
	}
	if te.Response == nil {
		return fallback
	}

	body := te.Response.Body
	if body.Kind == traffic.BodyText {
		if s := strings.TrimSpace(body.Text()); s != "" {
			return body.Text()
		}
		return fallback
	}

	doc := body.JSON()
	if doc.Type == gjson.String && strings.TrimSpace(doc.Str) != "" {
		return doc.Str
	}
	if !doc.IsObject() {
		return fallback
	}
	for _, path := range []string{"message", "error"} {
		if v := doc.Get(path); nonEmptyString(v) {
			return v.Str
		}
	}
	if first := doc.Get("errors.0"); first.Exists() {
		if first.Type == gjson.String {
			return first.Str
		}
		if m := first.Get("message"); m.Type == gjson.String {
			return m.Str
		}
	}
	if v := doc.Get("detail"); nonEmptyString(v) {
		return v.Str
	}
	return fallback
}

// ParseProfile 解析 /auth/me 响应
func ParseProfile(body traffic.Payload) (*model.Profile, error) {
	doc := body.JSON()
	if !doc.IsObject() {
		return nil, errors.New("profile response is not an object")
	}
	p := &model.Profile{
		ID:       doc.Get("id").String(),
		Name:     doc.Get("name").String(),
		Email:    doc.Get("email").String(),
		UserType: doc.Get("user_type").String(),
		Raw:      []byte(doc.Raw),
	}
	return p, nil
}

func nonEmptyString(r gjson.Result) bool {
	return r.Type == gjson.String && strings.TrimSpace(r.Str) != ""
}
