package httpclient

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"thehub/pkg/traffic"
)

// BuildURL 拼接 baseURL 与 path，并追加查询参数
//
// nil 与空字符串被丢弃；切片按顺序重复追加同名键；标量覆盖同名键。
func BuildURL(baseURL, path string, params traffic.Params) (string, error) {
	target := joinURL(baseURL, path)
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}

	if len(params) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rv, ok := paramValue(params[k])
		if !ok {
			continue
		}
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for i := 0; i < rv.Len(); i++ {
				if ev, ok := paramValue(rv.Index(i).Interface()); ok {
					q.Add(k, fmt.Sprint(ev.Interface()))
				}
			}
			continue
		}
		q.Set(k, fmt.Sprint(rv.Interface()))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func joinURL(baseURL, path string) string {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || baseURL == "" {
		return path
	}
	if path == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// paramValue 解引用并过滤 nil / 空字符串
func paramValue(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.String && rv.Len() == 0 {
		return reflect.Value{}, false
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return reflect.Value{}, false
	}
	return rv, true
}
