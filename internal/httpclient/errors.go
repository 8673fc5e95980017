package httpclient

import (
	"errors"
	"fmt"

	"thehub/pkg/traffic"
)

// TransportError 请求已完成但状态码不在 2xx 范围
type TransportError struct {
	Request  *traffic.Request
	Response *traffic.Response
}

func (e *TransportError) Error() string {
	if e == nil || e.Response == nil {
		return "request failed"
	}
	return fmt.Sprintf("request failed with status code %d", e.Response.StatusCode)
}

// StatusCode 返回响应状态码
func (e *TransportError) StatusCode() int {
	if e == nil || e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// ConnectivityError 未收到任何响应（网络不可达、DNS、超时等）
type ConnectivityError struct {
	Request *traffic.Request
	Err     error
}

func (e *ConnectivityError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Request != nil {
		return fmt.Sprintf("%s %s: %v", e.Request.Method, e.Request.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ConnectivityError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusCode 从错误链中提取 HTTP 状态码
func StatusCode(err error) (int, bool) {
	var te *TransportError
	if errors.As(err, &te) && te.Response != nil {
		return te.Response.StatusCode, true
	}
	return 0, false
}

// IsStatus 判断错误是否为指定状态码的 TransportError
func IsStatus(err error, code int) bool {
	sc, ok := StatusCode(err)
	return ok && sc == code
}

// IsConnectivity 判断错误是否为连接失败
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
