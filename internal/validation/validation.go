package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	validatorv10 "github.com/go-playground/validator/v10"
)

// ErrInvalid 所有校验错误的哨兵值
var ErrInvalid = errors.New("invalid input")

// Error 调用方输入错误，在发起任何网络请求之前返回
type Error struct {
	Op     string
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", e.Op, e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalid }

// New 构造校验错误
func New(op, field, reason string) error {
	return &Error{Op: op, Field: field, Reason: reason}
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalid)
}

var (
	once     sync.Once
	validate *validatorv10.Validate
)

// Validator 返回共享的 validator 实例，字段名取 json 标签
func Validator() *validatorv10.Validate {
	once.Do(func() {
		validate = validatorv10.New(validatorv10.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct 校验结构体，返回第一个失败字段对应的 *Error
func Struct(op string, s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return &Error{Op: op, Field: fe.Field(), Reason: reason(fe)}
	}
	return &Error{Op: op, Reason: err.Error()}
}

func reason(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "email":
		return "must be a valid email"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
