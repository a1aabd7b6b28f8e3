// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown       Code = "UNKNOWN"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeTimeout       Code = "TIMEOUT"

	// 求解相关
	CodeInfeasible          Code = "INFEASIBLE"
	CodeNoIncumbent         Code = "TIMEOUT_NO_INCUMBENT"
	CodeSolverUnavailable   Code = "SOLVER_UNAVAILABLE"
	CodeMalformedConstraint Code = "MALFORMED_CONSTRAINT"
	CodeInvalidPhase        Code = "INVALID_PHASE"

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// 预定义错误
var (
	ErrNotFound          = New(CodeNotFound, "资源不存在")
	ErrInvalidInput      = New(CodeInvalidInput, "输入参数无效")
	ErrInternal          = New(CodeInternal, "内部错误")
	ErrInfeasible        = New(CodeInfeasible, "模型不可行")
	ErrNoIncumbent       = New(CodeNoIncumbent, "求解超时且无可行解")
	ErrSolverUnavailable = New(CodeSolverUnavailable, "求解器不可用")
)

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// Infeasible 创建模型不可行错误
func Infeasible(reason string) *AppError {
	return New(CodeInfeasible, fmt.Sprintf("模型不可行: %s", reason))
}

// MalformedConstraint 创建约束构建失败错误
// 用户约束注入模型时出错会立刻中止整个求解，并带上违规约束的标识
func MalformedConstraint(kind, id string, cause error) *AppError {
	return Wrap(cause, CodeMalformedConstraint,
		fmt.Sprintf("约束 %s(%s) 注入模型失败", kind, id))
}

// SolverUnavailable 创建求解器不可用错误
func SolverUnavailable(name string, cause error) *AppError {
	return Wrap(cause, CodeSolverUnavailable, fmt.Sprintf("求解器 '%s' 不可用", name))
}
