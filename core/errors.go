package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 可以包装底层错误（Err），支持 errors.Is / errors.As
//
// 使用场景：
//   - 采样错误：INVALID_CONFIG, SAMPLING_EXHAUSTED
//   - 交互矩阵 / 特征表错误：INVALID_INPUT
//   - 模型打分错误：INVALID_INPUT（形状不匹配、远程调用失败）
//   - 存储错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "INVALID_CONFIG", "SAMPLING_EXHAUSTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "sampler", "interaction", "feature"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 按 Module + Code 比较，使 errors.Is(err, ErrXXX) 对带不同消息的同类错误也成立。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误链中是否有 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装了底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound          = "NOT_FOUND"          // 资源不存在
	ErrorCodeNotSupported      = "NOT_SUPPORTED"      // 操作不支持
	ErrorCodeUnavailable       = "UNAVAILABLE"        // 服务不可用
	ErrorCodeInvalidInput      = "INVALID_INPUT"      // 输入无效（形状、下标越界等）
	ErrorCodeInvalidConfig     = "INVALID_CONFIG"     // 配置无效（构造时即失败）
	ErrorCodeSamplingExhausted = "SAMPLING_EXHAUSTED" // 用户已交互全部物品，无负样本可采
	ErrorCodeInternalError     = "INTERNAL_ERROR"     // 内部错误
)

// 模块名称常量
const (
	ModuleInteraction = "interaction" // 交互矩阵
	ModuleFeature     = "feature"     // 特征表
	ModuleSampler     = "sampler"     // 负采样 / 批次迭代
	ModuleModel       = "model"       // 打分模型
	ModuleSource      = "source"      // 数据加载
	ModuleStore       = "store"       // 存储模块
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsInvalidConfig 检查错误是否为 INVALID_CONFIG
func IsInvalidConfig(err error) bool {
	return hasCode(err, ErrorCodeInvalidConfig)
}

// IsSamplingExhausted 检查错误是否为 SAMPLING_EXHAUSTED
func IsSamplingExhausted(err error) bool {
	return hasCode(err, ErrorCodeSamplingExhausted)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
