package sampler

import (
	"fmt"

	"github.com/rushteam/pairfeed/core"
)

// Method 是负采样策略。每个取值对应一个 NegativeSampler 实现，在构造时选定。
type Method int

const (
	// MethodUniform 在 [0, n_items) 上独立均匀采样，不排除已知正样本
	MethodUniform Method = iota
	// MethodUniformVerified 重采样直到候选不是该用户的已知正样本
	MethodUniformVerified
	// MethodAdaptive WARP 风格：回调模型打分，挑选违反间隔的难负样本
	MethodAdaptive
)

func (m Method) String() string {
	switch m {
	case MethodUniform:
		return "uniform"
	case MethodUniformVerified:
		return "uniform_verified"
	case MethodAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// needsRows 报告该策略是否需要交互矩阵的压缩行形式。
func (m Method) needsRows() bool {
	return m == MethodUniformVerified || m == MethodAdaptive
}

// ParseMethod 将配置中的名称解析为 Method，未知名称返回 INVALID_CONFIG。
func ParseMethod(name string) (Method, error) {
	switch name {
	case "uniform", "":
		return MethodUniform, nil
	case "uniform_verified":
		return MethodUniformVerified, nil
	case "adaptive":
		return MethodAdaptive, nil
	default:
		return 0, invalidConfig(fmt.Sprintf("unknown sampling method %q", name))
	}
}

// Policy 是自适应采样在候选中挑选负样本的规则。
type Policy int

const (
	// PolicyWorstOffender 选分数最高的候选（默认）
	PolicyWorstOffender Policy = iota
	// PolicyFirstViolation 选按采样顺序第一个违反间隔的候选，都不违反时选最后一个
	PolicyFirstViolation
)

func (p Policy) String() string {
	switch p {
	case PolicyWorstOffender:
		return "worst_offender"
	case PolicyFirstViolation:
		return "first_violation"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy 解析挑选规则名称。
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "worst_offender", "":
		return PolicyWorstOffender, nil
	case "first_violation":
		return PolicyFirstViolation, nil
	default:
		return 0, invalidConfig(fmt.Sprintf("unknown adaptive policy %q", name))
	}
}

// 批次模式
const (
	ModeByInteraction = "by_interaction"
	ModeByUser        = "by_user"
)

func invalidConfig(msg string) error {
	return core.NewDomainError(core.ModuleSampler, core.ErrorCodeInvalidConfig, "sampler: "+msg)
}
