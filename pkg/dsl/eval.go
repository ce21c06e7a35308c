// Package dsl 提供基于 CEL 的交互记录过滤表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境。表达式中只有一个变量 x，代表一条交互记录。
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("x", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Filter 是编译后的过滤表达式，可并发调用 Match。
//
// 表达式语法（CEL 标准语法），x 的字段由调用方提供：
//   - 数值：x.score >= 4.0
//   - 字符串：x.user.startsWith("test_") / x.source == "click"
//   - 逻辑：x.score > 3.0 && x.source != "impression"
//   - 存在性：has(x.attrs.device)
//
// 示例：
//   - `x.score >= 5.0` → 将显式评分转为隐式喜欢
//   - `!(x.item in ["deleted", "banned"])` → 去掉下架物品
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式。空表达式得到匹配一切的 Filter。
func Compile(expr string) (*Filter, error) {
	f := &Filter{expr: expr}
	if expr == "" {
		return f, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	f.prg = prg
	return f, nil
}

// String 返回原始表达式。
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match 对一条记录求值，表达式必须返回布尔值。
func (f *Filter) Match(record map[string]any) (bool, error) {
	if f == nil || f.prg == nil {
		return true, nil
	}
	out, _, err := f.prg.Eval(map[string]any{"x": record})
	if err != nil {
		// 访问不存在的字段会报错，用 has(x.field) 先检查
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Evaluate 编译并对单条记录求值，适合一次性调用。
func Evaluate(expr string, record map[string]any) (bool, error) {
	f, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return f.Match(record)
}
