// Package model 定义采样器回调的打分模型抽象，以及几个实现：
// 本地的 FactorModel（类别特征嵌入求和 + 内积）、LRModel（从文件加载的逻辑回归权重）
// 和远程的 RPCScorer（HTTP 打分服务）。
package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/pairfeed/core"
)

// Scorer 是自适应采样所需的最小模型抽象：声明输入 + 前向打分。
// 采样器对任何实现了该接口的模型都适用（本地模型、TF Serving、TorchServe 等）。
type Scorer interface {
	Name() string

	// Inputs 按给定批次大小声明一组输入槽（槽名为裸特征名，如 "user_id"、"genre"）
	Inputs(batchSize int) *Inputs

	// Forward 对已填充的输入逐行打分，返回长度为 BatchSize 的分数
	Forward(ctx context.Context, in *Inputs) ([]float64, error)
}

// SlotKind 区分类别槽与数值槽。
type SlotKind int

const (
	SlotCategorical SlotKind = iota
	SlotNumerical
)

// Inputs 是一次前向请求的固定形状输入。
// 由模型声明一次，之后每次调用前重新填充。
type Inputs struct {
	BatchSize int

	kinds map[string]SlotKind
	Codes map[string][]int32
	Dense map[string][][]float32
}

// NewInputs 声明一组固定批次大小的输入槽。
func NewInputs(batchSize int, categorical, numerical []string) *Inputs {
	in := &Inputs{
		BatchSize: batchSize,
		kinds:     make(map[string]SlotKind, len(categorical)+len(numerical)),
		Codes:     make(map[string][]int32, len(categorical)),
		Dense:     make(map[string][][]float32, len(numerical)),
	}
	for _, s := range categorical {
		in.kinds[s] = SlotCategorical
	}
	for _, s := range numerical {
		in.kinds[s] = SlotNumerical
	}
	return in
}

// Declared 返回声明的全部槽名（升序）。
func (in *Inputs) Declared() []string {
	out := make([]string, 0, len(in.kinds))
	for s := range in.kinds {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Kind 返回槽的类型；未声明时 ok 为 false。
func (in *Inputs) Kind(slot string) (SlotKind, bool) {
	k, ok := in.kinds[slot]
	return k, ok
}

// SetCodes 填充类别槽。
func (in *Inputs) SetCodes(slot string, vals []int32) error {
	if k, ok := in.kinds[slot]; !ok || k != SlotCategorical {
		return shapeError(fmt.Sprintf("model: %q is not a declared categorical input", slot))
	}
	if len(vals) != in.BatchSize {
		return shapeError(fmt.Sprintf("model: input %q has %d rows, want %d", slot, len(vals), in.BatchSize))
	}
	in.Codes[slot] = vals
	return nil
}

// SetDense 填充数值槽。
func (in *Inputs) SetDense(slot string, rows [][]float32) error {
	if k, ok := in.kinds[slot]; !ok || k != SlotNumerical {
		return shapeError(fmt.Sprintf("model: %q is not a declared numerical input", slot))
	}
	if len(rows) != in.BatchSize {
		return shapeError(fmt.Sprintf("model: input %q has %d rows, want %d", slot, len(rows), in.BatchSize))
	}
	in.Dense[slot] = rows
	return nil
}

// Reset 清空已填充的数据，保留声明。
func (in *Inputs) Reset() {
	clear(in.Codes)
	clear(in.Dense)
}

// Validate 校验每个声明的槽都已填充。
func (in *Inputs) Validate() error {
	for slot, kind := range in.kinds {
		switch kind {
		case SlotCategorical:
			if _, ok := in.Codes[slot]; !ok {
				return shapeError(fmt.Sprintf("model: input %q not fed", slot))
			}
		case SlotNumerical:
			if _, ok := in.Dense[slot]; !ok {
				return shapeError(fmt.Sprintf("model: input %q not fed", slot))
			}
		}
	}
	return nil
}

func shapeError(msg string) error {
	return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, msg)
}
