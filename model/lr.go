package model

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/goccy/go-json"
)

// LRModel 实现了逻辑回归 (Logistic Regression) 打分。
// 类别特征按 one-hot 处理，每个 "槽=编码" 对应一个权重；数值槽每一维对应一个权重。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// Forward 返回 logit z，自适应采样的间隔规则直接作用于它；概率 P 见 Predict。
type LRModel struct {
	Bias    float64              // 偏置项 (Bias / Intercept)
	Weights map[string]float64   // 类别权重，键为 "genre=3"
	Dense   map[string][]float64 // 数值槽权重，按维度对应

	categorical []string
	numerical   []string
}

// NewLRModel 创建 LR 模型。categorical / numerical 是前向输入声明的槽，
// 权重中未出现的槽或编码贡献为 0。
func NewLRModel(bias float64, weights map[string]float64, dense map[string][]float64, categorical, numerical []string) *LRModel {
	if weights == nil {
		weights = map[string]float64{}
	}
	if dense == nil {
		dense = map[string][]float64{}
	}
	return &LRModel{
		Bias:        bias,
		Weights:     weights,
		Dense:       dense,
		categorical: append([]string(nil), categorical...),
		numerical:   append([]string(nil), numerical...),
	}
}

// LoadLRModel 从 JSON 文件加载权重：
//
//	{"bias": -1.2, "weights": {"genre=0": 0.3}, "dense": {"item_num_feats": [0.5, 0.1]}}
func LoadLRModel(path string, categorical, numerical []string) (*LRModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Bias    float64              `json:"bias"`
		Weights map[string]float64   `json:"weights"`
		Dense   map[string][]float64 `json:"dense"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("model: parse lr weights %s: %w", path, err)
	}
	return NewLRModel(raw.Bias, raw.Weights, raw.Dense, categorical, numerical), nil
}

// WeightKey 返回类别权重的键。
func WeightKey(slot string, code int32) string {
	return slot + "=" + strconv.Itoa(int(code))
}

func (m *LRModel) Name() string { return "lr" }

func (m *LRModel) Inputs(batchSize int) *Inputs {
	return NewInputs(batchSize, m.categorical, m.numerical)
}

// Forward 返回每行的 logit。
func (m *LRModel) Forward(ctx context.Context, in *Inputs) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	scores := make([]float64, in.BatchSize)
	for r := range scores {
		z := m.Bias
		for _, slot := range m.categorical {
			z += m.Weights[WeightKey(slot, in.Codes[slot][r])]
		}
		for _, slot := range m.numerical {
			w := m.Dense[slot]
			for d, v := range in.Dense[slot][r] {
				if d < len(w) {
					z += w[d] * float64(v)
				}
			}
		}
		scores[r] = z
	}
	return scores, nil
}

// Predict 返回每行的正例概率 sigmoid(z)。
func (m *LRModel) Predict(ctx context.Context, in *Inputs) ([]float64, error) {
	logits, err := m.Forward(ctx, in)
	if err != nil {
		return nil, err
	}
	for r, z := range logits {
		logits[r] = 1 / (1 + math.Exp(-z))
	}
	return logits, nil
}

var _ Scorer = (*LRModel)(nil)
