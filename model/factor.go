package model

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// FactorModel 是本地的分解模型：每个类别特征的每个编码对应一个隐向量，
// 用户表示 = 用户特征隐向量之和，物品表示 = 物品特征隐向量之和，
// 分数 = 两者内积。
//
// 工程特征：
//   - 计算复杂度：低（O(特征数 x 维度)）
//   - 用途：自适应负采样的本地打分、测试与基准
type FactorModel struct {
	dim          int
	userFeatures []string
	itemFeatures []string
	emb          map[string][][]float32
}

// NewFactorModel 创建分解模型。cardinalities 为每个特征的编码基数，
// 隐向量以 seed 确定的小随机值初始化。
func NewFactorModel(dim int, userFeatures, itemFeatures []string, cardinalities map[string]int, seed uint64) (*FactorModel, error) {
	if dim <= 0 {
		dim = 32
	}
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	m := &FactorModel{
		dim:          dim,
		userFeatures: append([]string(nil), userFeatures...),
		itemFeatures: append([]string(nil), itemFeatures...),
		emb:          make(map[string][][]float32),
	}
	for _, f := range append(append([]string(nil), userFeatures...), itemFeatures...) {
		if _, dup := m.emb[f]; dup {
			return nil, shapeError(fmt.Sprintf("model: feature %q declared twice", f))
		}
		n, ok := cardinalities[f]
		if !ok || n <= 0 {
			return nil, shapeError(fmt.Sprintf("model: feature %q has no cardinality", f))
		}
		table := make([][]float32, n)
		for code := range table {
			vec := make([]float32, dim)
			for d := range vec {
				vec[d] = float32((rng.Float64() - 0.5) * 0.01)
			}
			table[code] = vec
		}
		m.emb[f] = table
	}
	return m, nil
}

func (m *FactorModel) Name() string { return "factor" }

// Dim 返回隐向量维度。
func (m *FactorModel) Dim() int { return m.dim }

// SetEmbedding 覆盖某个特征编码的隐向量（用于加载训练结果或构造测试场景）。
func (m *FactorModel) SetEmbedding(feature string, code int, vec []float32) error {
	table, ok := m.emb[feature]
	if !ok {
		return shapeError(fmt.Sprintf("model: unknown feature %q", feature))
	}
	if code < 0 || code >= len(table) {
		return shapeError(fmt.Sprintf("model: code %d out of range for %q", code, feature))
	}
	if len(vec) != m.dim {
		return shapeError(fmt.Sprintf("model: embedding has %d dims, want %d", len(vec), m.dim))
	}
	table[code] = append([]float32(nil), vec...)
	return nil
}

// Inputs 声明用户特征与物品特征两组类别槽。
func (m *FactorModel) Inputs(batchSize int) *Inputs {
	slots := append(append([]string(nil), m.userFeatures...), m.itemFeatures...)
	return NewInputs(batchSize, slots, nil)
}

// Forward 逐行计算 sum(user emb) · sum(item emb)。
func (m *FactorModel) Forward(ctx context.Context, in *Inputs) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	scores := make([]float64, in.BatchSize)
	userVec := make([]float32, m.dim)
	itemVec := make([]float32, m.dim)
	for r := 0; r < in.BatchSize; r++ {
		if err := m.sum(userVec, m.userFeatures, in, r); err != nil {
			return nil, err
		}
		if err := m.sum(itemVec, m.itemFeatures, in, r); err != nil {
			return nil, err
		}
		var s float64
		for d := 0; d < m.dim; d++ {
			s += float64(userVec[d]) * float64(itemVec[d])
		}
		scores[r] = s
	}
	return scores, nil
}

// sum 把第 r 行各特征的隐向量累加到 dst。
func (m *FactorModel) sum(dst []float32, features []string, in *Inputs, r int) error {
	clear(dst)
	for _, f := range features {
		code := int(in.Codes[f][r])
		table := m.emb[f]
		if code < 0 || code >= len(table) {
			return shapeError(fmt.Sprintf("model: code %d out of range for %q", code, f))
		}
		for d, v := range table[code] {
			dst[d] += v
		}
	}
	return nil
}

var _ Scorer = (*FactorModel)(nil)
