package sampler

import (
	"context"
	"math/rand/v2"
)

// NegativeSampler 为一批 (用户, 正样本) 对各采一个负样本物品。
//
// rng 由调用方（Iterator）持有，同一个采样器可以被多个迭代器并发使用。
// 返回的切片与 users 等长，每个值都在 [0, n_items) 内。
type NegativeSampler interface {
	Method() Method
	Sample(ctx context.Context, rng *rand.Rand, users, positives []int) ([]int, error)
}

var (
	_ NegativeSampler = (*UniformSampler)(nil)
	_ NegativeSampler = (*VerifiedSampler)(nil)
	_ NegativeSampler = (*AdaptiveSampler)(nil)
)
