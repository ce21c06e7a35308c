package sampler

import (
	"context"
	"math/rand/v2"

	"github.com/rushteam/pairfeed/core"
)

// UniformSampler 在 [0, nItems) 上独立均匀采样。
// 不检查候选是否为已知正样本，存在少量假负样本。
type UniformSampler struct {
	NItems   int
	observer Observer
}

// NewUniformSampler 创建均匀采样器。
func NewUniformSampler(nItems int) *UniformSampler {
	return &UniformSampler{NItems: nItems, observer: nopObserver{}}
}

func (s *UniformSampler) Method() Method { return MethodUniform }

func (s *UniformSampler) Sample(_ context.Context, rng *rand.Rand, users, _ []int) ([]int, error) {
	if s.NItems <= 0 {
		return nil, core.NewDomainError(core.ModuleSampler, core.ErrorCodeSamplingExhausted,
			"sampler: item space is empty")
	}
	out := make([]int, len(users))
	for j := range out {
		out[j] = rng.IntN(s.NItems)
	}
	s.observer.NegativesDrawn(MethodUniform.String(), len(out))
	return out, nil
}
