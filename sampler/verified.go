package sampler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/interaction"
)

// VerifiedSampler 采样保证不是该用户已知正样本的物品。
//
// 对每个用户：
//   - 正样本密度不超过 DensityThreshold 时，先做至多 MaxRetries 次拒绝采样
//   - 拒绝采样失败或密度过高时，从补集 {物品} \ {正样本} 中均匀采样
//   - 补集为空（用户交互过全部物品）时返回 SAMPLING_EXHAUSTED
//
// 补集按用户计算一次后缓存，并发迭代器共享同一份缓存。
type VerifiedSampler struct {
	matrix           *interaction.Matrix
	maxRetries       int
	densityThreshold float64

	mu          sync.RWMutex
	complements map[int][]int
	group       singleflight.Group

	logger   *zap.Logger
	observer Observer
}

// NewVerifiedSampler 创建校验式均匀采样器，matrix 必须已构建行形式。
func NewVerifiedSampler(matrix *interaction.Matrix, maxRetries int, densityThreshold float64) *VerifiedSampler {
	matrix.BuildRows()
	return &VerifiedSampler{
		matrix:           matrix,
		maxRetries:       maxRetries,
		densityThreshold: densityThreshold,
		complements:      make(map[int][]int),
		logger:           zap.NewNop(),
		observer:         nopObserver{},
	}
}

func (s *VerifiedSampler) Method() Method { return MethodUniformVerified }

func (s *VerifiedSampler) Sample(ctx context.Context, rng *rand.Rand, users, _ []int) ([]int, error) {
	out := make([]int, len(users))
	draws := 0
	for j, u := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		neg, n, err := s.sampleOne(rng, u)
		draws += n
		if err != nil {
			return nil, err
		}
		out[j] = neg
	}
	s.observer.NegativesDrawn(MethodUniformVerified.String(), draws)
	return out, nil
}

// sampleOne 返回负样本与实际抽取次数。
func (s *VerifiedSampler) sampleOne(rng *rand.Rand, u int) (int, int, error) {
	nItems := s.matrix.NItems()
	draws := 0
	if nItems > 0 && s.matrix.Density(u) <= s.densityThreshold {
		for range s.maxRetries {
			c := rng.IntN(nItems)
			draws++
			if !s.matrix.Contains(u, c) {
				return c, draws, nil
			}
		}
	}

	comp := s.complement(u)
	if len(comp) == 0 {
		s.observer.SamplingExhausted()
		return 0, draws, core.NewDomainError(core.ModuleSampler, core.ErrorCodeSamplingExhausted,
			fmt.Sprintf("sampler: user %d has interacted with all %d items", u, nItems))
	}
	s.observer.VerifiedFallback()
	return comp[rng.IntN(len(comp))], draws + 1, nil
}

func (s *VerifiedSampler) complement(u int) []int {
	s.mu.RLock()
	comp, ok := s.complements[u]
	s.mu.RUnlock()
	if ok {
		return comp
	}
	v, _, _ := s.group.Do(strconv.Itoa(u), func() (any, error) {
		c := s.matrix.Complement(u)
		s.mu.Lock()
		s.complements[u] = c
		s.mu.Unlock()
		s.logger.Debug("cached complement",
			zap.Int("user", u),
			zap.Int("size", len(c)))
		return c, nil
	})
	return v.([]int)
}
