package sampler

import (
	"context"
	"math/rand/v2"

	"github.com/rushteam/pairfeed/interaction"
)

// AdaptiveSampler 实现 WARP 风格的难负样本挖掘。
//
// 每批：
//  1. 对 (用户, 正样本) 打分
//  2. 为每个用户均匀采 MaxSampled 个候选并打分
//  3. 候选分数 > 正样本分数 - Margin 视为违反间隔，按 Policy 选出一个负样本
//
// VerifyNonPositive 开启时，候选中的已知正样本不参与挑选。
// 所有候选都不可选时（都不违反，或都被排除），取每行最后一个候选。
type AdaptiveSampler struct {
	matrix            *interaction.Matrix
	bridge            *ScoringBridge
	maxSampled        int
	margin            float64
	policy            Policy
	verifyNonPositive bool

	observer Observer
}

// NewAdaptiveSampler 创建自适应采样器。
func NewAdaptiveSampler(matrix *interaction.Matrix, bridge *ScoringBridge, maxSampled int, margin float64, policy Policy, verifyNonPositive bool) *AdaptiveSampler {
	if verifyNonPositive {
		matrix.BuildRows()
	}
	return &AdaptiveSampler{
		matrix:            matrix,
		bridge:            bridge,
		maxSampled:        maxSampled,
		margin:            margin,
		policy:            policy,
		verifyNonPositive: verifyNonPositive,
		observer:          nopObserver{},
	}
}

func (s *AdaptiveSampler) Method() Method { return MethodAdaptive }

func (s *AdaptiveSampler) Sample(ctx context.Context, rng *rand.Rand, users, positives []int) ([]int, error) {
	b := len(users)
	k := s.maxSampled
	nItems := s.matrix.NItems()

	posScores, err := s.bridge.ScorePositives(ctx, users, positives)
	if err != nil {
		return nil, err
	}

	candUsers := make([]int, b*k)
	candItems := make([]int, b*k)
	for j, u := range users {
		for c := range k {
			candUsers[j*k+c] = u
			candItems[j*k+c] = rng.IntN(nItems)
		}
	}
	s.observer.NegativesDrawn(MethodAdaptive.String(), len(candItems))

	candScores, err := s.bridge.ScoreCandidates(ctx, candUsers, candItems)
	if err != nil {
		return nil, err
	}

	out := make([]int, b)
	for j, u := range users {
		items := candItems[j*k : (j+1)*k]
		var skip func(int) bool
		if s.verifyNonPositive {
			skip = func(i int) bool { return s.matrix.Contains(u, i) }
		}
		pick := selectNegative(s.policy, posScores[j], items, candScores[j*k:(j+1)*k], s.margin, skip)
		out[j] = items[pick]
	}
	return out, nil
}

// selectNegative 在一行候选中按规则选出负样本，返回其在行内的位置。
// skip 非 nil 时，被它判定为 true 的候选不可选。
func selectNegative(policy Policy, posScore float64, items []int, scores []float64, margin float64, skip func(int) bool) int {
	last := len(items) - 1
	threshold := posScore - margin
	switch policy {
	case PolicyFirstViolation:
		for c, sc := range scores {
			if skip != nil && skip(items[c]) {
				continue
			}
			if sc > threshold {
				return c
			}
		}
		return last
	default:
		best := -1
		for c, sc := range scores {
			if skip != nil && skip(items[c]) {
				continue
			}
			if best < 0 || sc > scores[best] {
				best = c
			}
		}
		if best < 0 {
			return last
		}
		return best
	}
}
