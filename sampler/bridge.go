package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/feature"
	"github.com/rushteam/pairfeed/model"
)

// 打分调用类型
const (
	ScoringPositive  = "positive"
	ScoringCandidate = "candidate"
)

// ScoringBridge 把 (用户, 物品) 下标批次转换为模型输入并取回分数。
//
// 模型的输入只声明两次：正样本打分用 batchSize 行，候选打分用
// batchSize*maxSampled 行。之后每次调用复用这两组输入，行数不符即报错。
// 模型输入变化时需要重建采样器。
type ScoringBridge struct {
	scorer model.Scorer
	user   *feature.Table
	item   *feature.Table

	mu        sync.Mutex
	positive  *model.Inputs
	candidate *model.Inputs

	logger   *zap.Logger
	observer Observer
}

// NewScoringBridge 创建打分桥。user / item 为 nil 时对应实体不提供特征。
func NewScoringBridge(scorer model.Scorer, user, item *feature.Table, batchSize, maxSampled int) *ScoringBridge {
	return &ScoringBridge{
		scorer:    scorer,
		user:      user,
		item:      item,
		positive:  scorer.Inputs(batchSize),
		candidate: scorer.Inputs(batchSize * maxSampled),
		logger:    zap.NewNop(),
		observer:  nopObserver{},
	}
}

// ScorePositives 对 batchSize 个 (用户, 正样本) 对打分。
func (b *ScoringBridge) ScorePositives(ctx context.Context, users, items []int) ([]float64, error) {
	return b.score(ctx, ScoringPositive, b.positive, users, items)
}

// ScoreCandidates 对 batchSize*maxSampled 个 (用户, 候选) 对打分。
func (b *ScoringBridge) ScoreCandidates(ctx context.Context, users, items []int) ([]float64, error) {
	return b.score(ctx, ScoringCandidate, b.candidate, users, items)
}

func (b *ScoringBridge) score(ctx context.Context, kind string, in *model.Inputs, users, items []int) ([]float64, error) {
	if len(users) != in.BatchSize || len(items) != in.BatchSize {
		return nil, bridgeError(fmt.Sprintf("%s scoring got %d users and %d items, want %d",
			kind, len(users), len(items), in.BatchSize), nil)
	}

	// 两组输入被所有迭代器共享，填充与前向必须串行
	b.mu.Lock()
	defer b.mu.Unlock()

	in.Reset()
	if err := fill(in, b.user.Gather(users)); err != nil {
		return nil, bridgeError(kind+" scoring", err)
	}
	if err := fill(in, b.item.Gather(items)); err != nil {
		return nil, bridgeError(kind+" scoring", err)
	}

	start := time.Now()
	scores, err := b.scorer.Forward(ctx, in)
	b.observer.ScoringCall(kind, time.Since(start), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		b.logger.Warn("scoring call failed",
			zap.String("kind", kind),
			zap.String("model", b.scorer.Name()),
			zap.Error(err))
		return nil, bridgeError(fmt.Sprintf("%s scoring with model %s", kind, b.scorer.Name()), err)
	}
	if len(scores) != in.BatchSize {
		return nil, bridgeError(fmt.Sprintf("%s scoring returned %d scores, want %d", kind, len(scores), in.BatchSize), nil)
	}
	return scores, nil
}

// fill 将特征行写入模型输入：类别列必须是声明的槽，数值块仅在声明时写入。
func fill(in *model.Inputs, rows feature.Rows) error {
	for name, vals := range rows.Codes {
		if err := in.SetCodes(name, vals); err != nil {
			return err
		}
	}
	if rows.NumKey != "" && rows.Num != nil {
		if kind, ok := in.Kind(rows.NumKey); ok && kind == model.SlotNumerical {
			if err := in.SetDense(rows.NumKey, rows.Num); err != nil {
				return err
			}
		}
	}
	return nil
}

func bridgeError(msg string, err error) error {
	if err == nil {
		return core.NewDomainError(core.ModuleSampler, core.ErrorCodeInvalidInput, "sampler: "+msg)
	}
	return core.WrapDomainError(core.ModuleSampler, core.ErrorCodeInvalidInput, "sampler: "+msg, err)
}
