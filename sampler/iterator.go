package sampler

import (
	"context"
	"io"
	"iter"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/feed"
)

// Iterator 逐批拉取训练数据。调用方驱动迭代，不调用 Next 即停止。
type Iterator struct {
	s      *PairSampler
	rng    *rand.Rand
	index  *epochIndex
	stream uint64

	epoch   int   // 已开始的 epoch 数
	order   []int // 当前 epoch 的下标顺序
	offset  int
	inEpoch bool
	done    bool
	err     error // 终止迭代的错误
}

func newIterator(s *PairSampler, stream uint64) *Iterator {
	return &Iterator{
		s:      s,
		rng:    rand.New(rand.NewPCG(s.cfg.Seed, stream)),
		index:  newEpochIndex(s.base, s.cfg.Shuffle),
		stream: stream,
	}
}

// Epoch 返回已开始的 epoch 数。
func (it *Iterator) Epoch() int { return it.epoch }

// Next 返回下一个批次；迭代结束时返回 io.EOF。
// 出错后迭代器终止，之后的调用返回同一个错误。
func (it *Iterator) Next(ctx context.Context) (*feed.Feed, error) {
	if it.done {
		if it.err != nil {
			return nil, it.err
		}
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bs := it.s.cfg.BatchSize
	for {
		if !it.inEpoch {
			if it.s.cfg.NEpochs >= 0 && it.epoch >= it.s.cfg.NEpochs {
				it.done = true
				return nil, io.EOF
			}
			if it.index.batches(bs) == 0 {
				// 一个完整批次都凑不出来，无限 epoch 也不会产出任何数据
				it.s.logger.Warn("not enough data for a single batch",
					zap.Int("size", len(it.index.order)),
					zap.Int("batch_size", bs))
				it.done = true
				return nil, io.EOF
			}
			it.order = it.index.next(it.rng)
			it.offset = 0
			it.inEpoch = true
			it.epoch++
			it.s.observer.EpochStarted(it.s.Mode(), it.epoch)
			it.s.logger.Debug("epoch started",
				zap.Uint64("stream", it.stream),
				zap.Int("epoch", it.epoch))
		}
		if it.offset+bs <= len(it.order) {
			inds := it.order[it.offset : it.offset+bs]
			it.offset += bs
			f, err := it.s.assemble(ctx, it.rng, inds)
			if err != nil {
				it.done = true
				it.err = err
				return nil, err
			}
			return f, nil
		}
		it.inEpoch = false
	}
}

// All 以 range-over-func 形式遍历全部批次。遇到错误时产出一次 (nil, err) 后结束。
func (it *Iterator) All(ctx context.Context) iter.Seq2[*feed.Feed, error] {
	return func(yield func(*feed.Feed, error) bool) {
		for {
			f, err := it.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

// assemble 为一组批次下标采负样本并拼装 Feed。
func (s *PairSampler) assemble(ctx context.Context, rng *rand.Rand, inds []int) (*feed.Feed, error) {
	b := len(inds)
	users := make([]int, b)
	pos := make([]int, b)
	if s.cfg.UniformUsers {
		for j, u := range inds {
			row := s.matrix.Row(u)
			users[j] = u
			pos[j] = int(row[rng.IntN(len(row))])
		}
	} else {
		for j, k := range inds {
			users[j], pos[j] = s.matrix.At(k)
		}
	}

	neg, err := s.negative.Sample(ctx, rng, users, pos)
	if err != nil {
		return nil, err
	}

	f := feed.New(users, pos, neg)
	f.Put(feed.TagUser, s.ds.User.Gather(users))
	f.Put(feed.TagPos, s.ds.Item.Gather(pos))
	f.Put(feed.TagNeg, s.ds.Item.Gather(neg))
	// 按用户分批时批次行与交互行不对应，不提供上下文特征
	if !s.cfg.UniformUsers && s.ds.Context != nil {
		f.Put(feed.TagContext, s.ds.Context.Gather(inds))
	}

	if s.declared != nil {
		if err := f.CheckDeclared(s.declared); err != nil {
			return nil, err
		}
	}
	s.observer.BatchEmitted(s.Mode(), s.cfg.Method.String())
	return f, nil
}
