// Package sampler 为成对排序训练（BPR / WARP）生成 (用户, 正样本, 负样本) 批次。
//
// 用法：
//
//	s, err := sampler.New(ds,
//		sampler.WithBatchSize(1024),
//		sampler.WithMethod(sampler.MethodUniformVerified),
//	)
//	it := s.Iter()
//	for f, err := range it.All(ctx) {
//		...
//	}
//
// PairSampler 构造后只读，可被多个 Iterator 并发使用；每个 Iterator
// 持有自己的随机流与 epoch 下标，不可在多个 goroutine 间共享。
package sampler

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/interaction"
)

// PairSampler 持有交互矩阵、特征表与负采样策略。
type PairSampler struct {
	cfg      Config
	ds       *dataset.Dataset
	matrix   *interaction.Matrix
	negative NegativeSampler
	bridge   *ScoringBridge
	base     []int
	declared map[string]struct{}

	logger   *zap.Logger
	observer Observer
	streams  atomic.Uint64
}

// New 校验配置与数据集，构建交互矩阵并选定负采样策略。
// 配置错误返回 INVALID_CONFIG，数据不一致返回 INVALID_INPUT。
func New(ds *dataset.Dataset, opts ...Option) (*PairSampler, error) {
	o := &options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	cfg := o.cfg
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Method == MethodAdaptive && o.model == nil {
		return nil, invalidConfig("adaptive sampling requires a model")
	}
	if ds == nil {
		return nil, invalidConfig("dataset is nil")
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	matrix, err := interaction.New(ds.UserCodes, ds.ItemCodes, ds.NUsers(), ds.NItems())
	if err != nil {
		return nil, err
	}
	if cfg.Method.needsRows() || cfg.UniformUsers {
		matrix.BuildRows()
	}

	s := &PairSampler{
		cfg:      cfg,
		ds:       ds,
		matrix:   matrix,
		logger:   o.logger,
		observer: o.observer,
	}

	switch cfg.Method {
	case MethodUniform:
		u := NewUniformSampler(matrix.NItems())
		u.observer = o.observer
		s.negative = u
	case MethodUniformVerified:
		v := NewVerifiedSampler(matrix, cfg.MaxRetries, cfg.DensityThreshold)
		v.logger = o.logger
		v.observer = o.observer
		s.negative = v
	case MethodAdaptive:
		s.bridge = NewScoringBridge(o.model, ds.User, ds.Item, cfg.BatchSize, cfg.MaxSampled)
		s.bridge.logger = o.logger
		s.bridge.observer = o.observer
		a := NewAdaptiveSampler(matrix, s.bridge, cfg.MaxSampled, cfg.Margin, cfg.Policy, cfg.VerifyNonPositive)
		a.observer = o.observer
		s.negative = a
	}

	if cfg.UniformUsers {
		for u := range matrix.NUsers() {
			if matrix.RowLen(u) > 0 {
				s.base = append(s.base, u)
			}
		}
	} else {
		s.base = make([]int, matrix.NNZ())
		for k := range s.base {
			s.base[k] = k
		}
	}

	if o.pairInputs != nil {
		s.declared = make(map[string]struct{}, len(o.pairInputs))
		for _, slot := range o.pairInputs {
			s.declared[slot] = struct{}{}
		}
	}

	s.logger.Info("pair sampler ready",
		zap.String("mode", s.Mode()),
		zap.Stringer("method", cfg.Method),
		zap.Int("users", matrix.NUsers()),
		zap.Int("items", matrix.NItems()),
		zap.Int("interactions", matrix.NNZ()),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("batches_per_epoch", s.BatchesPerEpoch()))
	return s, nil
}

// Config 返回生效的配置。
func (s *PairSampler) Config() Config { return s.cfg }

// Matrix 返回交互矩阵。
func (s *PairSampler) Matrix() *interaction.Matrix { return s.matrix }

// Negative 返回选定的负采样器。
func (s *PairSampler) Negative() NegativeSampler { return s.negative }

// Mode 返回批次模式（ModeByInteraction / ModeByUser）。
func (s *PairSampler) Mode() string {
	if s.cfg.UniformUsers {
		return ModeByUser
	}
	return ModeByInteraction
}

// BatchesPerEpoch 返回每个 epoch 的批次数 floor(N / BatchSize)。
func (s *PairSampler) BatchesPerEpoch() int {
	return len(s.base) / s.cfg.BatchSize
}

// Iter 创建新的迭代器。每个迭代器从 (Seed, 流序号) 派生独立随机流，
// 同一采样器上依次创建的迭代器产生可复现的序列。
func (s *PairSampler) Iter() *Iterator {
	stream := s.streams.Add(1) - 1
	return newIterator(s, stream)
}
