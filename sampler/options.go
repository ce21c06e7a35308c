package sampler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/model"
)

// Config 是采样器的全部可调参数。
type Config struct {
	BatchSize    int    // 批次大小
	Shuffle      bool   // 每个 epoch 前是否打乱
	NEpochs      int    // epoch 数，负数表示无限
	UniformUsers bool   // true 时按用户分批（每个用户等权），否则按交互分批
	Method       Method // 负采样策略
	Seed         uint64 // 随机种子

	// 自适应采样
	MaxSampled        int     // 每个用户的候选数
	Policy            Policy  // 挑选规则
	Margin            float64 // 违反判定：候选分数 > 正样本分数 - Margin
	VerifyNonPositive bool    // 排除候选中的已知正样本

	// 校验式均匀采样
	MaxRetries       int     // 拒绝采样的最大重试次数
	DensityThreshold float64 // 用户正样本密度超过该值时直接从补集采样
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		BatchSize:        1024,
		Shuffle:          true,
		NEpochs:          -1,
		UniformUsers:     false,
		Method:           MethodUniform,
		Seed:             0,
		MaxSampled:       32,
		Policy:           PolicyWorstOffender,
		Margin:           1.0,
		MaxRetries:       100,
		DensityThreshold: 0.5,
	}
}

func (c Config) validate() error {
	if c.BatchSize <= 0 {
		return invalidConfig(fmt.Sprintf("batch size must be positive, got %d", c.BatchSize))
	}
	switch c.Method {
	case MethodUniform, MethodUniformVerified, MethodAdaptive:
	default:
		return invalidConfig(fmt.Sprintf("unknown sampling method %s", c.Method))
	}
	switch c.Policy {
	case PolicyWorstOffender, PolicyFirstViolation:
	default:
		return invalidConfig(fmt.Sprintf("unknown adaptive policy %s", c.Policy))
	}
	if c.Method == MethodAdaptive && c.MaxSampled <= 0 {
		return invalidConfig(fmt.Sprintf("max sampled must be positive, got %d", c.MaxSampled))
	}
	if c.MaxRetries < 0 {
		return invalidConfig(fmt.Sprintf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if c.DensityThreshold < 0 || c.DensityThreshold > 1 {
		return invalidConfig(fmt.Sprintf("density threshold must be in [0, 1], got %v", c.DensityThreshold))
	}
	return nil
}

type options struct {
	cfg        Config
	model      model.Scorer
	logger     *zap.Logger
	observer   Observer
	pairInputs []string
}

// Option 采样器配置选项
type Option func(*options)

// WithConfig 整体替换配置
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

func WithBatchSize(n int) Option {
	return func(o *options) { o.cfg.BatchSize = n }
}

func WithShuffle(shuffle bool) Option {
	return func(o *options) { o.cfg.Shuffle = shuffle }
}

// WithEpochs 设置 epoch 数，负数表示无限
func WithEpochs(n int) Option {
	return func(o *options) { o.cfg.NEpochs = n }
}

func WithUniformUsers(on bool) Option {
	return func(o *options) { o.cfg.UniformUsers = on }
}

func WithMethod(m Method) Option {
	return func(o *options) { o.cfg.Method = m }
}

func WithSeed(seed uint64) Option {
	return func(o *options) { o.cfg.Seed = seed }
}

func WithPolicy(p Policy) Option {
	return func(o *options) { o.cfg.Policy = p }
}

func WithMaxSampled(n int) Option {
	return func(o *options) { o.cfg.MaxSampled = n }
}

// WithMargin 设置自适应采样的违反间隔
func WithMargin(m float64) Option {
	return func(o *options) { o.cfg.Margin = m }
}

func WithMaxRetries(n int) Option {
	return func(o *options) { o.cfg.MaxRetries = n }
}

func WithDensityThreshold(v float64) Option {
	return func(o *options) { o.cfg.DensityThreshold = v }
}

func WithVerifyNonPositive(on bool) Option {
	return func(o *options) { o.cfg.VerifyNonPositive = on }
}

// WithModel 设置自适应采样回调的打分模型
func WithModel(m model.Scorer) Option {
	return func(o *options) { o.model = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithPairInputs 声明训练图的输入槽名，每个批次的槽都必须在其中
func WithPairInputs(slots []string) Option {
	return func(o *options) { o.pairInputs = append([]string(nil), slots...) }
}
