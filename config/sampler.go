package config

import (
	"github.com/rushteam/pairfeed/pkg/conv"
	"github.com/rushteam/pairfeed/sampler"
)

// SamplerConfig 是 sampler.Config 的可序列化形式：策略与规则用名称表示。
type SamplerConfig struct {
	BatchSize    int    `koanf:"batch_size" validate:"gt=0"`
	Shuffle      bool   `koanf:"shuffle"`
	Epochs       int    `koanf:"epochs"`
	UniformUsers bool   `koanf:"uniform_users"`
	Method       string `koanf:"method" validate:"oneof=uniform uniform_verified adaptive"`
	Seed         uint64 `koanf:"seed"`

	MaxSampled        int     `koanf:"max_sampled" validate:"gte=0"`
	Policy            string  `koanf:"policy" validate:"oneof=worst_offender first_violation"`
	Margin            float64 `koanf:"margin"`
	VerifyNonPositive bool    `koanf:"verify_non_positive"`

	MaxRetries       int     `koanf:"max_retries" validate:"gte=0"`
	DensityThreshold float64 `koanf:"density_threshold" validate:"gte=0,lte=1"`

	PairInputs []string `koanf:"pair_inputs"`
}

// DefaultSamplerConfig 与 sampler.DefaultConfig 一致。
func DefaultSamplerConfig() SamplerConfig {
	d := sampler.DefaultConfig()
	return SamplerConfig{
		BatchSize:        d.BatchSize,
		Shuffle:          d.Shuffle,
		Epochs:           d.NEpochs,
		UniformUsers:     d.UniformUsers,
		Method:           d.Method.String(),
		Seed:             d.Seed,
		MaxSampled:       d.MaxSampled,
		Policy:           d.Policy.String(),
		Margin:           d.Margin,
		MaxRetries:       d.MaxRetries,
		DensityThreshold: d.DensityThreshold,
	}
}

// Options 转换为采样器选项。策略或规则名称未知时返回 INVALID_CONFIG。
func (c SamplerConfig) Options() ([]sampler.Option, error) {
	method, err := sampler.ParseMethod(c.Method)
	if err != nil {
		return nil, err
	}
	policy, err := sampler.ParsePolicy(c.Policy)
	if err != nil {
		return nil, err
	}
	opts := []sampler.Option{sampler.WithConfig(sampler.Config{
		BatchSize:         c.BatchSize,
		Shuffle:           c.Shuffle,
		NEpochs:           c.Epochs,
		UniformUsers:      c.UniformUsers,
		Method:            method,
		Seed:              c.Seed,
		MaxSampled:        c.MaxSampled,
		Policy:            policy,
		Margin:            c.Margin,
		VerifyNonPositive: c.VerifyNonPositive,
		MaxRetries:        c.MaxRetries,
		DensityThreshold:  c.DensityThreshold,
	})}
	if len(c.PairInputs) > 0 {
		opts = append(opts, sampler.WithPairInputs(c.PairInputs))
	}
	return opts, nil
}

// FromMap 从通用 map（例如嵌在其他 YAML 文档里的 sampler 段）构建 SamplerConfig，
// 缺失的键取默认值。
//
//	sampler:
//	  batch_size: 256
//	  method: adaptive
//	  max_sampled: 16
func FromMap(m map[string]any) SamplerConfig {
	c := DefaultSamplerConfig()
	c.BatchSize = int(conv.ConfigGetInt64(m, "batch_size", int64(c.BatchSize)))
	c.Shuffle = conv.ConfigGet(m, "shuffle", c.Shuffle)
	c.Epochs = int(conv.ConfigGetInt64(m, "epochs", int64(c.Epochs)))
	c.UniformUsers = conv.ConfigGet(m, "uniform_users", c.UniformUsers)
	c.Method = conv.ConfigGet(m, "method", c.Method)
	c.Seed = uint64(conv.ConfigGetInt64(m, "seed", int64(c.Seed)))
	c.MaxSampled = int(conv.ConfigGetInt64(m, "max_sampled", int64(c.MaxSampled)))
	c.Policy = conv.ConfigGet(m, "policy", c.Policy)
	if v, ok := conv.ToFloat64(m["margin"]); ok {
		c.Margin = v
	}
	c.VerifyNonPositive = conv.ConfigGet(m, "verify_non_positive", c.VerifyNonPositive)
	c.MaxRetries = int(conv.ConfigGetInt64(m, "max_retries", int64(c.MaxRetries)))
	if v, ok := conv.ToFloat64(m["density_threshold"]); ok {
		c.DensityThreshold = v
	}
	if inputs := conv.SliceAnyToString(m["pair_inputs"]); inputs != nil {
		c.PairInputs = inputs
	}
	return c
}
