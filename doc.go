// Package pairfeed 是一个推荐模型训练用的成对样本生成器（Pairwise Feed）。
//
// 设计要点：
// - Dataset-first: 数据加载方只负责把交互与实体特征编码成 dataset.Dataset
// - Sampler 可替换: 均匀 / 校验式均匀 / 自适应（WARP）负采样在构造时选定
// - Feed 即输入: 每个批次是 user.* / pos.* / neg.* / context.* 槽的集合，直接喂给训练图
package pairfeed

import (
	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/feed"
	"github.com/rushteam/pairfeed/sampler"
)

// 轻量 facade：便于用户直接 import "pairfeed" 使用核心抽象。
type Dataset = dataset.Dataset
type Feed = feed.Feed
type PairSampler = sampler.PairSampler
type Iterator = sampler.Iterator
type Option = sampler.Option

const (
	MethodUniform         = sampler.MethodUniform
	MethodUniformVerified = sampler.MethodUniformVerified
	MethodAdaptive        = sampler.MethodAdaptive
)

// New 等同于 sampler.New。
func New(ds *Dataset, opts ...Option) (*PairSampler, error) {
	return sampler.New(ds, opts...)
}
