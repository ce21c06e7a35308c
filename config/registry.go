package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/model"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/pairfeed/config/builders"
// 以触发内置数据源（manifest、redis）与模型（factor、rpc）的 init 注册。

// DatasetBuilder 根据 SourceConfig 加载并编码训练数据。
type DatasetBuilder func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (*dataset.Dataset, error)

// ModelBuilder 根据 ModelConfig 与已加载的数据集构建打分模型。
type ModelBuilder func(cfg ModelConfig, ds *dataset.Dataset) (model.Scorer, error)

var (
	registryMu      sync.RWMutex
	datasetBuilders = make(map[string]DatasetBuilder)
	modelBuilders   = make(map[string]ModelBuilder)
)

// RegisterSource 注册一种数据源。建议在 init 中调用，例如：
// func init() { config.RegisterSource("redis", BuildRedisDataset) }
func RegisterSource(kind string, builder DatasetBuilder) {
	if kind == "" || builder == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	datasetBuilders[kind] = builder
}

// RegisterModel 注册一种打分模型。
func RegisterModel(kind string, builder ModelBuilder) {
	if kind == "" || builder == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	modelBuilders[kind] = builder
}

// SupportedSources 返回已注册的数据源（排序），用于错误提示与校验。
func SupportedSources() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(datasetBuilders)
}

// SupportedModels 返回已注册的模型（排序）。
func SupportedModels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(modelBuilders)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckRegistered 校验配置中引用的数据源与模型均已注册；若有未支持类型则返回包含已支持列表的错误。
func CheckRegistered(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	registryMu.RLock()
	_, okSource := datasetBuilders[cfg.Source.Kind]
	_, okModel := modelBuilders[cfg.Model.Kind]
	registryMu.RUnlock()
	if !okSource {
		return fmt.Errorf("unsupported source kind %q (supported: %v)", cfg.Source.Kind, SupportedSources())
	}
	if cfg.Model.Kind != "" && !okModel {
		return fmt.Errorf("unsupported model kind %q (supported: %v)", cfg.Model.Kind, SupportedModels())
	}
	return nil
}

// BuildDataset 用已注册的构建函数加载数据集。
func BuildDataset(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (*dataset.Dataset, error) {
	registryMu.RLock()
	b, ok := datasetBuilders[cfg.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source kind %q (supported: %v)", cfg.Kind, SupportedSources())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return b(ctx, cfg, logger)
}

// BuildModel 构建打分模型。Kind 为空时返回 nil, nil。
func BuildModel(cfg ModelConfig, ds *dataset.Dataset) (model.Scorer, error) {
	if cfg.Kind == "" {
		return nil, nil
	}
	registryMu.RLock()
	b, ok := modelBuilders[cfg.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported model kind %q (supported: %v)", cfg.Kind, SupportedModels())
	}
	return b(cfg, ds)
}
