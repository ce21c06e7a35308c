// Package builders 注册内置的数据源与打分模型。
package builders

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/config"
	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/feast"
	"github.com/rushteam/pairfeed/feature"
	"github.com/rushteam/pairfeed/model"
	"github.com/rushteam/pairfeed/pkg/dsl"
	"github.com/rushteam/pairfeed/source"
	"github.com/rushteam/pairfeed/store"
)

func init() {
	config.RegisterSource("manifest", BuildManifestDataset)
	config.RegisterSource("redis", BuildRedisDataset)
	config.RegisterModel("factor", BuildFactorModel)
	config.RegisterModel("rpc", BuildRPCModel)
	config.RegisterModel("lr", BuildLRModel)
}

// builderOptions 把配置中的过滤表达式与上下文列转换为 Builder 选项。
func builderOptions(cfg config.SourceConfig, logger *zap.Logger) ([]source.BuilderOption, error) {
	opts := []source.BuilderOption{source.WithBuilderLogger(logger)}
	if cfg.Filter != "" {
		f, err := dsl.Compile(cfg.Filter)
		if err != nil {
			return nil, fmt.Errorf("source filter: %w", err)
		}
		opts = append(opts, source.WithFilter(f))
	}
	if len(cfg.ContextColumns) > 0 {
		opts = append(opts, source.WithContextColumns(cfg.ContextColumns...))
	}
	return opts, nil
}

// BuildManifestDataset 从 YAML / JSON 清单构建数据集，配置中的过滤表达式与上下文列覆盖清单。
func BuildManifestDataset(_ context.Context, cfg config.SourceConfig, logger *zap.Logger) (*dataset.Dataset, error) {
	m, err := source.LoadManifest(cfg.Manifest)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", cfg.Manifest, err)
	}
	opts, err := builderOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	return m.Build(opts...)
}

// BuildRedisDataset 从 Redis 读取交互；配置了 Feast 时实体特征改从 Feast 读取。
func BuildRedisDataset(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (*dataset.Dataset, error) {
	kv, err := store.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	defer kv.Close()

	bopts, err := builderOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts := []source.StoreLoaderOption{
		source.WithLayout(cfg.Redis.Layout),
		source.WithUserSpec(cfg.UserFeatures),
		source.WithItemSpec(cfg.ItemFeatures),
		source.WithConcurrency(cfg.Redis.Concurrency),
		source.WithMaxPerUser(cfg.Redis.MaxPerUser),
		source.WithBuilderOptions(bopts...),
		source.WithStoreLogger(logger),
	}

	if cfg.Feast.Endpoint != "" {
		client, err := feast.NewClient(cfg.Feast.Endpoint, cfg.Feast.Project, feast.WithTimeout(cfg.Feast.Timeout))
		if err != nil {
			return nil, err
		}
		defer client.Close()
		if !cfg.UserFeatures.Empty() {
			l := source.NewFeastLoader(client, cfg.Feast.UserEntity, cfg.UserFeatures).
				WithChunkSize(cfg.Feast.ChunkSize).
				WithLogger(logger)
			opts = append(opts, source.WithFeatureLoader(feature.EntityUser, l))
		}
		if !cfg.ItemFeatures.Empty() {
			l := source.NewFeastLoader(client, cfg.Feast.ItemEntity, cfg.ItemFeatures).
				WithChunkSize(cfg.Feast.ChunkSize).
				WithLogger(logger)
			opts = append(opts, source.WithFeatureLoader(feature.EntityItem, l))
		}
	}
	return source.NewStoreLoader(kv, opts...).Load(ctx)
}

// BuildFactorModel 以数据集的全部类别列为特征构建分解模型。
func BuildFactorModel(cfg config.ModelConfig, ds *dataset.Dataset) (model.Scorer, error) {
	userCols, itemCols, cards := categoricalColumns(ds)
	return model.NewFactorModel(cfg.Dim, userCols, itemCols, cards, cfg.Seed)
}

// BuildRPCModel 构建远程打分模型，输入槽为数据集的全部类别列与数值块。
func BuildRPCModel(cfg config.ModelConfig, ds *dataset.Dataset) (model.Scorer, error) {
	userCols, itemCols, _ := categoricalColumns(ds)
	return model.NewRPCScorer("rpc", cfg.Endpoint, append(userCols, itemCols...), numericalSlots(ds), cfg.Timeout), nil
}

// BuildLRModel 从权重文件加载 LR 模型，输入槽与 rpc 相同。
func BuildLRModel(cfg config.ModelConfig, ds *dataset.Dataset) (model.Scorer, error) {
	userCols, itemCols, _ := categoricalColumns(ds)
	return model.LoadLRModel(cfg.Path, append(userCols, itemCols...), numericalSlots(ds))
}

func numericalSlots(ds *dataset.Dataset) []string {
	var out []string
	for _, t := range []*feature.Table{ds.User, ds.Item} {
		if t != nil && t.HasNumerical() {
			out = append(out, t.NumKey())
		}
	}
	return out
}

func categoricalColumns(ds *dataset.Dataset) (user, item []string, cards map[string]int) {
	cards = make(map[string]int)
	if ds.User != nil {
		user = ds.User.Columns()
		for _, c := range user {
			cards[c] = ds.User.Cardinality(c)
		}
	}
	if ds.Item != nil {
		item = ds.Item.Columns()
		for _, c := range item {
			cards[c] = ds.Item.Cardinality(c)
		}
	}
	return user, item, cards
}
