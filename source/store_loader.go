package source

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/feature"
)

// StoreLayout 描述训练数据在 KeyValueStore 中的键布局：
//
//	<prefix><users>                有序集合，member 为用户 ID
//	<prefix><interactions><user>   有序集合，member 为物品 ID，score 为评分 / 时间戳
//	<prefix><user_features><user>  Hash，field 为特征名
//	<prefix><item_features><item>  Hash，field 为特征名
type StoreLayout struct {
	Prefix       string `koanf:"prefix" yaml:"prefix"`
	Users        string `koanf:"users" yaml:"users"`
	Interactions string `koanf:"interactions" yaml:"interactions"`
	UserFeatures string `koanf:"user_features" yaml:"user_features"`
	ItemFeatures string `koanf:"item_features" yaml:"item_features"`
}

// DefaultStoreLayout 返回默认键布局。
func DefaultStoreLayout() StoreLayout {
	return StoreLayout{
		Users:        "users",
		Interactions: "interactions:",
		UserFeatures: "user:",
		ItemFeatures: "item:",
	}
}

func (l StoreLayout) UsersKey() string               { return l.Prefix + l.Users }
func (l StoreLayout) InteractionKey(u string) string { return l.Prefix + l.Interactions + u }
func (l StoreLayout) UserKey(u string) string        { return l.Prefix + l.UserFeatures + u }
func (l StoreLayout) ItemKey(i string) string        { return l.Prefix + l.ItemFeatures + i }

// StoreLoader 从 KeyValueStore 并发读取交互与实体特征，生成 Dataset。
type StoreLoader struct {
	kv          core.KeyValueStore
	layout      StoreLayout
	userSpec    FeatureSpec
	itemSpec    FeatureSpec
	concurrency int
	maxPerUser  int64
	builderOpts []BuilderOption
	userLoader  KeyedLoader
	itemLoader  KeyedLoader
	logger      *zap.Logger
}

// KeyedLoader 按实体 ID 读取特征表，FeastLoader 即是一种实现。
type KeyedLoader interface {
	Load(ctx context.Context, entity feature.Entity, keys []string) (*feature.KeyedTable, error)
}

var _ KeyedLoader = (*FeastLoader)(nil)

// StoreLoaderOption StoreLoader 配置选项
type StoreLoaderOption func(*StoreLoader)

func WithLayout(layout StoreLayout) StoreLoaderOption {
	return func(l *StoreLoader) { l.layout = layout }
}

func WithUserSpec(spec FeatureSpec) StoreLoaderOption {
	return func(l *StoreLoader) { l.userSpec = spec }
}

func WithItemSpec(spec FeatureSpec) StoreLoaderOption {
	return func(l *StoreLoader) { l.itemSpec = spec }
}

// WithConcurrency 设置并发读取的上限
func WithConcurrency(n int) StoreLoaderOption {
	return func(l *StoreLoader) { l.concurrency = n }
}

// WithMaxPerUser 每个用户只取分数最高的 n 条交互，0 表示全部
func WithMaxPerUser(n int64) StoreLoaderOption {
	return func(l *StoreLoader) { l.maxPerUser = n }
}

// WithBuilderOptions 透传给内部 Builder（过滤表达式、上下文列等）
func WithBuilderOptions(opts ...BuilderOption) StoreLoaderOption {
	return func(l *StoreLoader) { l.builderOpts = append(l.builderOpts, opts...) }
}

// WithFeatureLoader 改由 loader 读取某类实体的特征，替代存储中的 Hash
func WithFeatureLoader(entity feature.Entity, loader KeyedLoader) StoreLoaderOption {
	return func(l *StoreLoader) {
		switch entity {
		case feature.EntityUser:
			l.userLoader = loader
		case feature.EntityItem:
			l.itemLoader = loader
		}
	}
}

func WithStoreLogger(logger *zap.Logger) StoreLoaderOption {
	return func(l *StoreLoader) { l.logger = logger }
}

// NewStoreLoader 创建 StoreLoader。
func NewStoreLoader(kv core.KeyValueStore, opts ...StoreLoaderOption) *StoreLoader {
	l := &StoreLoader{
		kv:          kv,
		layout:      DefaultStoreLayout(),
		concurrency: 16,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.concurrency <= 0 {
		l.concurrency = 1
	}
	return l
}

// Load 读取全部用户的交互，再读取出现过的实体的特征 Hash。
func (l *StoreLoader) Load(ctx context.Context) (*dataset.Dataset, error) {
	users, err := l.kv.ZRange(ctx, l.layout.UsersKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("source: list users from %s: %w", l.kv.Name(), err)
	}
	sort.Strings(users)

	stop := int64(-1)
	if l.maxPerUser > 0 {
		stop = l.maxPerUser - 1
	}
	perUser := make([][]core.ScoredMember, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, u := range users {
		g.Go(func() error {
			ms, err := l.kv.ZRangeWithScores(gctx, l.layout.InteractionKey(u), 0, stop)
			if err != nil {
				return fmt.Errorf("source: interactions of %q: %w", u, err)
			}
			perUser[i] = ms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []Record
	itemSet := make(map[string]struct{})
	for i, u := range users {
		for _, m := range perUser[i] {
			records = append(records, Record{User: u, Item: m.Member, Score: m.Score})
			itemSet[m.Member] = struct{}{}
		}
	}
	items := make([]string, 0, len(itemSet))
	for it := range itemSet {
		items = append(items, it)
	}
	sort.Strings(items)
	l.logger.Info("interactions loaded",
		zap.String("store", l.kv.Name()),
		zap.Int("users", len(users)),
		zap.Int("items", len(items)),
		zap.Int("interactions", len(records)))

	opts := append([]BuilderOption(nil), l.builderOpts...)
	userKT, err := l.entityFeatures(ctx, feature.EntityUser, users, l.userLoader, l.layout.UserKey, l.userSpec)
	if err != nil {
		return nil, err
	}
	if userKT != nil {
		opts = append(opts, WithUserFeatures(userKT))
	}
	itemKT, err := l.entityFeatures(ctx, feature.EntityItem, items, l.itemLoader, l.layout.ItemKey, l.itemSpec)
	if err != nil {
		return nil, err
	}
	if itemKT != nil {
		opts = append(opts, WithItemFeatures(itemKT))
	}

	b := NewBuilder(opts...)
	b.Add(records...)
	return b.Build()
}

// entityFeatures 优先使用外部 loader，否则按 spec 读取 Hash；两者都没有时返回 nil。
func (l *StoreLoader) entityFeatures(ctx context.Context, entity feature.Entity, keys []string, loader KeyedLoader, keyOf func(string) string, spec FeatureSpec) (*feature.KeyedTable, error) {
	if loader != nil {
		return loader.Load(ctx, entity, keys)
	}
	if spec.Empty() {
		return nil, nil
	}
	return l.loadFeatures(ctx, entity, keys, keyOf, spec)
}

func (l *StoreLoader) loadFeatures(ctx context.Context, entity feature.Entity, keys []string, keyOf func(string) string, spec FeatureSpec) (*feature.KeyedTable, error) {
	rows := make([]map[string]any, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, k := range keys {
		g.Go(func() error {
			h, err := l.kv.HGetAll(gctx, keyOf(k))
			if err != nil {
				return fmt.Errorf("source: %s features of %q: %w", entity, k, err)
			}
			row := make(map[string]any, len(h))
			for field, v := range h {
				row[field] = v
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	l.logger.Debug("features loaded",
		zap.String("entity", string(entity)),
		zap.Int("rows", len(rows)))
	return keyedFromValues(entity, keys, rows, spec)
}
