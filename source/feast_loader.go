package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/pairfeed/feast"
	"github.com/rushteam/pairfeed/feature"
)

// FeastLoader 从 Feast 在线特征读取实体特征表。
//
// 特征名使用 Feast 的 "<view>:<feature>" 形式，同时也是生成的列名。
// 实体按 ChunkSize 分块请求，块之间并发。
type FeastLoader struct {
	client      feast.Client
	entityKey   string
	spec        FeatureSpec
	chunkSize   int
	concurrency int
	logger      *zap.Logger
}

// NewFeastLoader 创建 FeastLoader。entityKey 是 Feast 实体列名，例如 "user_id"。
func NewFeastLoader(client feast.Client, entityKey string, spec FeatureSpec) *FeastLoader {
	return &FeastLoader{
		client:      client,
		entityKey:   entityKey,
		spec:        spec,
		chunkSize:   500,
		concurrency: 4,
		logger:      zap.NewNop(),
	}
}

// WithChunkSize 设置每次请求的实体数
func (l *FeastLoader) WithChunkSize(n int) *FeastLoader {
	if n > 0 {
		l.chunkSize = n
	}
	return l
}

// WithConcurrency 设置并发请求数
func (l *FeastLoader) WithConcurrency(n int) *FeastLoader {
	if n > 0 {
		l.concurrency = n
	}
	return l
}

func (l *FeastLoader) WithLogger(logger *zap.Logger) *FeastLoader {
	l.logger = logger
	return l
}

// Load 读取 keys 对应实体的特征。
func (l *FeastLoader) Load(ctx context.Context, entity feature.Entity, keys []string) (*feature.KeyedTable, error) {
	features := append(append([]string(nil), l.spec.Categorical...), l.spec.Numerical...)
	if len(features) == 0 {
		return nil, fmt.Errorf("source: no feast features declared for %s", entity)
	}
	rows := make([]map[string]any, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for start := 0; start < len(keys); start += l.chunkSize {
		end := min(start+l.chunkSize, len(keys))
		g.Go(func() error {
			entityRows := make([]map[string]any, 0, end-start)
			for _, k := range keys[start:end] {
				entityRows = append(entityRows, map[string]any{l.entityKey: k})
			}
			resp, err := l.client.GetOnlineFeatures(gctx, &feast.GetOnlineFeaturesRequest{
				Features:   features,
				EntityRows: entityRows,
			})
			if err != nil {
				return fmt.Errorf("source: feast %s chunk [%d, %d): %w", entity, start, end, err)
			}
			if len(resp.FeatureVectors) != end-start {
				return fmt.Errorf("source: feast %s chunk [%d, %d) returned %d rows", entity, start, end, len(resp.FeatureVectors))
			}
			for j, fv := range resp.FeatureVectors {
				rows[start+j] = fv.Values
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	l.logger.Info("feast features loaded",
		zap.String("entity", string(entity)),
		zap.Int("rows", len(keys)),
		zap.Int("features", len(features)))
	return keyedFromValues(entity, keys, rows, l.spec)
}
