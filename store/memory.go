package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/pairfeed/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/小规模数据。
// 进程重启后数据丢失。
type MemoryStore struct {
	mu     sync.RWMutex
	zsets  map[string]map[string]float64 // zset key -> member -> score
	hashes map[string]map[string][]byte  // hash key -> field -> value
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string][]byte),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Close() error { return nil }

var _ core.KeyValueStore = (*MemoryStore)(nil)

func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	pairs, err := m.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	result := make([]string, len(pairs))
	for i, p := range pairs {
		result[i] = p.Member
	}
	return result, nil
}

func (m *MemoryStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset, ok := m.zsets[key]
	if !ok || len(zset) == 0 {
		return nil, nil
	}

	// 按 score 降序，分数相同按 member 降序（与 Redis ZREVRANGE 一致）
	pairs := make([]core.ScoredMember, 0, len(zset))
	for member, s := range zset {
		pairs = append(pairs, core.ScoredMember{Member: member, Score: s})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		return pairs[i].Member > pairs[j].Member
	})

	// 处理范围
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}
	return pairs[start : stop+1], nil
}

func (m *MemoryStore) HSet(ctx context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string][]byte)
	}
	m.hashes[key][field] = append([]byte(nil), value...)
	return nil
}

// HGetAll 读取整个 Hash，key 不存在时返回空 map（与 Redis 一致）。
func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(m.hashes[key]))
	for field, v := range m.hashes[key] {
		result[field] = v
	}
	return result, nil
}
