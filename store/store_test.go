package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/pairfeed/core"
)

// exerciseKeyValueStore 对任意实现跑同一组用例。prefix 用于隔离共享后端中的数据。
func exerciseKeyValueStore(t *testing.T, kv core.KeyValueStore, prefix string) {
	ctx := context.Background()
	zkey := prefix + "interactions:u1"
	require.NoError(t, kv.ZAdd(ctx, zkey, 3, "i3"))
	require.NoError(t, kv.ZAdd(ctx, zkey, 5, "i5"))
	require.NoError(t, kv.ZAdd(ctx, zkey, 1, "i1"))

	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"all", 0, -1, []string{"i5", "i3", "i1"}},
		{"top two", 0, 1, []string{"i5", "i3"}},
		{"tail", 2, -1, []string{"i1"}},
		{"out of range", 5, 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := kv.ZRange(ctx, zkey, tt.start, tt.stop)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	scored, err := kv.ZRangeWithScores(ctx, zkey, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []core.ScoredMember{
		{Member: "i5", Score: 5},
		{Member: "i3", Score: 3},
		{Member: "i1", Score: 1},
	}, scored)

	missing, err := kv.ZRange(ctx, prefix+"interactions:nobody", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, missing)

	hkey := prefix + "user:u1"
	require.NoError(t, kv.HSet(ctx, hkey, "age", []byte("18-24")))
	require.NoError(t, kv.HSet(ctx, hkey, "country", []byte("cn")))
	h, err := kv.HGetAll(ctx, hkey)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"age": []byte("18-24"), "country": []byte("cn")}, h)

	empty, err := kv.HGetAll(ctx, prefix+"user:nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore(t *testing.T) {
	kv := NewMemoryStore()
	defer kv.Close()
	assert.Equal(t, "memory", kv.Name())
	exerciseKeyValueStore(t, kv, "")
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("PAIRFEED_REDIS_ADDR")
	if addr == "" {
		t.Skip("PAIRFEED_REDIS_ADDR not set")
	}
	kv, err := NewRedisStore(context.Background(), addr, 0)
	require.NoError(t, err)
	defer kv.Close()
	assert.Equal(t, "redis", kv.Name())
	exerciseKeyValueStore(t, kv, fmt.Sprintf("pairfeed_test:%d:", time.Now().UnixNano()))
}

func TestRedisStore_Unreachable(t *testing.T) {
	if os.Getenv("PAIRFEED_REDIS_ADDR") == "" {
		t.Skip("PAIRFEED_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := NewRedisStore(ctx, "127.0.0.1:1", 0)
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
}
