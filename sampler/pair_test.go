package sampler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/feed"
	"github.com/rushteam/pairfeed/model"
)

func collect(t *testing.T, it *Iterator) []*feed.Feed {
	t.Helper()
	var out []*feed.Feed
	for f, err := range it.All(context.Background()) {
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero batch size", []Option{WithBatchSize(0)}},
		{"unknown method", []Option{WithMethod(Method(9))}},
		{"unknown policy", []Option{WithPolicy(Policy(5))}},
		{"adaptive without model", []Option{WithMethod(MethodAdaptive)}},
		{"adaptive without candidates", []Option{WithMethod(MethodAdaptive), WithMaxSampled(0), WithModel(&stubScorer{})}},
		{"negative retries", []Option{WithMaxRetries(-1)}},
		{"density out of range", []Option{WithDensityThreshold(1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(fixtureDataset(t), tt.opts...)
			require.Error(t, err)
			assert.True(t, core.IsInvalidConfig(err), "got %v", err)
		})
	}

	t.Run("nil dataset", func(t *testing.T) {
		_, err := New(nil)
		assert.True(t, core.IsInvalidConfig(err))
	})
}

func TestNew_InvalidDataset(t *testing.T) {
	ds := fixtureDataset(t)
	ds.ItemCodes[0] = 3
	_, err := New(ds)
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestParseMethodAndPolicy(t *testing.T) {
	for name, want := range map[string]Method{
		"":                 MethodUniform,
		"uniform":          MethodUniform,
		"uniform_verified": MethodUniformVerified,
		"adaptive":         MethodAdaptive,
	} {
		got, err := ParseMethod(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMethod("softmax")
	assert.True(t, core.IsInvalidConfig(err))

	p, err := ParsePolicy("first_violation")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstViolation, p)
	_, err = ParsePolicy("random")
	assert.True(t, core.IsInvalidConfig(err))

	assert.Equal(t, "uniform_verified", MethodUniformVerified.String())
	assert.Equal(t, "worst_offender", PolicyWorstOffender.String())
}

func TestIterator_EndToEnd(t *testing.T) {
	s, err := New(fixtureDataset(t),
		WithBatchSize(2),
		WithMethod(MethodUniform),
		WithShuffle(false),
		WithEpochs(1),
	)
	require.NoError(t, err)
	assert.Equal(t, ModeByInteraction, s.Mode())
	assert.Equal(t, 3, s.BatchesPerEpoch())

	batches := collect(t, s.Iter())
	require.Len(t, batches, 3)

	wantUsers := [][]int{{0, 0}, {1, 2}, {2, 2}}
	wantPos := [][]int{{0, 2}, {1, 0}, {1, 2}}
	wantHours := [][]int32{{0, 1}, {2, 3}, {4, 5}}
	for b, f := range batches {
		assert.Equal(t, 2, f.Size())
		assert.Equal(t, wantUsers[b], f.Users)
		assert.Equal(t, wantPos[b], f.PosItems)
		for j := range f.Users {
			assert.True(t, s.Matrix().Contains(f.Users[j], f.PosItems[j]))
			assert.True(t, f.NegItems[j] >= 0 && f.NegItems[j] < 3)
		}
		assert.Equal(t, []string{
			"context.hour",
			"neg.genre", "neg.item_id", "neg.item_num_feats",
			"pos.genre", "pos.item_id", "pos.item_num_feats",
			"user.user_id",
		}, f.Slots())
		assert.Equal(t, wantHours[b], f.Codes["context.hour"])
		assert.Len(t, f.Dense["pos.item_num_feats"], 2)
	}
}

func TestIterator_BatchCount(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		epochs    int
		want      int
	}{
		{"batch 1", 1, 1, 6},
		{"batch 2", 2, 1, 3},
		{"remainder dropped", 4, 1, 1},
		{"exact fit", 6, 1, 1},
		{"larger than data", 7, 1, 0},
		{"two epochs", 2, 2, 6},
		{"zero epochs", 2, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(fixtureDataset(t),
				WithBatchSize(tt.batchSize),
				WithEpochs(tt.epochs),
				WithSeed(1),
			)
			require.NoError(t, err)
			batches := collect(t, s.Iter())
			assert.Len(t, batches, tt.want)
			for _, f := range batches {
				assert.Equal(t, tt.batchSize, f.Size())
			}
		})
	}
}

func TestIterator_ByUser(t *testing.T) {
	s, err := New(fixtureDataset(t),
		WithBatchSize(1),
		WithUniformUsers(true),
		WithShuffle(false),
		WithEpochs(1),
	)
	require.NoError(t, err)
	assert.Equal(t, ModeByUser, s.Mode())

	batches := collect(t, s.Iter())
	// u3 没有正样本，不参与按用户分批
	require.Len(t, batches, 3)
	for u, f := range batches {
		assert.Equal(t, []int{u}, f.Users)
		assert.True(t, s.Matrix().Contains(u, f.PosItems[0]))
		for _, slot := range f.Slots() {
			assert.NotContains(t, slot, feed.TagContext+".")
		}
	}
}

func TestIterator_Unbounded(t *testing.T) {
	s, err := New(fixtureDataset(t), WithBatchSize(2), WithEpochs(-1))
	require.NoError(t, err)
	it := s.Iter()
	for range 10 {
		f, err := it.Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, f.Size())
	}
	assert.Equal(t, 4, it.Epoch())
}

func TestIterator_UnboundedWithoutFullBatch(t *testing.T) {
	s, err := New(fixtureDataset(t), WithBatchSize(100), WithEpochs(-1))
	require.NoError(t, err)
	_, err = s.Iter().Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestIterator_SeedDeterminism(t *testing.T) {
	run := func(seed uint64) [][]int {
		s, err := New(fixtureDataset(t), WithBatchSize(1), WithEpochs(3), WithSeed(seed))
		require.NoError(t, err)
		var seq [][]int
		for _, f := range collect(t, s.Iter()) {
			seq = append(seq, []int{f.Users[0], f.PosItems[0], f.NegItems[0]})
		}
		return seq
	}

	a, b := run(42), run(42)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, run(43))
}

func TestIterator_StreamsAreIndependent(t *testing.T) {
	s, err := New(fixtureDataset(t), WithBatchSize(1), WithEpochs(3), WithSeed(8))
	require.NoError(t, err)

	first := collect(t, s.Iter())
	second := collect(t, s.Iter())
	require.Len(t, first, 18)
	require.Len(t, second, 18)

	// 第二个迭代器的 epoch 下标快照不受第一个迭代器打乱的影响
	var hoursA, hoursB []int32
	for j := range first {
		hoursA = append(hoursA, first[j].Codes["context.hour"][0])
		hoursB = append(hoursB, second[j].Codes["context.hour"][0])
	}
	assert.NotEqual(t, hoursA, hoursB)
	assert.ElementsMatch(t, hoursA[:6], []int32{0, 1, 2, 3, 4, 5})
	assert.ElementsMatch(t, hoursB[:6], []int32{0, 1, 2, 3, 4, 5})
}

func TestIterator_VerifiedExhausted(t *testing.T) {
	// u2 交互过全部 3 个物品
	s, err := New(fixtureDataset(t),
		WithBatchSize(6),
		WithEpochs(1),
		WithMethod(MethodUniformVerified),
	)
	require.NoError(t, err)

	it := s.Iter()
	_, err = it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsSamplingExhausted(err))

	// 终止后重复返回同一个错误，而不是 io.EOF
	for range 2 {
		_, again := it.Next(context.Background())
		assert.Equal(t, err, again)
		assert.NotErrorIs(t, again, io.EOF)
	}
}

func TestIterator_ScoringErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	s, err := New(fixtureDataset(t),
		WithBatchSize(2),
		WithEpochs(1),
		WithMethod(MethodAdaptive),
		WithModel(&stubScorer{err: boom}),
	)
	require.NoError(t, err)

	it := s.Iter()
	_, err = it.Next(context.Background())
	require.ErrorIs(t, err, boom)
	_, err = it.Next(context.Background())
	assert.ErrorIs(t, err, boom)

	var yielded []error
	for _, err := range it.All(context.Background()) {
		yielded = append(yielded, err)
	}
	require.Len(t, yielded, 1)
	assert.ErrorIs(t, yielded[0], boom)
}

func TestIterator_VerifiedByUserSkipsPositives(t *testing.T) {
	ds := fixtureDataset(t)
	// 去掉 u2 对物品 2 的交互，使每个用户都有负样本可采
	ds.UserCodes = ds.UserCodes[:5]
	ds.ItemCodes = ds.ItemCodes[:5]
	ds.Context = nil

	s, err := New(ds,
		WithBatchSize(1),
		WithEpochs(50),
		WithUniformUsers(true),
		WithMethod(MethodUniformVerified),
	)
	require.NoError(t, err)
	for _, f := range collect(t, s.Iter()) {
		assert.False(t, s.Matrix().Contains(f.Users[0], f.NegItems[0]))
	}
}

func TestIterator_Adaptive(t *testing.T) {
	ds := fixtureDataset(t)
	fm, err := model.NewFactorModel(4,
		[]string{"user_id"},
		[]string{"item_id", "genre"},
		map[string]int{"user_id": 4, "item_id": 3, "genre": 2},
		1)
	require.NoError(t, err)

	s, err := New(ds,
		WithBatchSize(2),
		WithEpochs(1),
		WithMethod(MethodAdaptive),
		WithModel(fm),
		WithMaxSampled(4),
		WithPolicy(PolicyFirstViolation),
	)
	require.NoError(t, err)

	batches := collect(t, s.Iter())
	require.Len(t, batches, 3)
	for _, f := range batches {
		for _, neg := range f.NegItems {
			assert.True(t, neg >= 0 && neg < 3)
		}
	}
}

func TestIterator_PairInputs(t *testing.T) {
	declared := []string{
		"user.user_id",
		"pos.item_id", "pos.genre", "pos.item_num_feats",
		"neg.item_id", "neg.genre", "neg.item_num_feats",
	}

	t.Run("missing context slot", func(t *testing.T) {
		s, err := New(fixtureDataset(t), WithBatchSize(2), WithEpochs(1), WithPairInputs(declared))
		require.NoError(t, err)
		_, err = s.Iter().Next(context.Background())
		require.Error(t, err)
		assert.True(t, core.IsInvalidInput(err))
	})

	t.Run("all declared", func(t *testing.T) {
		s, err := New(fixtureDataset(t), WithBatchSize(2), WithEpochs(1),
			WithPairInputs(append(declared, "context.hour")))
		require.NoError(t, err)
		assert.Len(t, collect(t, s.Iter()), 3)
	})
}

func TestIterator_Canceled(t *testing.T) {
	s, err := New(fixtureDataset(t), WithBatchSize(2))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Iter().Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
