package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/feature"
	"github.com/rushteam/pairfeed/pkg/dsl"
)

func sampleRecords() []Record {
	return []Record{
		{User: "u2", Item: "i1", Score: 5, Source: "purchase", Context: map[string]string{"hour": "9"}},
		{User: "u1", Item: "i2", Score: 3, Source: "click", Context: map[string]string{"hour": "21"}},
		{User: "u1", Item: "i1", Score: 4, Source: "click", Context: map[string]string{"hour": "9"}},
		{User: "u3", Item: "i3", Score: 1, Source: "impression"},
	}
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder()
	b.Add(sampleRecords()...)
	assert.Equal(t, 4, b.Len())

	ds, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u2", "u3"}, ds.UserCategories)
	assert.Equal(t, []string{"i1", "i2", "i3"}, ds.ItemCategories)
	assert.Equal(t, []int{1, 0, 0, 2}, ds.UserCodes)
	assert.Equal(t, []int{0, 1, 0, 2}, ds.ItemCodes)
	assert.Nil(t, ds.Context)

	// 默认附带实体自身编码列
	assert.Equal(t, []string{"user_id"}, ds.User.Columns())
	assert.Equal(t, []int32{2, 0}, ds.User.Gather([]int{2, 0}).Codes["user_id"])
	assert.Equal(t, []string{"item_id"}, ds.Item.Columns())
}

func TestBuilder_Filter(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantUsers []string
		wantItems []string
		wantLen   int
	}{
		{"match all", "", []string{"u1", "u2", "u3"}, []string{"i1", "i2", "i3"}, 4},
		{"score threshold", "x.score >= 3.0", []string{"u1", "u2"}, []string{"i1", "i2"}, 3},
		{"by source", `x.source == "click"`, []string{"u1"}, []string{"i1", "i2"}, 2},
		{"by context", `has(x.context.hour) && x.context.hour == "9"`, []string{"u1", "u2"}, []string{"i1"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := dsl.Compile(tt.expr)
			require.NoError(t, err)

			b := NewBuilder(WithFilter(f))
			b.Add(sampleRecords()...)
			ds, err := b.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsers, ds.UserCategories)
			assert.Equal(t, tt.wantItems, ds.ItemCategories)
			assert.Equal(t, tt.wantLen, ds.NInteractions())
		})
	}
}

func TestBuilder_FilterError(t *testing.T) {
	f, err := dsl.Compile(`x.attrs.device == "ios"`)
	require.NoError(t, err)

	b := NewBuilder(WithFilter(f))
	b.Add(sampleRecords()...)
	_, err = b.Build()
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestBuilder_ContextColumns(t *testing.T) {
	f, err := dsl.Compile("x.score >= 3.0")
	require.NoError(t, err)

	b := NewBuilder(WithFilter(f), WithContextColumns("hour"))
	b.Add(sampleRecords()...)
	ds, err := b.Build()
	require.NoError(t, err)

	require.NotNil(t, ds.Context)
	assert.Equal(t, 3, ds.Context.Rows())
	// 取值 "9" / "21" / "9"，字典序下 "21" < "9"
	assert.Equal(t, []int32{1, 0, 1}, ds.Context.Gather([]int{0, 1, 2}).Codes["hour"])
}

func TestBuilder_EntityFeatures(t *testing.T) {
	users := &feature.KeyedTable{
		Keys:    []string{"u3", "u2", "u1", "u9"},
		Columns: []string{"age"},
		Codes:   [][]int32{{0, 1, 2, 3}},
		NumKey:  "user_num_feats",
		Num:     [][]float32{{0.3}, {0.2}, {0.1}, {0.9}},
	}
	b := NewBuilder(WithUserFeatures(users))
	b.Add(sampleRecords()...)
	ds, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "user_id"}, ds.User.Columns())
	rows := ds.User.Gather([]int{0, 1, 2})
	assert.Equal(t, []int32{2, 1, 0}, rows.Codes["age"])
	assert.Equal(t, []int32{0, 1, 2}, rows.Codes["user_id"])
	assert.Equal(t, "user_num_feats", rows.NumKey)
	assert.Equal(t, [][]float32{{0.1}, {0.2}, {0.3}}, rows.Num)
}

func TestBuilder_MissingFeatureRow(t *testing.T) {
	items := &feature.KeyedTable{
		Keys:    []string{"i1", "i2"},
		Columns: []string{"genre"},
		Codes:   [][]int32{{0, 1}},
	}
	b := NewBuilder(WithItemFeatures(items))
	b.Add(sampleRecords()...)
	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestBuilder_IDColumns(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		b := NewBuilder(WithIDColumns("", ""))
		b.Add(sampleRecords()...)
		ds, err := b.Build()
		require.NoError(t, err)
		assert.Nil(t, ds.User)
		assert.Nil(t, ds.Item)
	})

	t.Run("renamed", func(t *testing.T) {
		b := NewBuilder(WithIDColumns("uid", "iid"))
		b.Add(sampleRecords()...)
		ds, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"uid"}, ds.User.Columns())
		assert.Equal(t, []string{"iid"}, ds.Item.Columns())
	})

	t.Run("already present", func(t *testing.T) {
		items := &feature.KeyedTable{
			Keys:    []string{"i1", "i2", "i3"},
			Columns: []string{"item_id"},
			Codes:   [][]int32{{7, 8, 9}},
		}
		b := NewBuilder(WithItemFeatures(items))
		b.Add(sampleRecords()...)
		ds, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"item_id"}, ds.Item.Columns())
		assert.Equal(t, []int32{7, 8, 9}, ds.Item.Gather([]int{0, 1, 2}).Codes["item_id"])
	})
}

func TestBuilder_Empty(t *testing.T) {
	ds, err := NewBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, 0, ds.NInteractions())
	assert.Equal(t, 0, ds.NUsers())
}
