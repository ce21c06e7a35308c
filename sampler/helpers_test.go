package sampler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/feature"
	"github.com/rushteam/pairfeed/interaction"
	"github.com/rushteam/pairfeed/model"
)

// fixtureDataset 构造 4 用户 x 3 物品的交互：
//
//	u0: 1 0 1
//	u1: 0 1 0
//	u2: 1 1 1
//	u3: 0 0 0
func fixtureDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	item, err := feature.NewTable(feature.EntityItem, 3,
		[]string{"item_id", "genre"},
		[][]int32{{0, 1, 2}, {0, 1, 0}})
	require.NoError(t, err)
	item, err = item.WithNumerical("", [][]float32{{0.1, 1}, {0.2, 2}, {0.3, 3}})
	require.NoError(t, err)
	hours, err := feature.NewTable(feature.EntityContext, 6,
		[]string{"hour"},
		[][]int32{{0, 1, 2, 3, 4, 5}})
	require.NoError(t, err)

	return &dataset.Dataset{
		UserCodes:      []int{0, 0, 1, 2, 2, 2},
		ItemCodes:      []int{0, 2, 1, 0, 1, 2},
		UserCategories: []string{"u0", "u1", "u2", "u3"},
		ItemCategories: []string{"i0", "i1", "i2"},
		User:           feature.IdentityTable(feature.EntityUser, "user_id", 4),
		Item:           item,
		Context:        hours,
	}
}

// sparseMatrix 构造 nUsers x nItems 的矩阵，用户 u 交互过 rows[u] 中的物品。
func sparseMatrix(t *testing.T, nUsers, nItems int, rows map[int][]int) *interaction.Matrix {
	t.Helper()
	var users, items []int
	for u := range nUsers {
		for _, i := range rows[u] {
			users = append(users, u)
			items = append(items, i)
		}
	}
	m, err := interaction.New(users, items, nUsers, nItems)
	require.NoError(t, err)
	m.BuildRows()
	return m
}

// stubScorer 按物品编码查表给分，并记录每次调用的批次大小。
type stubScorer struct {
	itemScore []float64
	err       error
	short     bool
	calls     []int
	declare   []string
}

var _ model.Scorer = (*stubScorer)(nil)

func (s *stubScorer) Name() string { return "stub" }

func (s *stubScorer) Inputs(batchSize int) *model.Inputs {
	cats := s.declare
	if cats == nil {
		cats = []string{"user_id", "item_id", "genre"}
	}
	return model.NewInputs(batchSize, cats, []string{"item_num_feats"})
}

func (s *stubScorer) Forward(_ context.Context, in *model.Inputs) ([]float64, error) {
	s.calls = append(s.calls, in.BatchSize)
	if s.err != nil {
		return nil, s.err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	n := in.BatchSize
	if s.short {
		n--
	}
	out := make([]float64, n)
	for j := range out {
		out[j] = s.itemScore[in.Codes["item_id"][j]]
	}
	return out, nil
}
