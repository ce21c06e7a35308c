package model

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func TestLRModel_Forward(t *testing.T) {
	m := NewLRModel(-1,
		map[string]float64{WeightKey("genre", 1): 2, WeightKey("user_id", 0): 0.5},
		map[string][]float64{"item_num_feats": {1, 10}},
		[]string{"user_id", "genre"},
		[]string{"item_num_feats"})

	in := m.Inputs(2)
	require.NoError(t, in.SetCodes("user_id", []int32{0, 1}))
	require.NoError(t, in.SetCodes("genre", []int32{1, 0}))
	require.NoError(t, in.SetDense("item_num_feats", [][]float32{{0.5, 0}, {0, 0.25}}))

	scores, err := m.Forward(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, -1+2+0.5+0.5, scores[0], 1e-9)
	assert.InDelta(t, -1+2.5, scores[1], 1e-9)
	assert.Equal(t, "lr", m.Name())

	probs, err := m.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(2), probs[0], 1e-9)
	assert.InDelta(t, sigmoid(1.5), probs[1], 1e-9)
}

func TestLRModel_ForwardKeepsMargin(t *testing.T) {
	m := NewLRModel(0,
		map[string]float64{WeightKey("item_id", 0): -20, WeightKey("item_id", 1): 20},
		nil, []string{"item_id"}, nil)

	in := m.Inputs(2)
	require.NoError(t, in.SetCodes("item_id", []int32{0, 1}))
	scores, err := m.Forward(context.Background(), in)
	require.NoError(t, err)
	// 分数差不被压缩到 (0,1) 之内
	assert.Greater(t, scores[1]-scores[0], 1.0)
	assert.Less(t, scores[0], 0.0)

	_, err = m.Predict(context.Background(), m.Inputs(1))
	assert.Error(t, err)
}

func TestLRModel_Errors(t *testing.T) {
	m := NewLRModel(0, nil, nil, []string{"item_id"}, nil)

	_, err := m.Forward(context.Background(), m.Inputs(1))
	assert.Error(t, err, "unfed input")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := m.Inputs(1)
	require.NoError(t, in.SetCodes("item_id", []int32{0}))
	_, err = m.Forward(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadLRModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bias": 0.5, "weights": {"item_id=2": -0.5}}`), 0o644))

	m, err := LoadLRModel(path, []string{"item_id"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.Bias)
	assert.Empty(t, m.Dense)

	in := m.Inputs(2)
	require.NoError(t, in.SetCodes("item_id", []int32{2, 1}))
	scores, err := m.Forward(context.Background(), in)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scores[0], 1e-9)
	assert.InDelta(t, 0.5, scores[1], 1e-9)

	_, err = LoadLRModel(filepath.Join(dir, "missing.json"), nil, nil)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"bias": "x"`), 0o644))
	_, err = LoadLRModel(bad, nil, nil)
	assert.Error(t, err)
}
