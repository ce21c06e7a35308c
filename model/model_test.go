package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/pairfeed/core"
)

func TestInputs_Shape(t *testing.T) {
	in := NewInputs(2, []string{"user_id", "item_id"}, []string{"item_num_feats"})

	assert.Equal(t, []string{"item_id", "item_num_feats", "user_id"}, in.Declared())

	tests := []struct {
		name string
		set  func() error
	}{
		{"undeclared slot", func() error { return in.SetCodes("genre", []int32{0, 1}) }},
		{"wrong length", func() error { return in.SetCodes("user_id", []int32{0}) }},
		{"kind mismatch", func() error { return in.SetDense("user_id", [][]float32{{1}, {2}}) }},
		{"dense wrong length", func() error { return in.SetDense("item_num_feats", [][]float32{{1}}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set()
			require.Error(t, err)
			assert.True(t, core.IsInvalidInput(err))
		})
	}

	require.NoError(t, in.SetCodes("user_id", []int32{0, 1}))
	require.NoError(t, in.SetCodes("item_id", []int32{1, 1}))
	assert.Error(t, in.Validate())
	require.NoError(t, in.SetDense("item_num_feats", [][]float32{{1}, {2}}))
	assert.NoError(t, in.Validate())

	in.Reset()
	assert.Error(t, in.Validate())
}

func TestFactorModel_Forward(t *testing.T) {
	m, err := NewFactorModel(2, []string{"user_id"}, []string{"item_id"},
		map[string]int{"user_id": 2, "item_id": 3}, 7)
	require.NoError(t, err)

	require.NoError(t, m.SetEmbedding("user_id", 0, []float32{1, 0}))
	require.NoError(t, m.SetEmbedding("user_id", 1, []float32{0, 1}))
	require.NoError(t, m.SetEmbedding("item_id", 0, []float32{2, 0}))
	require.NoError(t, m.SetEmbedding("item_id", 1, []float32{0, 3}))
	require.NoError(t, m.SetEmbedding("item_id", 2, []float32{1, 1}))

	in := m.Inputs(3)
	require.NoError(t, in.SetCodes("user_id", []int32{0, 1, 1}))
	require.NoError(t, in.SetCodes("item_id", []int32{0, 1, 2}))

	scores, err := m.Forward(context.Background(), in)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3, 1}, scores, 1e-6)
}

func TestFactorModel_Errors(t *testing.T) {
	_, err := NewFactorModel(2, []string{"id"}, []string{"id"}, map[string]int{"id": 1}, 0)
	assert.Error(t, err)

	_, err = NewFactorModel(2, []string{"user_id"}, nil, map[string]int{}, 0)
	assert.Error(t, err)

	m, err := NewFactorModel(2, []string{"user_id"}, []string{"item_id"},
		map[string]int{"user_id": 1, "item_id": 1}, 0)
	require.NoError(t, err)
	assert.Error(t, m.SetEmbedding("user_id", 3, []float32{0, 0}))
	assert.Error(t, m.SetEmbedding("user_id", 0, []float32{0}))

	in := m.Inputs(1)
	require.NoError(t, in.SetCodes("user_id", []int32{0}))
	require.NoError(t, in.SetCodes("item_id", []int32{9}))
	_, err = m.Forward(context.Background(), in)
	assert.True(t, core.IsInvalidInput(err))
}

func TestRPCScorer_Forward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req forwardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scores := make([]float64, req.BatchSize)
		for i, code := range req.Codes["item_id"] {
			scores[i] = float64(code) * 0.5
		}
		_ = json.NewEncoder(w).Encode(forwardResponse{Scores: scores})
	}))
	defer srv.Close()

	m := NewRPCScorer("remote", srv.URL, []string{"user_id", "item_id"}, nil, 0)
	in := m.Inputs(2)
	require.NoError(t, in.SetCodes("user_id", []int32{0, 0}))
	require.NoError(t, in.SetCodes("item_id", []int32{2, 4}))

	scores, err := m.Forward(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, scores)
}

func TestRPCScorer_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		m := NewRPCScorer("remote", srv.URL, []string{"item_id"}, nil, 0)
		in := m.Inputs(1)
		require.NoError(t, in.SetCodes("item_id", []int32{1}))
		_, err := m.Forward(context.Background(), in)
		assert.ErrorContains(t, err, "status=500")
	})

	t.Run("count mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"scores": [1, 2, 3]}`))
		}))
		defer srv.Close()

		m := NewRPCScorer("remote", srv.URL, []string{"item_id"}, nil, 0)
		in := m.Inputs(1)
		require.NoError(t, in.SetCodes("item_id", []int32{1}))
		_, err := m.Forward(context.Background(), in)
		assert.True(t, core.IsInvalidInput(err))
	})

	t.Run("unfed input", func(t *testing.T) {
		m := NewRPCScorer("remote", "http://127.0.0.1:0", []string{"item_id"}, nil, 0)
		_, err := m.Forward(context.Background(), m.Inputs(1))
		assert.True(t, core.IsInvalidInput(err))
	})
}
