package feature

import (
	"fmt"

	"github.com/rushteam/pairfeed/core"
)

// KeyedTable 是按实体 ID 索引、尚未对齐的特征表（数据加载方的原始输出）。
// Codes 为列优先布局，与 Keys 逐行对应；Num 可为空。
type KeyedTable struct {
	Keys    []string
	Columns []string
	Codes   [][]int32
	NumKey  string
	Num     [][]float32
}

// Align 按 order（实体的类别顺序）重排行，得到第 i 行对应编码 i 的 Table。
// order 中出现而 Keys 中缺失的实体返回 NOT_FOUND。
func (k *KeyedTable) Align(entity Entity, order []string) (*Table, error) {
	pos := make(map[string]int, len(k.Keys))
	for r, key := range k.Keys {
		if _, dup := pos[key]; dup {
			return nil, invalidTable(entity, fmt.Sprintf("duplicate key %q", key))
		}
		pos[key] = r
	}
	if len(k.Codes) != len(k.Columns) {
		return nil, invalidTable(entity, fmt.Sprintf("%d columns but %d code arrays", len(k.Columns), len(k.Codes)))
	}

	rowIdx := make([]int, len(order))
	for i, key := range order {
		r, ok := pos[key]
		if !ok {
			return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeNotFound,
				fmt.Sprintf("feature: %s table has no row for %q", entity, key))
		}
		rowIdx[i] = r
	}

	codes := make([][]int32, len(k.Columns))
	for c := range k.Columns {
		if len(k.Codes[c]) != len(k.Keys) {
			return nil, invalidTable(entity, fmt.Sprintf("column %q has %d rows, want %d", k.Columns[c], len(k.Codes[c]), len(k.Keys)))
		}
		col := make([]int32, len(order))
		for i, r := range rowIdx {
			col[i] = k.Codes[c][r]
		}
		codes[c] = col
	}

	t, err := NewTable(entity, len(order), k.Columns, codes)
	if err != nil {
		return nil, err
	}
	if k.Num == nil {
		return t, nil
	}
	if len(k.Num) != len(k.Keys) {
		return nil, invalidTable(entity, fmt.Sprintf("numerical features have %d rows, want %d", len(k.Num), len(k.Keys)))
	}
	num := make([][]float32, len(order))
	for i, r := range rowIdx {
		num[i] = k.Num[r]
	}
	return t.WithNumerical(k.NumKey, num)
}
