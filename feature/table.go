// Package feature 提供按实体编码对齐的特征表（用户 / 物品 / 上下文）。
//
// 每张表由若干命名的类别编码列和一个可选的数值特征矩阵组成，
// 第 i 行对应编码为 i 的实体（上下文表则对应第 i 条交互）。
package feature

import (
	"fmt"

	"github.com/rushteam/pairfeed/core"
)

// Entity 标记特征表所属的实体类型。
type Entity string

const (
	EntityUser    Entity = "user"
	EntityItem    Entity = "item"
	EntityContext Entity = "context"
)

// DefaultNumKey 返回实体数值特征的默认键名，例如 "user_num_feats"。
func DefaultNumKey(entity Entity) string {
	return string(entity) + "_num_feats"
}

// Table 是按实体编码对齐的特征表，构建后只读。
type Table struct {
	entity  Entity
	rows    int
	columns []string
	codes   [][]int32 // 列优先：codes[c][row]
	numKey  string
	num     [][]float32 // 行优先：num[row][dim]，可为空
}

// NewTable 创建特征表。codes 为列优先布局，len(codes) 必须等于 len(columns)，每列长度等于 rows。
func NewTable(entity Entity, rows int, columns []string, codes [][]int32) (*Table, error) {
	if rows < 0 {
		return nil, invalidTable(entity, fmt.Sprintf("negative row count %d", rows))
	}
	if len(columns) != len(codes) {
		return nil, invalidTable(entity, fmt.Sprintf("%d columns but %d code arrays", len(columns), len(codes)))
	}
	seen := make(map[string]struct{}, len(columns))
	for c, name := range columns {
		if _, dup := seen[name]; dup {
			return nil, invalidTable(entity, fmt.Sprintf("duplicate column %q", name))
		}
		seen[name] = struct{}{}
		if len(codes[c]) != rows {
			return nil, invalidTable(entity, fmt.Sprintf("column %q has %d rows, want %d", name, len(codes[c]), rows))
		}
	}
	return &Table{
		entity:  entity,
		rows:    rows,
		columns: append([]string(nil), columns...),
		codes:   codes,
	}, nil
}

// WithNumerical 挂载数值特征矩阵（行优先，每行维度一致）。key 为空时使用 DefaultNumKey。
func (t *Table) WithNumerical(key string, num [][]float32) (*Table, error) {
	if len(num) != t.rows {
		return nil, invalidTable(t.entity, fmt.Sprintf("numerical features have %d rows, want %d", len(num), t.rows))
	}
	for r := 1; r < len(num); r++ {
		if len(num[r]) != len(num[0]) {
			return nil, invalidTable(t.entity, fmt.Sprintf("numerical row %d has %d dims, want %d", r, len(num[r]), len(num[0])))
		}
	}
	if key == "" {
		key = DefaultNumKey(t.entity)
	}
	t.numKey = key
	t.num = num
	return t, nil
}

func (t *Table) Entity() Entity { return t.entity }
func (t *Table) Rows() int      { return t.rows }

// Columns 返回类别列名（顺序稳定）。
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasNumerical 报告是否挂载了数值特征。
func (t *Table) HasNumerical() bool { return t.num != nil }

// NumKey 返回数值特征键名，未挂载时为空。
func (t *Table) NumKey() string { return t.numKey }

// NumDims 返回数值特征维度，未挂载时为 0。
func (t *Table) NumDims() int {
	if len(t.num) == 0 {
		return 0
	}
	return len(t.num[0])
}

// Cardinality 返回某列的编码基数（最大编码 + 1），列不存在时返回 0。
func (t *Table) Cardinality(column string) int {
	for c, name := range t.columns {
		if name != column {
			continue
		}
		maxCode := int32(-1)
		for _, v := range t.codes[c] {
			if v > maxCode {
				maxCode = v
			}
		}
		return int(maxCode) + 1
	}
	return 0
}

// CheckRows 校验行数是否等于实体编码空间的基数。
func (t *Table) CheckRows(n int) error {
	if t.rows != n {
		return invalidTable(t.entity, fmt.Sprintf("table has %d rows, want %d", t.rows, n))
	}
	return nil
}

// Rows 是按下标从特征表取出的一批行。
type Rows struct {
	Codes  map[string][]int32
	NumKey string
	Num    [][]float32
}

// Gather 按下标取行。t 为 nil 时返回空结果（实体没有特征表）。
func (t *Table) Gather(inds []int) Rows {
	if t == nil {
		return Rows{Codes: map[string][]int32{}}
	}
	out := Rows{Codes: make(map[string][]int32, len(t.columns))}
	for c, name := range t.columns {
		col := t.codes[c]
		vals := make([]int32, len(inds))
		for j, idx := range inds {
			vals[j] = col[idx]
		}
		out.Codes[name] = vals
	}
	if t.num != nil {
		out.NumKey = t.numKey
		out.Num = make([][]float32, len(inds))
		for j, idx := range inds {
			out.Num[j] = t.num[idx]
		}
	}
	return out
}

func invalidTable(entity Entity, msg string) error {
	return core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
		fmt.Sprintf("feature: %s table: %s", entity, msg))
}

// IdentityTable 创建只有一列实体自身编码的特征表（第 i 行的值为 i）。
func IdentityTable(entity Entity, column string, n int) *Table {
	col := make([]int32, n)
	for i := range col {
		col[i] = int32(i)
	}
	return &Table{
		entity:  entity,
		rows:    n,
		columns: []string{column},
		codes:   [][]int32{col},
	}
}

// WithColumn 追加一列类别编码，返回新表，原表不变。
func (t *Table) WithColumn(name string, codes []int32) (*Table, error) {
	columns := append(append([]string(nil), t.columns...), name)
	all := append(append([][]int32(nil), t.codes...), codes)
	out, err := NewTable(t.entity, t.rows, columns, all)
	if err != nil {
		return nil, err
	}
	out.numKey = t.numKey
	out.num = t.num
	return out, nil
}

// HasColumn 报告表中是否有名为 name 的列。
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.columns {
		if c == name {
			return true
		}
	}
	return false
}
