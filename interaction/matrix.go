// Package interaction 提供用户-物品隐式反馈的稀疏布尔矩阵。
//
// 矩阵有两种表示：
//   - 坐标形式（COO）：始终存在，保持原始交互顺序，供按交互分批使用
//   - 压缩行形式（CSR + 每行一个 roaring bitmap）：按需构建，
//     供校验式均匀采样、自适应采样和按用户分批使用
package interaction

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/rushteam/pairfeed/core"
)

// Matrix 是 n_users x n_items 的稀疏布尔交互矩阵，构建后只读。
//
// 行下标 = 用户编码，列下标 = 物品编码，均为 0..n-1 的连续整数。
// 重复的 (user, item) 在坐标形式中各占一行，在压缩行形式中合并为一个元素。
type Matrix struct {
	nUsers int
	nItems int

	// 坐标形式
	users []int32
	items []int32

	// 压缩行形式（懒构建）
	rowsOnce sync.Once
	rowsDone atomic.Bool
	indptr   []int
	indices  []int32
	bitmaps  []*roaring.Bitmap
}

// New 根据等长的用户编码与物品编码序列构建交互矩阵。
func New(userCodes, itemCodes []int, nUsers, nItems int) (*Matrix, error) {
	if len(userCodes) != len(itemCodes) {
		return nil, core.NewDomainError(core.ModuleInteraction, core.ErrorCodeInvalidInput,
			fmt.Sprintf("interaction: user codes (%d) and item codes (%d) differ in length", len(userCodes), len(itemCodes)))
	}
	if nUsers < 0 || nItems < 0 {
		return nil, core.NewDomainError(core.ModuleInteraction, core.ErrorCodeInvalidInput,
			fmt.Sprintf("interaction: invalid shape (%d, %d)", nUsers, nItems))
	}

	m := &Matrix{
		nUsers: nUsers,
		nItems: nItems,
		users:  make([]int32, len(userCodes)),
		items:  make([]int32, len(itemCodes)),
	}
	for k := range userCodes {
		u, i := userCodes[k], itemCodes[k]
		if u < 0 || u >= nUsers {
			return nil, core.NewDomainError(core.ModuleInteraction, core.ErrorCodeInvalidInput,
				fmt.Sprintf("interaction: user code %d at row %d out of range [0, %d)", u, k, nUsers))
		}
		if i < 0 || i >= nItems {
			return nil, core.NewDomainError(core.ModuleInteraction, core.ErrorCodeInvalidInput,
				fmt.Sprintf("interaction: item code %d at row %d out of range [0, %d)", i, k, nItems))
		}
		m.users[k] = int32(u)
		m.items[k] = int32(i)
	}
	return m, nil
}

// Shape 返回 (n_users, n_items)。
func (m *Matrix) Shape() (int, int) { return m.nUsers, m.nItems }

// NUsers 返回用户数。
func (m *Matrix) NUsers() int { return m.nUsers }

// NItems 返回物品数。
func (m *Matrix) NItems() int { return m.nItems }

// NNZ 返回坐标形式的交互条数（含重复）。
func (m *Matrix) NNZ() int { return len(m.users) }

// At 返回第 k 条交互的 (user, item)。
func (m *Matrix) At(k int) (int, int) { return int(m.users[k]), int(m.items[k]) }

// User 返回第 k 条交互的用户。
func (m *Matrix) User(k int) int { return int(m.users[k]) }

// Item 返回第 k 条交互的物品。
func (m *Matrix) Item(k int) int { return int(m.items[k]) }

// BuildRows 构建压缩行形式。多次调用只构建一次，并发安全。
func (m *Matrix) BuildRows() {
	m.rowsOnce.Do(m.buildRows)
}

// HasRows 报告压缩行形式是否已构建。
func (m *Matrix) HasRows() bool {
	return m.rowsDone.Load()
}

func (m *Matrix) buildRows() {
	bitmaps := make([]*roaring.Bitmap, m.nUsers)
	for u := range bitmaps {
		bitmaps[u] = roaring.New()
	}
	for k := range m.users {
		bitmaps[m.users[k]].Add(uint32(m.items[k]))
	}

	indptr := make([]int, m.nUsers+1)
	for u, bm := range bitmaps {
		bm.RunOptimize()
		indptr[u+1] = indptr[u] + int(bm.GetCardinality())
	}
	indices := make([]int32, indptr[m.nUsers])
	for u, bm := range bitmaps {
		row := indices[indptr[u]:indptr[u+1]]
		for j, it := range bm.ToArray() {
			row[j] = int32(it)
		}
	}

	m.indptr = indptr
	m.indices = indices
	m.bitmaps = bitmaps
	m.rowsDone.Store(true)
}

// Row 返回用户 u 交互过的全部物品（升序、去重），O(nnz_u)。
// 返回的切片是内部存储的视图，调用方不得修改。
func (m *Matrix) Row(u int) []int32 {
	m.BuildRows()
	return m.indices[m.indptr[u]:m.indptr[u+1]]
}

// RowLen 返回用户 u 的去重正样本数。
func (m *Matrix) RowLen(u int) int {
	m.BuildRows()
	return m.indptr[u+1] - m.indptr[u]
}

// Contains 报告 (u, i) 是否为已知正样本。
func (m *Matrix) Contains(u, i int) bool {
	m.BuildRows()
	return m.bitmaps[u].Contains(uint32(i))
}

// Density 返回用户 u 的正样本占物品全集的比例。
func (m *Matrix) Density(u int) float64 {
	if m.nItems == 0 {
		return 0
	}
	return float64(m.RowLen(u)) / float64(m.nItems)
}

// Complement 返回用户 u 未交互过的全部物品（升序）。
func (m *Matrix) Complement(u int) []int {
	m.BuildRows()
	full := roaring.New()
	full.AddRange(0, uint64(m.nItems))
	full.AndNot(m.bitmaps[u])

	out := make([]int, 0, full.GetCardinality())
	it := full.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
