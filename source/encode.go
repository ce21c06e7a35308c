// Package source 把原始训练数据（交互记录、实体特征）编码成 dataset.Dataset。
//
// 数据来源：
//   - Builder：内存中的交互记录，可选 CEL 过滤
//   - StoreLoader：core.KeyValueStore（Redis / 内存）中的有序集合与 Hash
//   - FeastLoader：Feast 在线特征
//   - Manifest：YAML 清单（小规模数据、命令行工具）
package source

import (
	"fmt"
	"sort"

	"github.com/rushteam/pairfeed/core"
)

// CategoryEncoder 将原始 ID 映射为类别编码：类别按字典序排列，编码为排序后的下标。
// 同一组输入无论出现顺序如何，得到的编码都相同。
type CategoryEncoder struct {
	Categories []string
	index      map[string]int
}

// FitCategories 对若干组取值的并集建立编码。
func FitCategories(values ...[]string) *CategoryEncoder {
	seen := make(map[string]struct{})
	for _, vs := range values {
		for _, v := range vs {
			seen[v] = struct{}{}
		}
	}
	cats := make([]string, 0, len(seen))
	for v := range seen {
		cats = append(cats, v)
	}
	sort.Strings(cats)

	index := make(map[string]int, len(cats))
	for i, c := range cats {
		index[c] = i
	}
	return &CategoryEncoder{Categories: cats, index: index}
}

// Len 返回类别数。
func (e *CategoryEncoder) Len() int { return len(e.Categories) }

// Code 返回取值的编码。
func (e *CategoryEncoder) Code(v string) (int, bool) {
	c, ok := e.index[v]
	return c, ok
}

// Transform 编码一组取值，未见过的取值返回 NOT_FOUND。
func (e *CategoryEncoder) Transform(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		c, ok := e.index[v]
		if !ok {
			return nil, core.NewDomainError(core.ModuleSource, core.ErrorCodeNotFound,
				fmt.Sprintf("source: unknown category %q", v))
		}
		out[i] = c
	}
	return out, nil
}

// encodeColumn 对一列取值建立编码并返回 int32 编码列（特征表的存储类型）。
func encodeColumn(values []string) []int32 {
	enc := FitCategories(values)
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(enc.index[v])
	}
	return out
}
