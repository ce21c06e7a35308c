// Package feed 定义一个训练批次的输入结构：命名输入槽 -> 批次数组。
//
// 槽名形如 "<tag>.<feature>"，tag 为 user / pos / neg / context。
package feed

import (
	"fmt"
	"sort"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/feature"
)

// 槽名前缀
const (
	TagUser    = "user"
	TagPos     = "pos"
	TagNeg     = "neg"
	TagContext = "context"
)

// Slot 拼接槽名，例如 Slot(TagPos, "genre") == "pos.genre"。
func Slot(tag, name string) string {
	return tag + "." + name
}

// Feed 是一个批次的输入。每个批次生成一次、消费一次，不持久化。
type Feed struct {
	// Users / PosItems / NegItems 是本批次的实体下标，三者等长
	Users    []int
	PosItems []int
	NegItems []int

	// Codes 保存类别特征槽，Dense 保存数值特征槽
	Codes map[string][]int32
	Dense map[string][][]float32
}

// New 创建一个空 Feed。
func New(users, pos, neg []int) *Feed {
	return &Feed{
		Users:    users,
		PosItems: pos,
		NegItems: neg,
		Codes:    make(map[string][]int32),
		Dense:    make(map[string][][]float32),
	}
}

// Size 返回批次大小。
func (f *Feed) Size() int { return len(f.Users) }

// Put 以 tag 为前缀写入一组特征行。
func (f *Feed) Put(tag string, rows feature.Rows) {
	for name, vals := range rows.Codes {
		f.Codes[Slot(tag, name)] = vals
	}
	if rows.Num != nil && rows.NumKey != "" {
		f.Dense[Slot(tag, rows.NumKey)] = rows.Num
	}
}

// Slots 返回全部槽名（升序）。
func (f *Feed) Slots() []string {
	out := make([]string, 0, len(f.Codes)+len(f.Dense))
	for k := range f.Codes {
		out = append(out, k)
	}
	for k := range f.Dense {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CheckDeclared 校验每个槽都在训练图声明的输入中。
func (f *Feed) CheckDeclared(declared map[string]struct{}) error {
	for _, slot := range f.Slots() {
		if _, ok := declared[slot]; !ok {
			return core.NewDomainError(core.ModuleSampler, core.ErrorCodeInvalidInput,
				fmt.Sprintf("feed: slot %q is not a declared input", slot))
		}
	}
	return nil
}
