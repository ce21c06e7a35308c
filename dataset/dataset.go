// Package dataset 定义采样器与数据加载方之间的输入契约。
package dataset

import (
	"fmt"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/feature"
)

// Dataset 是一份已编码的训练数据：
//   - 交互表：等长的用户编码与物品编码（编码即类别下标）
//   - 类别：编码 i 对应的原始 ID
//   - 特征表：用户 / 物品表按编码对齐；上下文表按交互行对齐（可选）
type Dataset struct {
	UserCodes []int
	ItemCodes []int

	UserCategories []string
	ItemCategories []string

	User    *feature.Table
	Item    *feature.Table
	Context *feature.Table
}

// NUsers 返回用户编码空间的基数。
func (d *Dataset) NUsers() int { return len(d.UserCategories) }

// NItems 返回物品编码空间的基数。
func (d *Dataset) NItems() int { return len(d.ItemCategories) }

// NInteractions 返回交互条数。
func (d *Dataset) NInteractions() int { return len(d.UserCodes) }

// Validate 校验交互表与各特征表的对齐关系。
func (d *Dataset) Validate() error {
	if len(d.UserCodes) != len(d.ItemCodes) {
		return invalid(fmt.Sprintf("user codes (%d) and item codes (%d) differ in length", len(d.UserCodes), len(d.ItemCodes)))
	}
	if d.User != nil {
		if err := d.User.CheckRows(d.NUsers()); err != nil {
			return err
		}
	}
	if d.Item != nil {
		if err := d.Item.CheckRows(d.NItems()); err != nil {
			return err
		}
	}
	if d.Context != nil {
		if err := d.Context.CheckRows(d.NInteractions()); err != nil {
			return err
		}
	}
	if d.User != nil && d.Item != nil {
		userCols := make(map[string]struct{})
		for _, c := range d.User.Columns() {
			userCols[c] = struct{}{}
		}
		for _, c := range d.Item.Columns() {
			if _, dup := userCols[c]; dup {
				return invalid(fmt.Sprintf("column %q appears in both user and item tables", c))
			}
		}
	}
	return nil
}

func invalid(msg string) error {
	return core.NewDomainError(core.ModuleSource, core.ErrorCodeInvalidInput, "dataset: "+msg)
}
