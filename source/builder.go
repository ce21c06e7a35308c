package source

import (
	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/core"
	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/feature"
	"github.com/rushteam/pairfeed/pkg/dsl"
)

// Record 是一条原始交互记录。
type Record struct {
	User  string
	Item  string
	Score float64 // 显式评分 / 次数 / 时间戳，供过滤表达式使用
	// Source 交互来源，例如 click / purchase
	Source string
	// Context 交互级类别特征，例如 {"hour": "21", "device": "ios"}
	Context map[string]string
	// Attrs 其他只用于过滤的属性
	Attrs map[string]any
}

// vars 返回过滤表达式中 x 的取值。
func (r Record) vars() map[string]any {
	ctx := make(map[string]any, len(r.Context))
	for k, v := range r.Context {
		ctx[k] = v
	}
	attrs := r.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{
		"user":    r.User,
		"item":    r.Item,
		"score":   r.Score,
		"source":  r.Source,
		"context": ctx,
		"attrs":   attrs,
	}
}

// Builder 累积交互记录，编码后生成 Dataset。
//
// 用户 / 物品的类别只来自（过滤后的）交互记录；特征表按类别顺序对齐，
// 特征表中多出的实体被忽略，缺失的实体返回 NOT_FOUND。
type Builder struct {
	filter         *dsl.Filter
	userFeatures   *feature.KeyedTable
	itemFeatures   *feature.KeyedTable
	contextColumns []string
	userIDColumn   string
	itemIDColumn   string
	logger         *zap.Logger

	records []Record
}

// BuilderOption Builder 配置选项
type BuilderOption func(*Builder)

// WithFilter 只保留过滤表达式为 true 的记录
func WithFilter(f *dsl.Filter) BuilderOption {
	return func(b *Builder) { b.filter = f }
}

func WithUserFeatures(kt *feature.KeyedTable) BuilderOption {
	return func(b *Builder) { b.userFeatures = kt }
}

func WithItemFeatures(kt *feature.KeyedTable) BuilderOption {
	return func(b *Builder) { b.itemFeatures = kt }
}

// WithContextColumns 声明要编码进上下文特征表的 Record.Context 键
func WithContextColumns(cols ...string) BuilderOption {
	return func(b *Builder) { b.contextColumns = append([]string(nil), cols...) }
}

// WithIDColumns 设置实体自身编码列的名称（默认 user_id / item_id），空字符串表示不加
func WithIDColumns(user, item string) BuilderOption {
	return func(b *Builder) {
		b.userIDColumn = user
		b.itemIDColumn = item
	}
}

func WithBuilderLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder 创建 Builder。
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		userIDColumn: "user_id",
		itemIDColumn: "item_id",
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add 追加交互记录。
func (b *Builder) Add(records ...Record) {
	b.records = append(b.records, records...)
}

// Len 返回已追加的记录数（过滤前）。
func (b *Builder) Len() int { return len(b.records) }

// Build 过滤、编码并对齐特征表。
func (b *Builder) Build() (*dataset.Dataset, error) {
	kept := make([]Record, 0, len(b.records))
	for _, r := range b.records {
		ok, err := b.filter.Match(r.vars())
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleSource, core.ErrorCodeInvalidInput,
				"source: filter "+b.filter.String(), err)
		}
		if ok {
			kept = append(kept, r)
		}
	}

	userIDs := make([]string, len(kept))
	itemIDs := make([]string, len(kept))
	for k, r := range kept {
		userIDs[k] = r.User
		itemIDs[k] = r.Item
	}
	users := FitCategories(userIDs)
	items := FitCategories(itemIDs)
	userCodes, _ := users.Transform(userIDs)
	itemCodes, _ := items.Transform(itemIDs)

	userTable, err := entityTable(feature.EntityUser, b.userFeatures, users.Categories, b.userIDColumn)
	if err != nil {
		return nil, err
	}
	itemTable, err := entityTable(feature.EntityItem, b.itemFeatures, items.Categories, b.itemIDColumn)
	if err != nil {
		return nil, err
	}

	ds := &dataset.Dataset{
		UserCodes:      userCodes,
		ItemCodes:      itemCodes,
		UserCategories: users.Categories,
		ItemCategories: items.Categories,
		User:           userTable,
		Item:           itemTable,
	}

	if len(b.contextColumns) > 0 {
		codes := make([][]int32, len(b.contextColumns))
		for c, name := range b.contextColumns {
			vals := make([]string, len(kept))
			for k, r := range kept {
				vals[k] = r.Context[name]
			}
			codes[c] = encodeColumn(vals)
		}
		ds.Context, err = feature.NewTable(feature.EntityContext, len(kept), b.contextColumns, codes)
		if err != nil {
			return nil, err
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	b.logger.Info("dataset built",
		zap.Int("records", len(b.records)),
		zap.Int("kept", len(kept)),
		zap.Int("users", ds.NUsers()),
		zap.Int("items", ds.NItems()),
		zap.String("filter", b.filter.String()))
	return ds, nil
}

// entityTable 按类别顺序对齐特征表，并按需追加实体自身编码列。
func entityTable(entity feature.Entity, keyed *feature.KeyedTable, categories []string, idColumn string) (*feature.Table, error) {
	var t *feature.Table
	if keyed != nil {
		aligned, err := keyed.Align(entity, categories)
		if err != nil {
			return nil, err
		}
		t = aligned
	}
	if idColumn == "" {
		return t, nil
	}
	if t == nil {
		return feature.IdentityTable(entity, idColumn, len(categories)), nil
	}
	if t.HasColumn(idColumn) {
		return t, nil
	}
	ids := make([]int32, len(categories))
	for i := range ids {
		ids[i] = int32(i)
	}
	return t.WithColumn(idColumn, ids)
}
