package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 领域层不依赖基础设施层，source 只通过接口读数据
//
// 使用场景：
//   - 交互数据：每个用户一个有序集合，member 为物品 ID，score 为评分/时间戳
//   - 特征数据：每个实体一个 Hash，field 为特征名
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Close 关闭连接/释放资源
	Close() error
}

// ScoredMember 是有序集合中的一个成员及其分数。
type ScoredMember struct {
	Member string
	Score  float64
}

// KeyValueStore 是 Store 的扩展接口，提供加载训练数据所需的有序集合与哈希操作。
//
// 如果后端不支持某些操作，可返回 ErrStoreNotSupported。
type KeyValueStore interface {
	Store

	// ZAdd 向有序集合添加成员
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRange 按分数降序获取有序集合成员（stop = -1 表示到末尾）
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRangeWithScores 同 ZRange，但同时返回分数（用于按评分过滤交互）
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// HSet 写入 Hash 字段
	HSet(ctx context.Context, key, field string, value []byte) error

	// HGetAll 读取整个 Hash（用于实体特征）
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}
