// Package store 提供 core.KeyValueStore 的实现（内存 / Redis）。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	kv, err := store.NewRedisStore(ctx, "localhost:6379", 0)
package store
