package sampler

import "math/rand/v2"

// epochIndex 是单个迭代器持有的批次下标序列。
// 按交互分批时是交互下标，按用户分批时是有正样本的用户编码。
// 每个 epoch 开始前在原位打乱，打乱是累积的（在上一 epoch 的顺序上继续打乱）。
type epochIndex struct {
	order   []int
	shuffle bool
}

func newEpochIndex(base []int, shuffle bool) *epochIndex {
	return &epochIndex{order: append([]int(nil), base...), shuffle: shuffle}
}

// next 开始新的 epoch，返回本 epoch 的下标顺序。
// 返回的切片在下一次 next 调用前有效。
func (e *epochIndex) next(rng *rand.Rand) []int {
	if e.shuffle {
		rng.Shuffle(len(e.order), func(i, j int) {
			e.order[i], e.order[j] = e.order[j], e.order[i]
		})
	}
	return e.order
}

// batches 返回每个 epoch 的完整批次数，末尾不足一批的部分被丢弃。
func (e *epochIndex) batches(batchSize int) int {
	return len(e.order) / batchSize
}
