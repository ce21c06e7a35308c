// Package prefetch 在后台 goroutine 中提前生成批次，与训练步骤重叠。
//
// 采样器本身是同步拉取的；Prefetcher 包装任意 Source，用有界 channel
// 缓存至多 depth 个批次。
package prefetch

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/pairfeed/feed"
)

// Source 是可被预取的批次来源，*sampler.Iterator 满足该接口。
type Source interface {
	Next(ctx context.Context) (*feed.Feed, error)
}

type result struct {
	feed *feed.Feed
	err  error
}

// Prefetcher 后台预取批次。Next 只能在单个 goroutine 中调用。
type Prefetcher struct {
	ch     chan result
	cancel context.CancelFunc
	g      *errgroup.Group
	logger *zap.Logger
	done   bool
}

// Option 预取配置选项
type Option func(*Prefetcher)

func WithLogger(l *zap.Logger) Option {
	return func(p *Prefetcher) { p.logger = l }
}

// Start 启动后台生产者。depth <= 0 时按 1 处理。
// ctx 取消或调用 Close 后生产者退出。
func Start(ctx context.Context, src Source, depth int, opts ...Option) *Prefetcher {
	if depth <= 0 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	p := &Prefetcher{
		ch:     make(chan result, depth),
		cancel: cancel,
		g:      g,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	g.Go(func() error {
		defer close(p.ch)
		produced := 0
		for {
			f, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				p.logger.Debug("prefetch source drained", zap.Int("batches", produced))
				return nil
			}
			select {
			case p.ch <- result{feed: f, err: err}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if err != nil {
				return err
			}
			produced++
		}
	})
	return p
}

// Next 返回下一个预取的批次；来源耗尽时返回 io.EOF。
func (p *Prefetcher) Next(ctx context.Context) (*feed.Feed, error) {
	if p.done {
		return nil, io.EOF
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r, ok := <-p.ch:
		if !ok {
			p.done = true
			return nil, io.EOF
		}
		if r.err != nil {
			p.done = true
			return nil, r.err
		}
		return r.feed, nil
	}
}

// Close 停止生产者并等待其退出。来源返回的错误已经通过 Next 交付，
// 这里只报告取消以外的残留错误。
func (p *Prefetcher) Close() error {
	p.cancel()
	err := p.g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
