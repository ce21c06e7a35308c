package sampler

import "time"

// Observer 接收采样过程中的事件，用于监控（见 metrics.Collector）。
// 实现必须是并发安全的：多个 Iterator 可能在不同 goroutine 中运行。
type Observer interface {
	EpochStarted(mode string, epoch int)
	BatchEmitted(mode, method string)
	NegativesDrawn(method string, draws int)
	VerifiedFallback()
	SamplingExhausted()
	ScoringCall(kind string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) EpochStarted(string, int)                 {}
func (nopObserver) BatchEmitted(string, string)              {}
func (nopObserver) NegativesDrawn(string, int)               {}
func (nopObserver) VerifiedFallback()                        {}
func (nopObserver) SamplingExhausted()                       {}
func (nopObserver) ScoringCall(string, time.Duration, error) {}
