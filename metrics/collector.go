// Package metrics 将采样过程暴露为 Prometheus 指标。
//
// 用法：
//
//	c := metrics.NewCollector(prometheus.DefaultRegisterer)
//	s, err := sampler.New(ds, sampler.WithObserver(c))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/pairfeed/sampler"
)

const namespace = "pairfeed"

// Collector 实现 sampler.Observer，所有指标注册在调用方提供的 Registerer 上。
type Collector struct {
	Epochs            *prometheus.CounterVec
	Batches           *prometheus.CounterVec
	NegativeDraws     *prometheus.CounterVec
	VerifiedFallbacks prometheus.Counter
	Exhausted         prometheus.Counter
	ScoringDuration   *prometheus.HistogramVec
	ScoringErrors     *prometheus.CounterVec
}

var _ sampler.Observer = (*Collector)(nil)

// NewCollector 创建并注册指标。同一个 Registerer 只能注册一次。
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Epochs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Total number of epochs started",
		}, []string{"mode"}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of training batches emitted",
		}, []string{"mode", "method"}),
		NegativeDraws: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negative_draws_total",
			Help:      "Total number of negative candidates drawn, including rejected ones",
		}, []string{"method"}),
		VerifiedFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verified_complement_fallbacks_total",
			Help:      "Total number of verified draws served from a user's complement set",
		}),
		Exhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampling_exhausted_total",
			Help:      "Total number of users found with no negative item left",
		}),
		ScoringDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Duration of adaptive scoring calls in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		ScoringErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_errors_total",
			Help:      "Total number of failed adaptive scoring calls",
		}, []string{"kind"}),
	}
}

func (c *Collector) EpochStarted(mode string, _ int) {
	c.Epochs.WithLabelValues(mode).Inc()
}

func (c *Collector) BatchEmitted(mode, method string) {
	c.Batches.WithLabelValues(mode, method).Inc()
}

func (c *Collector) NegativesDrawn(method string, draws int) {
	c.NegativeDraws.WithLabelValues(method).Add(float64(draws))
}

func (c *Collector) VerifiedFallback() { c.VerifiedFallbacks.Inc() }

func (c *Collector) SamplingExhausted() { c.Exhausted.Inc() }

func (c *Collector) ScoringCall(kind string, elapsed time.Duration, err error) {
	c.ScoringDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		c.ScoringErrors.WithLabelValues(kind).Inc()
	}
}
