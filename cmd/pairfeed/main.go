// pairfeed 加载训练数据，按配置跑采样器并输出批次摘要，同时在 /metrics 暴露采样指标。
//
//	pairfeed -config pairfeed.yaml
//	PAIRFEED_SAMPLER__METHOD=uniform_verified pairfeed -config pairfeed.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rushteam/pairfeed/config"
	_ "github.com/rushteam/pairfeed/config/builders"
	"github.com/rushteam/pairfeed/feed"
	"github.com/rushteam/pairfeed/metrics"
	"github.com/rushteam/pairfeed/pkg/logger"
	"github.com/rushteam/pairfeed/prefetch"
	"github.com/rushteam/pairfeed/sampler"
)

var configPath = flag.String("config", "", "path to the YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Must("development").Fatal("load config", zap.Error(err))
	}
	log := logger.Must(cfg.Log.Mode)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("pairfeed failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := config.CheckRegistered(cfg); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)
	if cfg.Run.MetricsAddr != "" {
		srv := serveMetrics(cfg.Run.MetricsAddr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ds, err := config.BuildDataset(ctx, cfg.Source, log)
	if err != nil {
		return err
	}
	scorer, err := config.BuildModel(cfg.Model, ds)
	if err != nil {
		return err
	}

	opts, err := cfg.Sampler.Options()
	if err != nil {
		return err
	}
	opts = append(opts, sampler.WithLogger(log), sampler.WithObserver(collector))
	if scorer != nil {
		opts = append(opts, sampler.WithModel(scorer))
	}
	s, err := sampler.New(ds, opts...)
	if err != nil {
		return err
	}

	var src prefetch.Source = s.Iter()
	if cfg.Run.Prefetch > 0 {
		p := prefetch.Start(ctx, src, cfg.Run.Prefetch, prefetch.WithLogger(log))
		defer p.Close()
		src = p
	}

	start := time.Now()
	n := 0
	for cfg.Run.Batches == 0 || n < cfg.Run.Batches {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		logBatch(log, n, f)
		n++
	}
	log.Info("run finished",
		zap.Int("batches", n),
		zap.Int("batches_per_epoch", s.BatchesPerEpoch()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func logBatch(log *zap.Logger, n int, f *feed.Feed) {
	log.Info("batch",
		zap.Int("n", n),
		zap.Int("size", f.Size()),
		zap.Ints("users", head(f.Users)),
		zap.Ints("pos", head(f.PosItems)),
		zap.Ints("neg", head(f.NegItems)),
		zap.Strings("slots", f.Slots()))
}

// head 只取前几个下标用于日志
func head(xs []int) []int {
	const limit = 8
	if len(xs) > limit {
		return xs[:limit]
	}
	return xs
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
