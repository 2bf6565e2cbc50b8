// featx 对一组刺激文件运行抽取流水线，以 CSV 输出合并后的特征表。
//
//	featx -pipeline pipeline.yaml -format long -filter 'value > 0.5' a.jpg b.txt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rushteam/featx/config"
	_ "github.com/rushteam/featx/config/builders"
	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/pipeline"
	"github.com/rushteam/featx/pkg/logger"
	"github.com/rushteam/featx/pkg/metrics"
	"github.com/rushteam/featx/result"
	"github.com/rushteam/featx/service"
	"github.com/rushteam/featx/stimulus"
	"github.com/rushteam/featx/store"
)

var _ extractor.Monitor = (*metrics.PrometheusMonitor)(nil)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "featx:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s, files, err := LoadSettings(args, stderr)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no stimulus files given")
	}

	l, err := logger.Init(s.Log.Level, s.Log.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	monitor := metrics.NewPrometheusMonitor(reg, s.Metrics.Namespace)
	if s.Metrics.Addr != "" {
		srv := serveMetrics(s.Metrics.Addr, reg, l)
		defer srv.Close()
	}

	env, cleanup, err := newEnv(ctx, s, l, monitor)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := pipeline.Load(s.Pipeline)
	if err != nil {
		return err
	}
	if s.MaxConcurrent > 0 {
		cfg.Pipeline.MaxConcurrent = s.MaxConcurrent
	}
	p, err := config.Build(ctx, cfg, env)
	if err != nil {
		return err
	}
	defer p.Close()

	stims := make([]core.Stimulus, 0, len(files))
	for _, f := range files {
		stim, err := stimulus.Load(f, s.ComplexText)
		if err != nil {
			return err
		}
		stims = append(stims, stim)
	}

	results, err := p.Run(ctx, stims)
	if err != nil {
		return err
	}
	if s.Redis.Addr != "" {
		sink := result.NewSink(env.Store, result.WithSinkTTL(s.Redis.TTL))
		if err := sink.Save(ctx, results); err != nil {
			return err
		}
		l.Info("results saved", zap.String("store", env.Store.Name()), zap.Int("count", len(results)))
	}

	table, err := result.Merge(results, result.MergeOptions{
		Format:         result.Format(s.Format),
		ExtractorNames: result.ExtractorNames(s.ExtractorNames),
	})
	if err != nil {
		return err
	}
	if s.Filter != "" {
		if table, err = result.Filter(table, s.Filter); err != nil {
			return err
		}
	}
	return writeTable(s.Output, stdout, table)
}

// newEnv 按设置组装流水线依赖，返回的 cleanup 释放 ONNX Runtime 和存储
func newEnv(ctx context.Context, s *Settings, l *zap.Logger, monitor extractor.Monitor) (*pipeline.Env, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				l.Warn("close failed", zap.Error(err))
			}
		}
	}

	openerOpts := []service.OpenerOption{service.WithOpenerTimeout(s.Model.Timeout)}
	if s.Model.Token != "" {
		openerOpts = append(openerOpts, service.WithOpenerAuth(&service.AuthConfig{Type: "bearer", Token: s.Model.Token}))
	}
	if s.Model.ONNXLibrary != "" {
		rt := service.NewONNXRuntime(s.Model.ONNXLibrary)
		closers = append(closers, rt)
		openerOpts = append(openerOpts, service.WithONNXRuntime(rt))
	}
	opener := service.NewOpener(openerOpts...)

	env := &pipeline.Env{
		Opener:  opener,
		Logger:  l,
		Monitor: monitor,
	}
	if s.Model.WeightsRoot != "" {
		env.Loader = service.NewArchitectureLoader(opener, s.Model.WeightsRoot)
	}

	if s.Redis.Addr != "" {
		rs, err := store.NewRedisStore(ctx, s.Redis.Addr, s.Redis.DB, store.WithRedisPassword(s.Redis.Password))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, rs)
		env.Store = rs
	} else {
		ms := store.NewMemoryStore()
		closers = append(closers, ms)
		env.Store = ms
	}
	return env, cleanup, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, l *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}

func writeTable(path string, stdout io.Writer, table *result.Table) error {
	if path == "" {
		return result.WriteCSV(stdout, table)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := result.WriteCSV(f, table); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
