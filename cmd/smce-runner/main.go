// Command smce-runner sequences one BoardRunner through configure, build,
// start, and a tick loop until its child sketch exits or a shutdown signal
// arrives, then prints its runtime log. The build log is only logged when
// the build fails.
//
// Grounded on the teacher's cmd/inos-node/main.go: a sequential, unadorned
// main() with no command framework. No argument-parsing library appears
// anywhere in the pack (cobra/urfave/pflag/kingpin), so the standard
// library's flag package is used here without substitution.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/logging"
	"github.com/smce-go/runner/internal/metrics"
	"github.com/smce-go/runner/internal/runner"
)

func main() {
	configPath := flag.String("config", "", "path to the runner launch YAML file")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on, empty disables")
	tickInterval := flag.Duration("tick-interval", 100*time.Millisecond, "poll interval for the child-exit tick loop")
	flag.Parse()

	logger := logging.Named("smce-runner")
	defer func() { _ = logger.Sync() }()

	if *configPath == "" {
		logger.Error("missing required flag", zap.String("flag", "config"))
		os.Exit(2)
	}

	fc, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		os.Exit(2)
	}

	var reg *metrics.Registry
	if *metricsAddr != "" {
		promReg := prometheus.NewRegistry()
		reg = metrics.New(promReg)
		go serveMetrics(*metricsAddr, promReg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCodeCh := make(chan int, 1)
	br := runner.New(fc.ExecutionContext(), func(code int) {
		select {
		case exitCodeCh <- code:
		default:
		}
	}, reg, logger)
	defer func() { _ = br.Close() }()

	if !br.Configure(fc.FQBN, fc.BoardConfig()) {
		logger.Error("configure rejected by state machine", zap.String("status", br.Status().String()))
		os.Exit(1)
	}
	if !br.Build(ctx, fc.SketchSrc, fc.SketchConfig()) {
		logger.Error("build failed", zap.ByteString("build_log", br.BuildLog()))
		os.Exit(1)
	}
	if !br.Start() {
		logger.Error("start rejected by state machine", zap.String("status", br.Status().String()))
		os.Exit(1)
	}
	logger.Info("sketch running", zap.String("fqbn", fc.FQBN), zap.Uint64("sketch_id", br.SketchID()))

	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	exitCode := 0
loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received, terminating child")
			br.Terminate()
			break loop
		case code := <-exitCodeCh:
			exitCode = code
			logger.Info("child exited", zap.Int("exit_code", code))
			break loop
		case <-ticker.C:
			br.Tick()
		}
	}

	fmt.Fprintln(os.Stdout, "--- runtime log ---")
	os.Stdout.Write(br.RuntimeLog())
	os.Exit(exitCode)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
