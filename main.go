package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"signalrelay/internal/config"
	"signalrelay/internal/http/http_server"
	"signalrelay/internal/metrics"
	"signalrelay/internal/relay"
	"signalrelay/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
		if prodLog, err := zap.NewProduction(); err == nil {
			Log = prodLog
			zap.ReplaceGlobals(Log)
		}
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Metrics registry
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	relayMetrics := metrics.New(promReg)

	// 4. Room registry, dispatcher and websocket transport
	hub := relay.NewHub(relayMetrics)
	wsSrv := ws.NewWsServer(hub, cfg)

	// 5. HTTP servers
	relaySrv := http_server.NewHttpServer(ctx, "relay", cfg.Port,
		http_server.NewRelayEngine(wsSrv, relayMetrics), cfg.ShutdownTimeout)
	go func() {
		if err := relaySrv.Start(); err != nil {
			Log.Fatal("Failed to start relay server", zap.Error(err))
		}
	}()

	if cfg.MetricsPort != 0 {
		metricsSrv := http_server.NewHttpServer(ctx, "metrics", cfg.MetricsPort,
			http_server.NewMetricsEngine(promReg), cfg.ShutdownTimeout)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				Log.Fatal("Failed to start metrics server", zap.Error(err))
			}
		}()
		defer metricsSrv.Dispose()
	}

	<-ctx.Done()
	Log.Info("Shutting down")

	// Hijacked websocket connections are not tracked by http.Server, so close
	// them before draining the listener.
	wsSrv.Shutdown()
	_ = relaySrv.Dispose()
}
