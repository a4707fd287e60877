package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kstaniek/twse-ingest/internal/control"
	"github.com/kstaniek/twse-ingest/internal/decoder"
	"github.com/kstaniek/twse-ingest/internal/dispatch"
	"github.com/kstaniek/twse-ingest/internal/metrics"
	"github.com/kstaniek/twse-ingest/internal/record"
	"github.com/kstaniek/twse-ingest/internal/socket"
)

// Helper implementations moved to dedicated files: version.go, config.go,
// logger.go, metrics_logger.go, mdns.go, consumer.go.

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("twse-ingest %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	l, closeLog, err := setupLogger(cfg.logFormat, cfg.logLevel, cfg.logFileDir)
	if err != nil {
		fmt.Printf("logger init error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	codes, err := parseFormatCodes(cfg.formatCodes)
	if err != nil {
		l.Error("format_codes_error", "error", err)
		os.Exit(1)
	}
	allow := make([]record.FormatCode, len(codes))
	for i, c := range codes {
		allow[i] = record.FormatCode(c)
	}
	dec := decoder.New(decoder.WithAllowList(allow), decoder.WithStrict(cfg.strict))

	consumer := newDemoConsumer(l, cfg.mode, cfg.stockFilter)
	var sink dispatch.Sink
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.asyncDispatch {
		sink = dispatch.NewAsync(ctx, cfg.dispatchBuffer, consumer, dispatch.Hooks{
			OnDrop:       metrics.IncDispatchDrop,
			OnQueueDepth: metrics.SetDispatchQueueDepth,
		})
	} else {
		sink = dispatch.Direct{Consumer: consumer}
	}

	sess := control.New(control.Config{
		Socket: socket.Config{
			Port:           cfg.port,
			MulticastGroup: cfg.multicastGroup,
			InterfaceAddr:  cfg.iface,
		},
		Decoder:  dec,
		Sink:     sink,
		Logger:   l,
		OnReject: rejectLogger(l, cfg.stockFilter),
	})

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	if err := sess.Start(ctx); err != nil {
		l.Error("session_start_error", "error", err)
		os.Exit(1)
	}

	metrics.SetReadinessFunc(func() bool {
		return sess.State() == control.StateRunning
	})

	var metricsSrv interface{ Shutdown(context.Context) error }
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsSrv = metrics.StartHTTP(cfg.metricsAddr)
	}

	go func() {
		if !cfg.mdnsEnable || cfg.metricsAddr == "" {
			return
		}
		_, portStr, err := net.SplitHostPort(cfg.metricsAddr)
		if err != nil {
			l.Warn("mdns_skipped", "reason", "unparseable metrics-addr", "addr", cfg.metricsAddr)
			return
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			l.Warn("mdns_skipped", "reason", "non-numeric metrics port", "addr", cfg.metricsAddr)
			return
		}
		cleanup, err := startMDNS(ctx, cfg, port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", port)
		go func() { <-ctx.Done(); cleanup() }()
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := sess.Stop(stopCtx); err != nil {
		l.Error("session_stop_error", "error", err)
	}
	stopCancel()

	cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(context.Background())
	}
	wg.Wait()
}
