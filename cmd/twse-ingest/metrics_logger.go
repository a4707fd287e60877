package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/twse-ingest/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"decoded", snap.Decoded,
					"rejected", snap.Rejected,
					"dispatched", snap.Dispatched,
					"drops", snap.Drops,
					"datagrams", snap.Datagrams,
					"multicast_joins", snap.Joins,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
