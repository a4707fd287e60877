package main

import (
	"log/slog"
	"strings"

	"github.com/kstaniek/twse-ingest/internal/decoder"
	"github.com/kstaniek/twse-ingest/internal/logging"
	"github.com/kstaniek/twse-ingest/internal/record"
)

// demoConsumer is the CLI's own dispatch.Consumer: it either pretty-prints
// every field of a record or, in benchmark mode, logs only the match_time
// (cheap enough not to perturb throughput measurements). A non-empty
// stockFilter (already space-padded to 6 characters by padStock) drops
// records for every other stock code before either path runs.
type demoConsumer struct {
	logger      *slog.Logger
	benchmark   bool
	stockFilter string // "" disables filtering
}

func newDemoConsumer(logger *slog.Logger, mode, stock string) *demoConsumer {
	return &demoConsumer{
		logger:      logger,
		benchmark:   mode == "benchmark",
		stockFilter: padStock(stock),
	}
}

// padStock mirrors the original tool's setStockFilter: pad to 6 characters
// with spaces so it compares equal to the wire field's fixed-width layout.
func padStock(s string) string {
	if s == "" {
		return ""
	}
	if len(s) >= 6 {
		return s[:6]
	}
	return s + strings.Repeat(" ", 6-len(s))
}

func (c *demoConsumer) matches(stockCode string) bool {
	if c.stockFilter == "" {
		return true
	}
	return padStock(stockCode) == c.stockFilter
}

func (c *demoConsumer) Consume(r record.Record) {
	if !c.matches(r.StockCode) {
		return
	}
	if c.benchmark {
		c.logger.Info("record", "match_time", r.MatchTime)
		return
	}
	if r.Warrant != nil {
		c.logger.Info("record_warrant",
			"brief_name", r.Warrant.BriefName,
			"underlying", r.Warrant.UnderlyingCode,
			"expiration", r.Warrant.Expiration,
		)
		return
	}
	c.logger.Info("record",
		"stock", r.StockCode,
		"match_time", r.MatchTime,
		"format", r.Format,
		"cumulative_volume", r.CumulativeVolume,
		"tuples", len(r.Tuples),
		"deal", r.DealPresent(),
		"bids", r.BidCount(),
		"asks", r.AskCount(),
	)
}

// rejectLogger wires internal/control.Config.OnReject: it hex-dumps the
// rejected frame at debug level, unless a stock filter is active and the
// frame's stock code (when it can be read at all) doesn't match — a
// focused debugging session via -stock shouldn't be drowned in unrelated
// rejection noise.
func rejectLogger(logger *slog.Logger, stockFilter string) func([]byte, error) {
	filter := padStock(stockFilter)
	return func(frame []byte, err error) {
		if filter != "" {
			if code, ok := decoder.PeekStockCode(frame); ok && padStock(code) != filter {
				return
			}
		}
		logging.DebugFrame(logger, decoder.Reason(err), frame)
	}
}
