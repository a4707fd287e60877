// Package metrics exposes Prometheus counters/gauges for the ingestion
// pipeline plus a small local atomic mirror for cheap in-process logging,
// following the teacher stack's own metrics package shape (promauto
// registration, a readiness function, and a Snapshot struct for periodic
// status logging).
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/twse-ingest/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	RecordsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "records_decoded_total",
		Help: "Total market-data records successfully decoded.",
	})
	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_rejected_total",
		Help: "Total candidate frames rejected by the decoder, by reason.",
	}, []string{"reason"})
	RecordsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "records_dispatched_total",
		Help: "Total decoded records handed to a consumer.",
	})
	DispatchDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_drops_total",
		Help: "Total records dropped by the async dispatch sink because its queue was full.",
	})
	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Most recently observed depth of the async dispatch queue.",
	})
	SocketDatagrams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socket_datagrams_total",
		Help: "Total UDP datagrams read from the multicast/unicast socket.",
	})
	SocketBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socket_bytes_total",
		Help: "Total bytes read from the socket.",
	})
	MulticastJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multicast_joins_total",
		Help: "Total successful multicast group joins (including rejoins after restart).",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrSocketRead    = "socket_read"
	ErrMulticastJoin = "multicast_join"
	ErrFramerSync    = "framer_resync"
	ErrConsumerPanic = "consumer_panic"
)

// StartHTTP serves Prometheus metrics at /metrics, plus a /ready endpoint
// driven by SetReadinessFunc.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap periodic status logging, without
// scraping Prometheus in-process.
var (
	localDecoded    uint64
	localRejected   uint64
	localDispatched uint64
	localDrops      uint64
	localDatagrams  uint64
	localJoins      uint64
	localErrors     uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Decoded    uint64
	Rejected   uint64
	Dispatched uint64
	Drops      uint64
	Datagrams  uint64
	Joins      uint64
	Errors     uint64
}

func Snap() Snapshot {
	return Snapshot{
		Decoded:    atomic.LoadUint64(&localDecoded),
		Rejected:   atomic.LoadUint64(&localRejected),
		Dispatched: atomic.LoadUint64(&localDispatched),
		Drops:      atomic.LoadUint64(&localDrops),
		Datagrams:  atomic.LoadUint64(&localDatagrams),
		Joins:      atomic.LoadUint64(&localJoins),
		Errors:     atomic.LoadUint64(&localErrors),
	}
}

// IncDecoded records one successfully decoded record.
func IncDecoded() {
	RecordsDecoded.Inc()
	atomic.AddUint64(&localDecoded, 1)
}

// IncRejected records one rejected frame, labeled by the sentinel error's reason.
func IncRejected(reason string) {
	RecordsRejected.WithLabelValues(reason).Inc()
	atomic.AddUint64(&localRejected, 1)
}

// IncDispatched records one record handed to a consumer.
func IncDispatched() {
	RecordsDispatched.Inc()
	atomic.AddUint64(&localDispatched, 1)
}

// IncDispatchDrop records one record dropped by a saturated async sink.
func IncDispatchDrop() {
	DispatchDrops.Inc()
	atomic.AddUint64(&localDrops, 1)
}

// SetDispatchQueueDepth records the async sink's current queue depth.
func SetDispatchQueueDepth(depth int) {
	DispatchQueueDepth.Set(float64(depth))
}

// AddSocketDatagram records one datagram of n bytes read from the socket.
func AddSocketDatagram(n int) {
	SocketDatagrams.Inc()
	SocketBytes.Add(float64(n))
	atomic.AddUint64(&localDatagrams, 1)
}

// IncMulticastJoin records one successful multicast group join.
func IncMulticastJoin() {
	MulticastJoins.Inc()
	atomic.AddUint64(&localJoins, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers common error
// label series so the first real error doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrSocketRead, ErrMulticastJoin, ErrFramerSync, ErrConsumerPanic} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
