package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	port            int
	multicastGroup  string
	iface           string
	stockFilter     string
	mode            string
	formatCodes     string
	asyncDispatch   bool
	dispatchBuffer  int
	strict          bool
	logFormat       string
	logLevel        string
	logFileDir      string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	port := flag.Int("port", 10000, "UDP listen port")
	multicastGroup := flag.String("multicast", "", "IPv4 multicast group to join (empty disables multicast)")
	iface := flag.String("iface", "", "Local IPv4 address of the interface to join/send multicast on")
	stockFilter := flag.String("stock", "", "If set, the demo consumer only prints records for this stock code")
	mode := flag.String("mode", "", "Demo consumer mode: \"\" (pretty-print) or \"benchmark\" (match_time only)")
	var formatCodeVals []string
	flag.Func("format-codes", "Decoder format-code allow-list entry; repeat the flag for multiple codes, e.g. -format-codes 6 -format-codes 23 (default 6)", func(v string) error {
		formatCodeVals = append(formatCodeVals, v)
		return nil
	})
	asyncDispatch := flag.Bool("async-dispatch", false, "Use the bounded-channel async dispatch sink instead of inline delivery")
	dispatchBuffer := flag.Int("dispatch-buffer", 1024, "Async dispatch channel capacity (only with -async-dispatch)")
	strict := flag.Bool("strict", false, "Enable strict decoding (message_length cross-check, BCD nibble validation)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	logFileDir := flag.String("log-file", "", "If set, also write a timestamped log file under this directory")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise the metrics endpoint via mDNS")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default twse-ingest-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.port = *port
	cfg.multicastGroup = *multicastGroup
	cfg.iface = *iface
	cfg.stockFilter = *stockFilter
	cfg.mode = *mode
	if len(formatCodeVals) == 0 {
		cfg.formatCodes = "6"
	} else {
		cfg.formatCodes = strings.Join(formatCodeVals, ",")
	}
	cfg.asyncDispatch = *asyncDispatch
	cfg.dispatchBuffer = *dispatchBuffer
	cfg.strict = *strict
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.logFileDir = *logFileDir
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open the socket or listeners — only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.mode {
	case "", "benchmark":
	default:
		return fmt.Errorf("invalid mode: %s", c.mode)
	}
	if c.port <= 0 || c.port > 65535 {
		return fmt.Errorf("port must be in 1..65535 (got %d)", c.port)
	}
	if c.dispatchBuffer <= 0 {
		return fmt.Errorf("dispatch-buffer must be > 0 (got %d)", c.dispatchBuffer)
	}
	if _, err := parseFormatCodes(c.formatCodes); err != nil {
		return fmt.Errorf("invalid format-codes: %w", err)
	}
	if c.stockFilter != "" && len(c.stockFilter) > 6 {
		return fmt.Errorf("stock must be at most 6 characters (got %q)", c.stockFilter)
	}
	return nil
}

// parseFormatCodes parses cfg.formatCodes, the comma-joined internal form
// of the repeated -format-codes flag (each occurrence becomes one
// element, joined with "," before validate/this function run).
func parseFormatCodes(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	codes := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		codes = append(codes, n)
	}
	if len(codes) == 0 {
		return nil, errors.New("empty allow-list")
	}
	return codes, nil
}

// applyEnvOverrides maps TWSE_INGEST_* environment variables to config
// fields unless a corresponding flag was explicitly set (flag wins).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["port"]; !ok {
		if v, ok := get("TWSE_INGEST_PORT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.port = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TWSE_INGEST_PORT: %w", err)
			}
		}
	}
	if _, ok := set["multicast"]; !ok {
		if v, ok := get("TWSE_INGEST_MULTICAST"); ok {
			c.multicastGroup = v
		}
	}
	if _, ok := set["iface"]; !ok {
		if v, ok := get("TWSE_INGEST_IFACE"); ok {
			c.iface = v
		}
	}
	if _, ok := set["stock"]; !ok {
		if v, ok := get("TWSE_INGEST_STOCK"); ok {
			c.stockFilter = v
		}
	}
	if _, ok := set["mode"]; !ok {
		if v, ok := get("TWSE_INGEST_MODE"); ok {
			c.mode = v
		}
	}
	if _, ok := set["format-codes"]; !ok {
		if v, ok := get("TWSE_INGEST_FORMAT_CODES"); ok && v != "" {
			c.formatCodes = v
		}
	}
	if _, ok := set["async-dispatch"]; !ok {
		if v, ok := get("TWSE_INGEST_ASYNC_DISPATCH"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.asyncDispatch = true
			case "0", "false", "no", "off":
				c.asyncDispatch = false
			}
		}
	}
	if _, ok := set["dispatch-buffer"]; !ok {
		if v, ok := get("TWSE_INGEST_DISPATCH_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.dispatchBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TWSE_INGEST_DISPATCH_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["strict"]; !ok {
		if v, ok := get("TWSE_INGEST_STRICT"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.strict = true
			case "0", "false", "no", "off":
				c.strict = false
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("TWSE_INGEST_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("TWSE_INGEST_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["log-file"]; !ok {
		if v, ok := get("TWSE_INGEST_LOG_FILE"); ok {
			c.logFileDir = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("TWSE_INGEST_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("TWSE_INGEST_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TWSE_INGEST_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("TWSE_INGEST_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("TWSE_INGEST_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
