package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		port:            10000,
		logFormat:       "text",
		logLevel:        "info",
		formatCodes:     "6",
		dispatchBuffer:  1024,
		logMetricsEvery: 0,
		mdnsEnable:      false,
	}

	os.Setenv("TWSE_INGEST_PORT", "10001")
	os.Setenv("TWSE_INGEST_MDNS_ENABLE", "true")
	os.Setenv("TWSE_INGEST_STRICT", "true")
	os.Setenv("TWSE_INGEST_LOG_METRICS_INTERVAL", "5s")
	t.Cleanup(func() {
		os.Unsetenv("TWSE_INGEST_PORT")
		os.Unsetenv("TWSE_INGEST_MDNS_ENABLE")
		os.Unsetenv("TWSE_INGEST_STRICT")
		os.Unsetenv("TWSE_INGEST_LOG_METRICS_INTERVAL")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.port != 10001 {
		t.Fatalf("expected port override, got %d", base.port)
	}
	if !base.mdnsEnable {
		t.Fatal("expected mdnsEnable true")
	}
	if !base.strict {
		t.Fatal("expected strict true")
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery 5s got %v", base.logMetricsEvery)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{port: 10000}
	os.Setenv("TWSE_INGEST_PORT", "10001")
	t.Cleanup(func() { os.Unsetenv("TWSE_INGEST_PORT") })
	if err := applyEnvOverrides(base, map[string]struct{}{"port": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.port != 10000 {
		t.Fatalf("expected port unchanged 10000 got %d", base.port)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{dispatchBuffer: 1024}
	os.Setenv("TWSE_INGEST_DISPATCH_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("TWSE_INGEST_DISPATCH_BUFFER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatal("expected error for bad integer")
	}
}
