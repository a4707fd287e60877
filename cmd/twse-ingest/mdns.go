package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// mdnsServiceType advertises the gateway's Prometheus endpoint, not a data
// port — there is no TCP service to discover here, only the metrics HTTP
// server.
const mdnsServiceType = "_twse-ingest._tcp"

// startMDNS registers the metrics endpoint via mDNS and returns a cleanup
// function. Safe to call even if disabled (no-op).
func startMDNS(ctx context.Context, cfg *appConfig, metricsPort int) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	instance := cfg.mdnsName
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("twse-ingest-%s", host)
	}
	meta := []string{
		"version=" + version,
		"commit=" + commit,
	}
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", metricsPort, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}
