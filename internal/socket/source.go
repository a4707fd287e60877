// Package socket implements the Socket Source component: a UDP datagram
// endpoint, optionally joined to an IP-multicast group on a named local
// interface (SPEC_FULL.md §4.1). It is the Go-native analogue of the
// teacher stack's serial.Port / socketcan.Device abstractions — a small
// Open/ReadDatagram/Close surface wrapping the OS resource. Source is a
// concrete type, not an interface: internal/control holds a *Source
// directly, and its tests bind a real UDP socket.
package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/net/ipv4"

	"github.com/kstaniek/twse-ingest/internal/logging"
)

// Config configures the Socket Source.
type Config struct {
	Port int
	// MulticastGroup, if non-empty, is the IPv4 multicast group address to join.
	MulticastGroup string
	// InterfaceAddr, if non-empty, is the local IPv4 address of the
	// interface to join the group on and to use for outbound multicast.
	InterfaceAddr string
}

// Source owns one UDP socket and, when configured, its multicast group
// membership.
type Source struct {
	cfg    Config
	logger *slog.Logger

	conn  *net.UDPConn
	pc    *ipv4.PacketConn // non-nil only when multicast is configured
	iface *net.Interface
	group *net.UDPAddr
}

// Open creates and binds the datagram endpoint, joining the multicast
// group when configured. Any failure here is fatal to the session per
// SPEC_FULL.md §4.1 — the caller must not Start the control plane on error.
func Open(cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = logging.L()
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("socket: listen: %w", err)
	}
	udpConn, ok := pconn.(*net.UDPConn)
	if !ok {
		_ = pconn.Close()
		return nil, fmt.Errorf("socket: unexpected packet conn type %T", pconn)
	}

	s := &Source{cfg: cfg, logger: logger, conn: udpConn}

	if cfg.MulticastGroup != "" {
		ifi, err := resolveInterface(cfg.InterfaceAddr)
		if err != nil {
			_ = udpConn.Close()
			return nil, fmt.Errorf("socket: resolve interface %q: %w", cfg.InterfaceAddr, err)
		}
		group := net.ParseIP(cfg.MulticastGroup)
		if group == nil {
			_ = udpConn.Close()
			return nil, fmt.Errorf("socket: invalid multicast group %q", cfg.MulticastGroup)
		}
		groupAddr := &net.UDPAddr{IP: group}

		logger.Info("multicast_join_attempt", "group", cfg.MulticastGroup, "interface", cfg.InterfaceAddr)
		pc := ipv4.NewPacketConn(udpConn)
		if err := pc.JoinGroup(ifi, groupAddr); err != nil {
			_ = udpConn.Close()
			return nil, fmt.Errorf("socket: join multicast group %s: %w", cfg.MulticastGroup, err)
		}
		if err := pc.SetMulticastInterface(ifi); err != nil {
			_ = udpConn.Close()
			return nil, fmt.Errorf("socket: set multicast interface: %w", err)
		}
		s.pc = pc
		s.iface = ifi
		s.group = groupAddr
		logger.Info("multicast_joined", "group", cfg.MulticastGroup, "interface", cfg.InterfaceAddr)
	}

	logger.Info("socket_listen", "port", cfg.Port, "multicast", cfg.MulticastGroup != "")
	return s, nil
}

// resolveInterface finds the *net.Interface owning addr. An empty addr
// lets the kernel pick the default multicast-capable interface.
func resolveInterface(addr string) (*net.Interface, error) {
	if addr == "" {
		return nil, nil
	}
	want := net.ParseIP(addr)
	if want == nil {
		return nil, fmt.Errorf("not an IP address: %q", addr)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if ok && ipNet.IP.Equal(want) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no local interface has address %s", addr)
}

// LocalAddr returns the socket's bound local address.
func (s *Source) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// ReadDatagram reads one datagram into buf, returning its actual length.
// It blocks until a datagram arrives, Close unblocks it with
// net.ErrClosed, or a fatal socket error occurs.
func (s *Source) ReadDatagram(buf []byte) (int, error) {
	return s.conn.Read(buf)
}

// Close shuts down the socket, unblocking any in-flight ReadDatagram.
// Idempotent-safe to call once; callers (internal/control) guard repeat
// calls with their own running flag.
func (s *Source) Close() error {
	if s.pc != nil && s.iface != nil && s.group != nil {
		_ = s.pc.LeaveGroup(s.iface, s.group)
	}
	return s.conn.Close()
}
