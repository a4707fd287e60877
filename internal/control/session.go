// Package control implements the ingestion session's Idle→Running→Stopping
// control plane: it owns the socket, drives the Socket Source → Framer →
// Decoder → Dispatch pipeline on a dedicated goroutine, and exposes
// Start/Stop, adapted from the teacher stack's internal/server.Server
// Serve/Shutdown pair (accept-loop replaced by a read-loop; no per-client
// fan-out, just one decode pipeline feeding one dispatch.Sink).
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/twse-ingest/internal/decoder"
	"github.com/kstaniek/twse-ingest/internal/dispatch"
	"github.com/kstaniek/twse-ingest/internal/framer"
	"github.com/kstaniek/twse-ingest/internal/logging"
	"github.com/kstaniek/twse-ingest/internal/metrics"
	"github.com/kstaniek/twse-ingest/internal/socket"
)

// State is one of the session's three lifecycle states.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const defaultReadBufferSize = 1500

// defaultReceiveErrorBudget is the error budget from SPEC_FULL.md §4.1: a
// receive error that is neither "closed network connection" (expected
// shutdown) nor a context cancellation is logged and retried in isolation,
// but more than this many of them in a row with no intervening successful
// read means the socket is wedged, not transiently flaky, and the session
// escalates to a fatal teardown instead of spinning forever.
const defaultReceiveErrorBudget = 8

// fatalStopTimeout bounds the asynchronous teardown triggered when the
// receive error budget is exceeded.
const fatalStopTimeout = 5 * time.Second

// Config wires the session's components. Decoder and Sink are required;
// Logger, ReadBufferSize and ReceiveErrorBudget default if zero.
type Config struct {
	Socket         socket.Config
	Decoder        *decoder.Decoder
	Sink           dispatch.Sink
	Logger         *slog.Logger
	ReadBufferSize int
	// ReceiveErrorBudget is the number of consecutive receive errors
	// tolerated before the session tears itself down as fatal. Defaults to
	// defaultReceiveErrorBudget when <= 0.
	ReceiveErrorBudget int
	// OnReject, if set, is called synchronously for every candidate frame
	// the decoder rejects. f aliases the read buffer and must not be
	// retained past the call.
	OnReject func(f []byte, err error)
}

// Session is one Idle→Running→Stopping→Idle lifecycle over a single UDP
// socket. It is not reusable across more than one Start/Stop cycle's
// underlying socket — each Start opens a fresh one.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex // serializes Start/Stop transitions
	state  atomic.Int32
	src    *socket.Source
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Session from cfg. Decoder and Sink must be non-nil.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logging.L()
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	if cfg.ReceiveErrorBudget <= 0 {
		cfg.ReceiveErrorBudget = defaultReceiveErrorBudget
	}
	return &Session{cfg: cfg, logger: cfg.Logger}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Start opens the socket and launches the read/decode/dispatch loop.
// Returns ErrAlreadyRunning if the session is not Idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRunning
	}

	src, err := socket.Open(s.cfg.Socket, s.logger)
	if err != nil {
		s.state.Store(int32(StateIdle))
		return fmt.Errorf("%w: %v", ErrOpenSocket, err)
	}
	if s.cfg.Socket.MulticastGroup != "" {
		metrics.IncMulticastJoin()
	}
	s.src = src

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.readLoop(runCtx)

	s.logger.Info("session_started", "port", s.cfg.Socket.Port, "multicast", s.cfg.Socket.MulticastGroup != "")
	return nil
}

func (s *Session) readLoop(ctx context.Context) {
	defer s.wg.Done()

	buf := make([]byte, s.cfg.ReadBufferSize)
	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := s.src.ReadDatagram(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncError(metrics.ErrSocketRead)
			consecutiveErrors++
			if consecutiveErrors > s.cfg.ReceiveErrorBudget {
				s.logger.Error("socket_read_error_budget_exceeded", "error", err, "consecutive_errors", consecutiveErrors)
				go s.failFatal(fmt.Errorf("%w: %v", ErrFatalReceiveErrors, err))
				return
			}
			s.logger.Warn("socket_read_error", "error", err, "consecutive_errors", consecutiveErrors)
			continue
		}
		consecutiveErrors = 0
		metrics.AddSocketDatagram(n)

		for _, f := range framer.Scan(buf[:n]) {
			rec, err := s.cfg.Decoder.Decode(f)
			if err != nil {
				reason := decoder.Reason(err)
				metrics.IncRejected(reason)
				if s.cfg.OnReject != nil {
					s.cfg.OnReject(f, err)
				}
				continue
			}
			metrics.IncDecoded()
			s.cfg.Sink.Dispatch(rec)
			metrics.IncDispatched()
		}
	}
}

// failFatal tears the session down after readLoop gives up on the receive
// error budget. It must run on its own goroutine, not synchronously from
// readLoop: Stop waits for readLoop's goroutine to exit via s.wg, so
// calling it from inside readLoop itself would deadlock.
func (s *Session) failFatal(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), fatalStopTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil && err != ErrNotRunning {
		s.logger.Error("session_fatal_stop_error", "cause", cause, "error", err)
		return
	}
	s.logger.Error("session_stopped_fatal", "cause", cause)
}

// Stop cancels the read loop, closes the socket, closes the dispatch sink,
// and waits for the read-loop goroutine to exit or ctx to expire.
// Returns ErrNotRunning if the session is not Running.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrNotRunning
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.src != nil {
		_ = s.src.Close()
	}
	if s.cfg.Sink != nil {
		s.cfg.Sink.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrShutdown, ctx.Err())
	case <-done:
	}

	s.logger.Info("session_stopped")
	s.state.Store(int32(StateIdle))
	return nil
}
