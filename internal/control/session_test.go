package control

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/twse-ingest/internal/decoder"
	"github.com/kstaniek/twse-ingest/internal/record"
	"github.com/kstaniek/twse-ingest/internal/socket"
)

// captureSink records every dispatched record; it satisfies dispatch.Sink.
type captureSink struct {
	mu      sync.Mutex
	got     []record.Record
	closed  bool
}

func (c *captureSink) Dispatch(r record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, r)
}

func (c *captureSink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *captureSink) snapshot() ([]record.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]record.Record, len(c.got))
	copy(out, c.got)
	return out, c.closed
}

func bcdByte(tens, ones int) byte { return byte(tens<<4 | ones) }

// buildMinimalFrame constructs one well-formed format-0x06 snapshot frame
// with stock code "AAAAAA" and no tuples (display_item = 0).
func buildMinimalFrame() []byte {
	header := []byte{
		0x00, 0x12, // message_length (arbitrary, non-strict mode ignores it)
		0x01,             // business_type
		bcdByte(0, 6),    // format_code = 6
		0x01,             // format_version
		0, 0, 0, 1,       // transmission_number BCD
	}
	body := make([]byte, 0, 19)
	body = append(body, []byte("AAAAAA")...) // stock_code
	body = append(body, 0, 0, 0, 0, 0, 0)     // match_time BCD
	body = append(body, 0x00)                // display_item: no deal/bids/asks
	body = append(body, 0x00)                // limit_up_down
	body = append(body, 0x00)                // status_note
	body = append(body, 0x00, 0x00, 0x00, 0x00) // cumulative_volume BCD

	payload := append(append([]byte{}, header...), body...)
	var sum byte
	for _, b := range payload {
		sum ^= b
	}

	frame := []byte{record.ESC}
	frame = append(frame, payload...)
	frame = append(frame, sum, record.CR, record.LF)
	return frame
}

func TestSession_StartDecodeStop(t *testing.T) {
	sink := &captureSink{}
	sess := New(Config{
		Socket:  socket.Config{Port: 0},
		Decoder: decoder.New(),
		Sink:    sink,
	})

	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.State() != StateRunning {
		t.Fatalf("state = %v, want Running", sess.State())
	}

	laddr := sess.src.LocalAddr()
	conn, err := net.DialUDP("udp4", nil, laddr)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer conn.Close()

	frame := buildMinimalFrame()
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		got, _ := sink.snapshot()
		if len(got) == 1 {
			if got[0].StockCode != "AAAAAA" {
				t.Fatalf("StockCode = %q, want AAAAAA", got[0].StockCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d records after timeout, want 1", len(got))
		}
		time.Sleep(time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sess.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sess.State() != StateIdle {
		t.Fatalf("state after Stop = %v, want Idle", sess.State())
	}
	if _, closed := sink.snapshot(); !closed {
		t.Fatal("expected Stop to close the sink")
	}
}

func TestSession_StartTwiceErrors(t *testing.T) {
	sess := New(Config{
		Socket:  socket.Config{Port: 0},
		Decoder: decoder.New(),
		Sink:    &captureSink{},
	})
	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop(context.Background())

	if err := sess.Start(ctx); err != ErrAlreadyRunning {
		t.Fatalf("second Start error = %v, want ErrAlreadyRunning", err)
	}
}

func TestSession_StopWhenIdleErrors(t *testing.T) {
	sess := New(Config{
		Socket:  socket.Config{Port: 0},
		Decoder: decoder.New(),
		Sink:    &captureSink{},
	})
	if err := sess.Stop(context.Background()); err != ErrNotRunning {
		t.Fatalf("Stop on idle session = %v, want ErrNotRunning", err)
	}
}

func TestSession_OnRejectCalledForBadFrame(t *testing.T) {
	var rejects int
	var mu sync.Mutex
	sess := New(Config{
		Socket:  socket.Config{Port: 0},
		Decoder: decoder.New(),
		Sink:    &captureSink{},
		OnReject: func(f []byte, err error) {
			mu.Lock()
			rejects++
			mu.Unlock()
		},
	})
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop(context.Background())

	laddr := sess.src.LocalAddr()
	conn, err := net.DialUDP("udp4", nil, laddr)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer conn.Close()

	bad := []byte{record.ESC, 0x01, 0x02, 0x03, record.CR, record.LF}
	if _, err := conn.Write(bad); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := rejects
		mu.Unlock()
		if n > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("OnReject was never called for a malformed frame")
		}
		time.Sleep(time.Millisecond)
	}
}
