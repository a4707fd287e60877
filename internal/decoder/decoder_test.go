package decoder

import (
	"errors"
	"testing"

	"github.com/kstaniek/twse-ingest/internal/record"
)

// bcdEncode packs v as big-endian packed BCD into n bytes (2 digits/byte).
func bcdEncode(v uint64, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		lo := v % 10
		v /= 10
		hi := v % 10
		v /= 10
		out[i] = byte(hi<<4 | lo)
	}
	return out
}

// buildSnapshotFrame constructs a valid, checksum-correct 0x06/0x17/0x23
// market-snapshot frame for use as test fixtures. It is the test-only
// mirror of the "encoder... outside the core" mentioned in SPEC_FULL.md §8.
func buildSnapshotFrame(t *testing.T, format byte, stockCode string, displayItem byte, tuples []record.Tuple, volLen int) []byte {
	t.Helper()
	var body []byte
	body = append(body, []byte(stockCode)...)
	for len(body) < stockCodeLen {
		body = append(body, ' ')
	}
	body = append(body, bcdEncode(91530123456, matchTimeLen)...) // arbitrary HHMMSSuuuuuu
	body = append(body, displayItem, 0x00, 0x00)
	body = append(body, bcdEncode(12345, volLen)...)
	for _, tp := range tuples {
		body = append(body, bcdEncode(tp.Price, priceLen)...)
		body = append(body, bcdEncode(uint64(tp.Quantity), quantityLen)...)
	}

	header := []byte{0x00, 0x01, 0x01, format, 0x01, 0x00, 0x00, 0x00, 0x01}
	payload := append(append([]byte{}, header...), body...)
	messageLen := 1 + len(payload) + 1 + 2 // esc + header+body + checksum + crlf
	header[0] = bcdEncode(uint64(messageLen), 2)[0]
	header[1] = bcdEncode(uint64(messageLen), 2)[1]
	payload = append(append([]byte{}, header...), body...)

	var sum uint8
	for _, b := range payload {
		sum ^= b
	}

	frame := make([]byte, 0, 1+len(payload)+3)
	frame = append(frame, record.ESC)
	frame = append(frame, payload...)
	frame = append(frame, sum, record.CR, record.LF)
	return frame
}

func TestDecode_ScenarioA_MinimalSnapshotDealOnly(t *testing.T) {
	tuples := []record.Tuple{{Price: 6550, Quantity: 1000}}
	frame := buildSnapshotFrame(t, 0x06, "2330", 0x80, tuples, cumVolLenStandard)

	d := New()
	r, err := d.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(r.Tuples) != 1 {
		t.Fatalf("got %d tuples, want 1", len(r.Tuples))
	}
	if r.StockCode != "2330" {
		t.Fatalf("StockCode = %q, want 2330", r.StockCode)
	}
	if r.Tuples[0].Price != 6550 || r.Tuples[0].Quantity != 1000 {
		t.Fatalf("tuple = %+v, want price=6550 qty=1000", r.Tuples[0])
	}
}

func TestDecode_FullBook_PermissiveOverflowCounts(t *testing.T) {
	// display_item = 0xFE: deal=1, bids=7, asks=7 (bits 6..4=111, 3..1=111).
	// The reference decoder is permissive about counts > 5 (Open Question 3).
	n := 1 + 7 + 7
	tuples := make([]record.Tuple, n)
	for i := range tuples {
		tuples[i] = record.Tuple{Price: uint64(1000 + i), Quantity: uint32(10 + i)}
	}
	frame := buildSnapshotFrame(t, 0x06, "1101", 0xFE, tuples, cumVolLenStandard)

	d := New()
	r, err := d.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(r.Tuples) != n {
		t.Fatalf("got %d tuples, want %d", len(r.Tuples), n)
	}
}

func TestDecode_TruncatedTrailer(t *testing.T) {
	frame := buildSnapshotFrame(t, 0x06, "2330", 0x80, []record.Tuple{{Price: 1, Quantity: 1}}, cumVolLenStandard)
	truncated := frame[:len(frame)-1]

	d := New()
	_, err := d.Decode(truncated)
	if !errors.Is(err, ErrBadTrailer) && !errors.Is(err, ErrShortBody) {
		t.Fatalf("Decode(truncated) error = %v, want ErrBadTrailer or ErrShortBody", err)
	}
}

func TestDecode_FlippedChecksumBit(t *testing.T) {
	frame := buildSnapshotFrame(t, 0x06, "2330", 0x80, []record.Tuple{{Price: 1, Quantity: 1}}, cumVolLenStandard)
	checksumPos := len(frame) - 3
	frame[checksumPos] ^= 0x01

	d := New()
	_, err := d.Decode(frame)
	if !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("Decode error = %v, want ErrBadChecksum", err)
	}
}

func TestDecode_UnsupportedFormatWithDefaultAllowList(t *testing.T) {
	frame := buildSnapshotFrame(t, 0x17, "2330", 0x80, []record.Tuple{{Price: 1, Quantity: 1}}, cumVolLenStandard)

	d := New() // default allow-list is {0x06}
	_, err := d.Decode(frame)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Decode error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecode_BadPrefix(t *testing.T) {
	frame := buildSnapshotFrame(t, 0x06, "2330", 0x80, []record.Tuple{{Price: 1, Quantity: 1}}, cumVolLenStandard)
	frame[0] = 0x00

	d := New()
	_, err := d.Decode(frame)
	if !errors.Is(err, ErrBadPrefix) {
		t.Fatalf("Decode error = %v, want ErrBadPrefix", err)
	}
}

func TestDecode_Extended23_SixByteVolume(t *testing.T) {
	frame := buildSnapshotFrame(t, 0x23, "2454", 0x80, []record.Tuple{{Price: 400, Quantity: 5}}, cumVolLenExt23)

	d := New(WithAllowList([]record.FormatCode{record.FormatSnapshotExt23}))
	r, err := d.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.CumulativeVolume != 12345 {
		t.Fatalf("CumulativeVolume = %d, want 12345", r.CumulativeVolume)
	}
}

func TestDecode_EqualArrayLengths(t *testing.T) {
	tuples := []record.Tuple{{Price: 1, Quantity: 1}, {Price: 2, Quantity: 2}, {Price: 3, Quantity: 3}}
	frame := buildSnapshotFrame(t, 0x06, "2330", 0x80|(2<<4), tuples, cumVolLenStandard) // deal + 2 bids, 0 asks

	d := New()
	r, err := d.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	prices := 0
	quantities := 0
	for range r.Tuples {
		prices++
		quantities++
	}
	if prices != quantities {
		t.Fatalf("prices=%d quantities=%d, want equal", prices, quantities)
	}
}

func TestDecode_StrictMode_LengthMismatch(t *testing.T) {
	frame := buildSnapshotFrame(t, 0x06, "2330", 0x80, []record.Tuple{{Price: 1, Quantity: 1}}, cumVolLenStandard)
	// Corrupt message_length, then recompute the checksum: the strict
	// length check runs after the checksum/trailer checks, so the frame
	// must still pass those for BadLength to be the reported reason.
	frame[1] = 0x99 // garbles message_length's high byte
	// Recompute checksum so only BadLength fires, not BadChecksum.
	checksumPos := len(frame) - 3
	var sum uint8
	for _, b := range frame[1:checksumPos] {
		sum ^= b
	}
	frame[checksumPos] = sum

	d := New(WithStrict(true))
	_, err := d.Decode(frame)
	if !errors.Is(err, ErrBadLength) {
		t.Fatalf("Decode error = %v, want ErrBadLength", err)
	}
}

func TestDecode_WarrantReference(t *testing.T) {
	body := make([]byte, 0, warrantBodyLen)
	pad := func(s string, n int) []byte {
		b := []byte(s)
		for len(b) < n {
			b = append(b, ' ')
		}
		return b[:n]
	}
	body = append(body, pad("TEST WARRANT A", warrantBriefNameLen)...)
	body = append(body, ' ', ' ')
	body = append(body, pad("2330", warrantUnderlyingLen)...)
	body = append(body, pad("20261231", warrantExpirationLen)...)
	body = append(body, pad("D", warrantTypeLen)...)
	body = append(body, pad("E", warrantTypeLen)...)
	body = append(body, pad("F", warrantTypeLen)...)
	body = append(body, ' ', ' ')

	header := []byte{0x00, 0x00, 0x01, 0x14, 0x01, 0x00, 0x00, 0x00, 0x01}
	payload := append(append([]byte{}, header...), body...)
	messageLen := 1 + len(payload) + 1 + 2
	mlb := bcdEncode(uint64(messageLen), 2)
	payload[0], payload[1] = mlb[0], mlb[1]

	var sum uint8
	for _, b := range payload {
		sum ^= b
	}
	frame := append([]byte{record.ESC}, payload...)
	frame = append(frame, sum, record.CR, record.LF)

	d := New(WithAllowList([]record.FormatCode{record.FormatWarrantRef}))
	r, err := d.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Warrant == nil {
		t.Fatal("Warrant is nil")
	}
	if r.Warrant.UnderlyingCode != "2330" {
		t.Fatalf("UnderlyingCode = %q, want 2330", r.Warrant.UnderlyingCode)
	}
}
