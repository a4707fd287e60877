package decoder

import (
	"strings"

	"github.com/kstaniek/twse-ingest/internal/bcd"
	"github.com/kstaniek/twse-ingest/internal/record"
)

const (
	stockCodeLen      = 6
	matchTimeLen      = 6
	tupleLen          = 9 // 5-byte price + 4-byte quantity
	priceLen          = 5
	quantityLen       = 4
	cumVolLenStandard = 4 // format 0x06, 0x17
	cumVolLenExt23    = 6 // format 0x23
)

// parseSnapshotBody parses the 0x06/0x17/0x23 market-snapshot body. body is
// the slice between the end of the header and the checksum byte (exclusive
// of both). volLen selects the cumulative_volume width.
func parseSnapshotBody(body []byte, volLen int) (record.Record, error) {
	fixedLen := stockCodeLen + matchTimeLen + 1 + 1 + 1 + volLen
	if len(body) < fixedLen {
		return record.Record{}, ErrShortBody
	}

	var r record.Record
	off := 0
	r.StockCode = strings.TrimRight(string(body[off:off+stockCodeLen]), " ")
	off += stockCodeLen
	r.MatchTime = bcd.Decode(body[off : off+matchTimeLen])
	off += matchTimeLen
	r.DisplayItem = body[off]
	off++
	r.LimitUpLimitDown = body[off]
	off++
	r.StatusNote = body[off]
	off++
	r.CumulativeVolume = bcd.Decode(body[off : off+volLen])
	off += volLen

	expected := r.ExpectedTupleCount()
	remaining := len(body) - off
	if remaining != expected*tupleLen {
		return record.Record{}, ErrShortBody
	}

	r.Tuples = make([]record.Tuple, expected)
	for i := 0; i < expected; i++ {
		price := bcd.Decode(body[off : off+priceLen])
		off += priceLen
		qty := bcd.Decode(body[off : off+quantityLen])
		off += quantityLen
		r.Tuples[i] = record.Tuple{Price: price, Quantity: uint32(qty)}
	}
	return r, nil
}

const (
	warrantBriefNameLen  = 16
	warrantSeparatorLen  = 2
	warrantUnderlyingLen = 16
	warrantExpirationLen = 8
	warrantTypeLen       = 2
	warrantReservedLen   = 2
	warrantBodyLen       = warrantBriefNameLen + warrantSeparatorLen + warrantUnderlyingLen +
		warrantExpirationLen + 3*warrantTypeLen + warrantReservedLen
)

// parseWarrantBody parses the fixed-layout ASCII body carried by format
// code 0x14.
func parseWarrantBody(body []byte) (record.Record, error) {
	if len(body) != warrantBodyLen {
		return record.Record{}, ErrShortBody
	}
	off := 0
	field := func(n int) string {
		s := strings.TrimRight(string(body[off:off+n]), " ")
		off += n
		return s
	}
	w := &record.WarrantRef{}
	w.BriefName = field(warrantBriefNameLen)
	off += warrantSeparatorLen // separator, not retained
	w.UnderlyingCode = field(warrantUnderlyingLen)
	w.Expiration = field(warrantExpirationLen)
	w.TypeD = field(warrantTypeLen)
	w.TypeE = field(warrantTypeLen)
	w.TypeF = field(warrantTypeLen)
	// reserved bytes intentionally discarded

	return record.Record{Warrant: w}, nil
}
