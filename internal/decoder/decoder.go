// Package decoder implements the TWSE wire-format decoder: ESC prefix,
// packed-BCD header, per-format-code body variant, XOR checksum, and CRLF
// trailer (SPEC_FULL.md §4.3). One function per body variant shares the
// common header parser, per the teacher stack's own "one function per
// variant" convention for its CAN codec dispatch.
package decoder

import (
	"fmt"
	"strings"

	"github.com/kstaniek/twse-ingest/internal/bcd"
	"github.com/kstaniek/twse-ingest/internal/record"
)

const trailerAndChecksumLen = 3 // checksum(1) + CRLF(2)

// Decoder is stateless and safe for concurrent use once configured; its
// only state is immutable after New.
type Decoder struct {
	allow  map[record.FormatCode]struct{}
	strict bool
}

// DefaultAllowList is the allow-list used when none is configured.
var DefaultAllowList = []record.FormatCode{record.FormatSnapshot}

// Option configures a Decoder.
type Option func(*Decoder)

// WithAllowList overrides the default {0x06} format-code allow-list.
func WithAllowList(codes []record.FormatCode) Option {
	return func(d *Decoder) {
		d.allow = make(map[record.FormatCode]struct{}, len(codes))
		for _, c := range codes {
			d.allow[c] = struct{}{}
		}
	}
}

// WithStrict enables strict mode: message_length cross-checking and BCD
// nibble validation (SPEC_FULL.md §4.3).
func WithStrict(strict bool) Option {
	return func(d *Decoder) { d.strict = strict }
}

// New builds a Decoder. With no options it uses DefaultAllowList and
// permissive (non-strict) parsing.
func New(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, o := range opts {
		o(d)
	}
	if d.allow == nil {
		WithAllowList(DefaultAllowList)(d)
	}
	return d
}

// Decode parses one candidate frame (as produced by internal/framer) into a
// Record, or returns a sentinel error from errors.go identifying which
// phase rejected it.
func (d *Decoder) Decode(frame []byte) (record.Record, error) {
	if len(frame) < 1 || frame[0] != record.ESC {
		return record.Record{}, ErrBadPrefix
	}

	var h header
	var err error
	if d.strict {
		h, err = parseHeaderStrict(frame)
	} else {
		h, err = parseHeader(frame)
	}
	if err != nil {
		return record.Record{}, err
	}

	if _, ok := d.allow[h.format]; !ok {
		return record.Record{}, ErrUnsupportedFormat
	}

	bodyStart := 1 + headerLength
	l := len(frame)
	if l < bodyStart+trailerAndChecksumLen {
		return record.Record{}, ErrShortBody
	}
	checksumPos := l - 3
	body := frame[bodyStart:checksumPos]

	var r record.Record
	switch h.format {
	case record.FormatSnapshot, record.FormatSnapshotExt17:
		r, err = parseSnapshotBody(body, cumVolLenStandard)
	case record.FormatSnapshotExt23:
		r, err = parseSnapshotBody(body, cumVolLenExt23)
	case record.FormatWarrantRef:
		r, err = parseWarrantBody(body)
	default:
		return record.Record{}, ErrUnsupportedFormat
	}
	if err != nil {
		return record.Record{}, err
	}

	if d.strict && h.format != record.FormatWarrantRef {
		// Every snapshot body byte after stock_code is packed BCD except the
		// three bitmap bytes (display_item, limit_up_limit_down, status_note).
		bitmaps := stockCodeLen + matchTimeLen
		for i := stockCodeLen; i < len(body); i++ {
			if i >= bitmaps && i < bitmaps+3 {
				continue
			}
			if _, err := bcd.DecodeStrict(body[i : i+1]); err != nil {
				return record.Record{}, fmt.Errorf("body: %w: %v", ErrBadBCD, err)
			}
		}
	}

	r.MessageLength = h.messageLength
	r.BusinessType = h.businessType
	r.Format = h.format
	r.FormatVersion = h.formatVersion
	r.TransmissionNumber = h.transmissionNumber

	var sum uint8
	for _, b := range frame[1:checksumPos] {
		sum ^= b
	}
	r.Checksum = frame[checksumPos]
	if sum != r.Checksum {
		return record.Record{}, ErrBadChecksum
	}

	if frame[l-2] != record.CR || frame[l-1] != record.LF {
		return record.Record{}, ErrBadTrailer
	}

	if d.strict && int(r.MessageLength) != l {
		return record.Record{}, ErrBadLength
	}

	return r, nil
}

// stockCodeOffset is where the stock_code field starts in every snapshot
// body variant's fixed layout: right after ESC(1) + header(headerLength).
const stockCodeOffset = 1 + headerLength
const stockCodeFieldLen = 6

// PeekStockCode best-effort extracts the 6-byte stock code from a
// candidate frame that was rejected mid-parse, for callers that want to
// apply a stock-code filter to rejection logging without re-running the
// full decode. It returns false if frame is too short to contain the
// field at all; it does not validate the frame otherwise.
func PeekStockCode(frame []byte) (string, bool) {
	end := stockCodeOffset + stockCodeFieldLen
	if len(frame) < end {
		return "", false
	}
	return strings.TrimRight(string(frame[stockCodeOffset:end]), " "), true
}
