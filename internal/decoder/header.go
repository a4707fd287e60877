package decoder

import (
	"fmt"

	"github.com/kstaniek/twse-ingest/internal/bcd"
	"github.com/kstaniek/twse-ingest/internal/record"
)

// headerLength is the number of bytes after ESC that make up the fixed
// header: message_length(2) + business_type(1) + format_code(1) +
// format_version(1) + transmission_number(4).
const headerLength = 9

type header struct {
	messageLength      uint16
	businessType       uint8
	format             record.FormatCode
	formatVersion      uint8
	transmissionNumber uint32
}

// parseHeader reads the fixed header starting at frame[1] (the byte after
// ESC). frame[0] is assumed already verified as ESC by the caller.
func parseHeader(frame []byte) (header, error) {
	if len(frame) < 1+headerLength {
		return header{}, ErrShortHeader
	}
	var h header
	h.messageLength = uint16(bcd.Decode(frame[1:3]))
	h.businessType = uint8(bcd.Decode(frame[3:4]))
	h.format = record.FormatCode(bcd.Decode(frame[4:5]))
	h.formatVersion = uint8(bcd.Decode(frame[5:6]))
	h.transmissionNumber = uint32(bcd.Decode(frame[6:10]))
	return h, nil
}

// parseHeaderStrict additionally rejects any header field containing an
// out-of-range BCD nibble.
func parseHeaderStrict(frame []byte) (header, error) {
	if len(frame) < 1+headerLength {
		return header{}, ErrShortHeader
	}
	var h header
	ml, err := bcd.DecodeStrict(frame[1:3])
	if err != nil {
		return header{}, fmt.Errorf("message_length: %w: %v", ErrBadBCD, err)
	}
	bt, err := bcd.DecodeStrict(frame[3:4])
	if err != nil {
		return header{}, fmt.Errorf("business_type: %w: %v", ErrBadBCD, err)
	}
	fc, err := bcd.DecodeStrict(frame[4:5])
	if err != nil {
		return header{}, fmt.Errorf("format_code: %w: %v", ErrBadBCD, err)
	}
	fv, err := bcd.DecodeStrict(frame[5:6])
	if err != nil {
		return header{}, fmt.Errorf("format_version: %w: %v", ErrBadBCD, err)
	}
	tn, err := bcd.DecodeStrict(frame[6:10])
	if err != nil {
		return header{}, fmt.Errorf("transmission_number: %w: %v", ErrBadBCD, err)
	}
	h.messageLength = uint16(ml)
	h.businessType = uint8(bt)
	h.format = record.FormatCode(fc)
	h.formatVersion = uint8(fv)
	h.transmissionNumber = uint32(tn)
	return h, nil
}
