package decoder

import "errors"

// Sentinel errors for the decoder's rejection taxonomy (SPEC_FULL.md §7).
// All are local to a single frame and non-fatal to the session; callers
// classify them with errors.Is.
var (
	ErrBadPrefix         = errors.New("decoder: bad prefix")
	ErrShortHeader       = errors.New("decoder: short header")
	ErrUnsupportedFormat = errors.New("decoder: unsupported format code")
	ErrShortBody         = errors.New("decoder: short body")
	ErrBadChecksum       = errors.New("decoder: bad checksum")
	ErrBadTrailer        = errors.New("decoder: bad trailer")
	ErrBadLength         = errors.New("decoder: message_length mismatch")
	ErrBadBCD            = errors.New("decoder: invalid bcd nibble")
)

// Reason maps a rejection error to a short, stable label for metrics and
// logging (internal/metrics.RecordsRejected's "reason" label).
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrBadPrefix):
		return "bad_prefix"
	case errors.Is(err, ErrShortHeader):
		return "short_header"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrShortBody):
		return "short_body"
	case errors.Is(err, ErrBadChecksum):
		return "bad_checksum"
	case errors.Is(err, ErrBadTrailer):
		return "bad_trailer"
	case errors.Is(err, ErrBadLength):
		return "bad_length"
	case errors.Is(err, ErrBadBCD):
		return "bad_bcd"
	default:
		return "unknown"
	}
}
