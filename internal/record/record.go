// Package record defines the decoded representation of one TWSE market-data
// message, adapted from the CAN frame type the teacher stack moves between
// its codecs, hub, and server (internal/can in the prior revision of this
// gateway).
package record

// FormatCode identifies which body variant a frame carries. It holds the
// BCD-decoded decimal value of the wire format_code byte, not the byte
// itself: the wire byte 0x17 decodes (nibble-wise) to decimal 17, so
// FormatSnapshotExt17 is written here as the decimal literal 17, not the
// hex literal 0x17 (which would be 23). For these four recognized codes
// every nibble is a valid decimal digit, so the wire byte's hex spelling
// and its BCD-decoded decimal value share the same digits — just don't
// read that as "the constant equals the hex literal".
type FormatCode byte

const (
	// FormatSnapshot is the 0x06 market snapshot (4-byte cumulative volume).
	FormatSnapshot FormatCode = 6
	// FormatSnapshotExt17 is the 0x17 market snapshot, same body shape as 0x06.
	FormatSnapshotExt17 FormatCode = 17
	// FormatSnapshotExt23 is the 0x23 extended snapshot (6-byte cumulative volume).
	FormatSnapshotExt23 FormatCode = 23
	// FormatWarrantRef is the 0x14 warrant reference (fixed ASCII body).
	FormatWarrantRef FormatCode = 14
)

const (
	// ESC is the start-of-frame sentinel byte.
	ESC = 0x1B
	// CR and LF together form the two-byte end-of-frame trailer.
	CR = 0x0D
	LF = 0x0A
)

// Tuple is one (price, quantity) pair from the variable body of a snapshot
// record. Price is decoded from all 5 BCD bytes (see SPEC_FULL.md Open
// Question 2); callers that need fewer than its 10 digits of precision may
// downcast freely.
type Tuple struct {
	Price    uint64
	Quantity uint32
}

// WarrantRef is the fixed-layout ASCII body carried by format code 0x14.
type WarrantRef struct {
	BriefName      string
	UnderlyingCode string
	Expiration     string
	TypeD          string
	TypeE          string
	TypeF          string
}

// Record is one fully decoded, validated TWSE message. It is a plain value
// type: the decoder builds one on the stack, hands a read-only view to the
// consumer, and no reference to it survives the dispatch call that carries
// it (see SPEC_FULL.md §3 Lifecycle).
type Record struct {
	MessageLength       uint16
	BusinessType        uint8
	Format              FormatCode
	FormatVersion       uint8
	TransmissionNumber  uint32
	StockCode           string
	MatchTime           uint64 // HHMMSSuuuuuu packed as a single integer
	DisplayItem         uint8
	LimitUpLimitDown    uint8
	StatusNote          uint8
	CumulativeVolume    uint64
	Tuples              []Tuple
	Warrant             *WarrantRef // non-nil only for FormatWarrantRef
	Checksum            uint8
}

// DealPresent reports whether the display-item bitmap's deal bit (0x80) is set.
func (r Record) DealPresent() bool { return r.DisplayItem&0x80 != 0 }

// BidCount returns the number of bid tuples encoded in bits 6..4.
func (r Record) BidCount() int { return int(r.DisplayItem&0x70) >> 4 }

// AskCount returns the number of ask tuples encoded in bits 3..1.
func (r Record) AskCount() int { return int(r.DisplayItem&0x0E) >> 1 }

// ExpectedTupleCount is has_deal + bids + asks, per the display-item bitmap.
func (r Record) ExpectedTupleCount() int {
	n := r.BidCount() + r.AskCount()
	if r.DealPresent() {
		n++
	}
	return n
}
