package protocol

import (
	"github.com/msgboxio/packets"
)

type PayloadType uint8

const (
	PayloadTypeNone PayloadType = 0
	PayloadTypeSA   PayloadType = 1
	PayloadTypeP    PayloadType = 2 // Proposal (only nested inside SA on the wire; decoded inline here)
	PayloadTypeT    PayloadType = 3 // Transform (nested inside Proposal)
	PayloadTypeKE   PayloadType = 4
	PayloadTypeID   PayloadType = 5
	PayloadTypeCERT PayloadType = 6
	PayloadTypeCR   PayloadType = 7
	PayloadTypeHASH PayloadType = 8
	PayloadTypeSIG  PayloadType = 9
	PayloadTypeNONCE PayloadType = 10
	PayloadTypeN    PayloadType = 11
	PayloadTypeD    PayloadType = 12
	PayloadTypeVID  PayloadType = 13
	PayloadTypeATTR PayloadType = 14 // Mode-Config attributes, carries XAUTH too

	// NAT-T: RFC-assigned numbers and the legacy draft numbers seen from
	// older peers, which the decoder remaps.
	PayloadTypeNATD_RFC    PayloadType = 20
	PayloadTypeNATOA_RFC   PayloadType = 21
	PayloadTypeNATD_DRAFT  PayloadType = 130
	PayloadTypeNATOA_DRAFT PayloadType = 131

	// SAK: legacy "SA KEK" payload from an abandoned GDOI draft, silently
	// skipped by the decoder.
	PayloadTypeSAK PayloadType = 15

	PayloadTypeFRAG PayloadType = 132 // IKE_FRAGMENTATION, vendor-private number
)

// PayloadSet is a fixed-size bitset over payload-type numbers held in a
// single uint64 word, avoiding a variant-enum representation that would
// complicate the ordering checks. Only numbers below 64 have a bit: for
// PayloadTypeFRAG (132) and any other number of 64 or more, MaskOf and
// Add add nothing and Has reports false.
type PayloadSet uint64

func MaskOf(types ...PayloadType) PayloadSet {
	var m PayloadSet
	for _, t := range types {
		m |= PayloadSet(1) << uint(t)
	}
	return m
}

func (m PayloadSet) Has(t PayloadType) bool { return m&(PayloadSet(1)<<uint(t)) != 0 }
func (m PayloadSet) Add(t PayloadType) PayloadSet {
	return m | (PayloadSet(1) << uint(t))
}
func (m PayloadSet) Remove(t PayloadType) PayloadSet {
	return m &^ (PayloadSet(1) << uint(t))
}
func (m PayloadSet) Empty() bool { return m == 0 }

// alwaysAcceptable payload types are allowed regardless of a
// transition's req/opt masks.
var alwaysAcceptable = MaskOf(PayloadTypeVID, PayloadTypeN, PayloadTypeD, PayloadTypeCR, PayloadTypeCERT)

func IsAlwaysAcceptable(t PayloadType) bool { return alwaysAcceptable.Has(t) }

// CanonicalPayloadType remaps the legacy NAT-T draft payload numbers a
// peer may still send to their RFC 3947 equivalents, so every decoder
// and masking rule downstream only ever sees the RFC numbers. SAK, a
// payload from an abandoned GDOI draft some old stacks still emit, is
// reported as PayloadTypeNone so the decoder skips it outright rather
// than failing to decode an unknown body.
func CanonicalPayloadType(t PayloadType) PayloadType {
	switch t {
	case PayloadTypeNATD_DRAFT:
		return PayloadTypeNATD_RFC
	case PayloadTypeNATOA_DRAFT:
		return PayloadTypeNATOA_RFC
	case PayloadTypeSAK:
		return PayloadTypeNone
	default:
		return t
	}
}

/*
    0                   1                   2                   3
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Next Payload  |   RESERVED    |         Payload Length        |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
const PAYLOAD_HEADER_LENGTH = 4

type PayloadHeader struct {
	NextPayload   PayloadType
	Reserved      uint8
	PayloadLength uint16
}

func (h *PayloadHeader) NextPayloadType() PayloadType { return h.NextPayload }

func (h *PayloadHeader) Decode(b []byte) error {
	if len(b) < PAYLOAD_HEADER_LENGTH {
		return ErrF(PAYLOAD_MALFORMED, "payload header too short: %d", len(b))
	}
	pt, _ := packets.ReadB8(b, 0)
	h.NextPayload = PayloadType(pt)
	h.Reserved, _ = packets.ReadB8(b, 1)
	h.PayloadLength, _ = packets.ReadB16(b, 2)
	return nil
}

func EncodePayloadHeader(next PayloadType, bodyLen int) []byte {
	b := make([]byte, PAYLOAD_HEADER_LENGTH)
	packets.WriteB8(b, 0, uint8(next))
	packets.WriteB16(b, 2, uint16(bodyLen+PAYLOAD_HEADER_LENGTH))
	return b
}

// Payload is satisfied by every decoded payload body. Type is fixed per
// concrete type (it does not vary with the wire value, which instead
// lives on the enclosing PayloadHeader/chain position).
type Payload interface {
	Type() PayloadType
	Decode(b []byte) error
	Encode() []byte
}
