// Package protocol implements the ISAKMP/IKEv1 wire format: the fixed
// header, payload framing, and the payload bodies defined by RFC 2408
// and RFC 2409. It has no knowledge of sessions, state, or timers --
// those live in the parent ike package.
package protocol

import (
	"encoding/hex"

	"github.com/msgboxio/log"
	"github.com/msgboxio/packets"
)

const (
	IKE_PORT      = 500
	IKE_NATT_PORT = 4500
)

const (
	ISAKMP_MAJOR_VERSION = 1
	ISAKMP_MINOR_VERSION = 0
)

// NonEspMarker prefixes NAT-T UDP/4500 frames; it must be stripped
// before the fixed header is parsed.
var NonEspMarker = [4]byte{0, 0, 0, 0}

type Spi []byte

func (s Spi) String() string { return hex.EncodeToString(s) }

type IkeExchangeType uint8

const (
	EXCHANGE_NONE  IkeExchangeType = 0
	EXCHANGE_BASE  IkeExchangeType = 1
	EXCHANGE_IDPROT IkeExchangeType = 2 // Main Mode
	EXCHANGE_AUTH_ONLY IkeExchangeType = 3
	EXCHANGE_AGGR  IkeExchangeType = 4 // Aggressive Mode
	EXCHANGE_INFO  IkeExchangeType = 5 // Informational
	EXCHANGE_TRANSACTION IkeExchangeType = 6 // ISAKMP Mode-Config / XAUTH
	EXCHANGE_QUICK IkeExchangeType = 32 // Quick Mode
	EXCHANGE_NEW_GROUP IkeExchangeType = 33
)

type IkeFlags uint8

const (
	FLAG_ENCRYPTION IkeFlags = 1 << 0
	FLAG_COMMIT     IkeFlags = 1 << 1
	FLAG_AUTH_ONLY  IkeFlags = 1 << 2
	// FLAG_RESERVED_BOGUS is used only by test harnesses to exercise the
	// reserved-bit validation path; real peers never set it.
	FLAG_RESERVED_BOGUS IkeFlags = 1 << 5
)

func (f IkeFlags) IsEncrypted() bool { return f&FLAG_ENCRYPTION != 0 }
func (f IkeFlags) IsCommit() bool    { return f&FLAG_COMMIT != 0 }
func (f IkeFlags) IsAuthOnly() bool  { return f&FLAG_AUTH_ONLY != 0 }

/*
    0                   1                   2                   3
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |                          Initiator                           |
   |                            Cookie                            |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |                          Responder                           |
   |                            Cookie                            |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |  Next Payload | MjVer | MnVer | Exchange Type |     Flags     |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |                          Message ID                          |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |                            Length                            |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
const IKE_HEADER_LEN = 28

type IkeHeader struct {
	IcookieSpi, RcookieSpi     Spi // 8 bytes each, "SpiI"/"SpiR" in RFC wording
	NextPayload                PayloadType
	MajorVersion, MinorVersion uint8
	ExchangeType               IkeExchangeType
	Flags                      IkeFlags
	MsgId                      uint32
	MsgLength                  uint32
}

func DecodeIkeHeader(b []byte) (h *IkeHeader, err error) {
	if len(b) < IKE_HEADER_LEN {
		log.V(1).Infof("packet too short for header: %d", len(b))
		return nil, ErrF(INVALID_COOKIE, "short header")
	}
	h = &IkeHeader{}
	h.IcookieSpi = append(Spi{}, b[0:8]...)
	h.RcookieSpi = append(Spi{}, b[8:16]...)
	pt, _ := packets.ReadB8(b, 16)
	h.NextPayload = PayloadType(pt)
	ver, _ := packets.ReadB8(b, 17)
	h.MajorVersion = ver >> 4
	h.MinorVersion = ver & 0x0f
	et, _ := packets.ReadB8(b, 18)
	h.ExchangeType = IkeExchangeType(et)
	flags, _ := packets.ReadB8(b, 19)
	h.Flags = IkeFlags(flags)
	h.MsgId, _ = packets.ReadB32(b, 20)
	h.MsgLength, _ = packets.ReadB32(b, 24)
	if h.MsgLength < IKE_HEADER_LEN {
		return nil, ErrF(PAYLOAD_MALFORMED, "length %d shorter than header", h.MsgLength)
	}
	return h, nil
}

func (h *IkeHeader) Encode() []byte {
	b := make([]byte, IKE_HEADER_LEN)
	copy(b[0:8], h.IcookieSpi)
	copy(b[8:16], h.RcookieSpi)
	packets.WriteB8(b, 16, uint8(h.NextPayload))
	packets.WriteB8(b, 17, h.MajorVersion<<4|h.MinorVersion)
	packets.WriteB8(b, 18, uint8(h.ExchangeType))
	packets.WriteB8(b, 19, uint8(h.Flags))
	packets.WriteB32(b, 20, h.MsgId)
	packets.WriteB32(b, 24, h.MsgLength)
	return b
}

// IcookieOnly reports whether rcookie is still unset (the responder has
// not yet picked one), the condition the demultiplexer uses to find the
// initial-message lookup bucket.
func (h *IkeHeader) IcookieOnly() bool {
	for _, c := range h.RcookieSpi {
		if c != 0 {
			return false
		}
	}
	return true
}
