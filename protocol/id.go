package protocol

import "github.com/msgboxio/packets"

type IdType uint8

const (
	ID_IPV4_ADDR         IdType = 1
	ID_FQDN              IdType = 2
	ID_USER_FQDN         IdType = 3
	ID_IPV4_ADDR_SUBNET  IdType = 4
	ID_IPV6_ADDR         IdType = 5
	ID_IPV6_ADDR_SUBNET  IdType = 6
	ID_IPV4_ADDR_RANGE   IdType = 7
	ID_IPV6_ADDR_RANGE   IdType = 8
	ID_DER_ASN1_DN       IdType = 9
	ID_DER_ASN1_GN       IdType = 10
	ID_KEY_ID            IdType = 11
)

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Next Payload  |   RESERVED    |         Payload Length        |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |   ID Type     |                 RESERVED                      |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                   Identification Data                         ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

// IdPayload is the Phase 1 identification payload: a bare ID type plus
// identity data (no protocol/port fields -- those only appear in Phase 2
// identities, see Phase2IdPayload).
type IdPayload struct {
	*PayloadHeader
	IdType IdType
	Data   []byte
}

func (s *IdPayload) Type() PayloadType { return PayloadTypeID }

func (s *IdPayload) Encode() []byte {
	b := []byte{uint8(s.IdType), 0, 0, 0}
	return append(b, s.Data...)
}

func (s *IdPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(INVALID_ID_INFORMATION, "id payload shorter than 4 bytes")
	}
	idt, _ := packets.ReadB8(b, 0)
	s.IdType = IdType(idt)
	s.Data = append([]byte{}, b[4:]...)
	return nil
}

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Next Payload  |   RESERVED    |         Payload Length        |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |   ID Type     |  Protocol ID  |          Port                 |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                   Identification Data                         ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

// Phase2IdPayload is the Quick Mode ID payload (RFC 2407 4.6.2): it adds
// a protocol/port selector pair absent from Phase 1's IdPayload.
type Phase2IdPayload struct {
	*PayloadHeader
	IdType     IdType
	ProtocolId uint8
	Port       uint16
	Data       []byte
}

func (s *Phase2IdPayload) Type() PayloadType { return PayloadTypeID }

func (s *Phase2IdPayload) Encode() []byte {
	b := make([]byte, 4)
	packets.WriteB8(b, 0, uint8(s.IdType))
	packets.WriteB8(b, 1, s.ProtocolId)
	packets.WriteB16(b, 2, s.Port)
	return append(b, s.Data...)
}

func (s *Phase2IdPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(INVALID_ID_INFORMATION, "id payload shorter than 4 bytes")
	}
	idt, _ := packets.ReadB8(b, 0)
	s.IdType = IdType(idt)
	s.ProtocolId, _ = packets.ReadB8(b, 1)
	s.Port, _ = packets.ReadB16(b, 2)
	s.Data = append([]byte{}, b[4:]...)
	return nil
}
