package protocol

import "github.com/msgboxio/packets"

type CfgMsgType uint8

const (
	ISAKMP_CFG_REQUEST CfgMsgType = 1
	ISAKMP_CFG_REPLY   CfgMsgType = 2
	ISAKMP_CFG_SET     CfgMsgType = 3
	ISAKMP_CFG_ACK     CfgMsgType = 4
)

// CfgAttributeType covers both Mode-Config (RFC-ish, draft-ietf-ipsec
// isakmp-mode-cfg) and XAUTH attributes; they share one attribute
// numbering space on the wire (XAUTH attributes start at 16520).
type CfgAttributeType uint16

const (
	INTERNAL_IP4_ADDRESS CfgAttributeType = 1
	INTERNAL_IP4_NETMASK CfgAttributeType = 2
	INTERNAL_IP4_DNS     CfgAttributeType = 3
	INTERNAL_IP4_NBNS    CfgAttributeType = 4
	INTERNAL_ADDRESS_EXPIRY CfgAttributeType = 5
	INTERNAL_IP4_DHCP    CfgAttributeType = 6
	APPLICATION_VERSION  CfgAttributeType = 7
	INTERNAL_IP6_ADDRESS CfgAttributeType = 8
	SUPPORTED_ATTRIBUTES CfgAttributeType = 14
	INTERNAL_IP4_SUBNET  CfgAttributeType = 13

	XAUTH_TYPE        CfgAttributeType = 16520
	XAUTH_USER_NAME   CfgAttributeType = 16521
	XAUTH_USER_PASSWORD CfgAttributeType = 16522
	XAUTH_PASSCODE    CfgAttributeType = 16523
	XAUTH_MESSAGE     CfgAttributeType = 16524
	XAUTH_CHALLENGE   CfgAttributeType = 16525
	XAUTH_DOMAIN      CfgAttributeType = 16526
	XAUTH_STATUS      CfgAttributeType = 16527
	XAUTH_NEXT_PIN    CfgAttributeType = 16528
	XAUTH_ANSWER      CfgAttributeType = 16529
)

// CfgAttribute reuses the same basic/TLV attribute encoding as Oakley/
// IPsec SA attributes (RFC 2408 3.15.1 uses an identical AF-bit
// structure for Mode-Config/XAUTH).
type CfgAttribute struct {
	Type uint16
	Value uint16
	Data []byte
}

func (a *CfgAttribute) IsBasic() bool { return a.Data == nil }

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |   Type        |     RESERVED                  | Identifier   |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                       Attributes                              ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type CfgPayload struct {
	*PayloadHeader
	MsgType    CfgMsgType
	Identifier uint16
	Attributes []*CfgAttribute
}

func (s *CfgPayload) Type() PayloadType { return PayloadTypeATTR }

func (s *CfgPayload) Encode() []byte {
	b := make([]byte, 4)
	packets.WriteB8(b, 0, uint8(s.MsgType))
	packets.WriteB16(b, 2, s.Identifier)
	for _, a := range s.Attributes {
		b = append(b, encodeCfgAttribute(a)...)
	}
	return b
}

func (s *CfgPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(PAYLOAD_MALFORMED, "cfg payload shorter than 4 bytes")
	}
	mt, _ := packets.ReadB8(b, 0)
	s.MsgType = CfgMsgType(mt)
	s.Identifier, _ = packets.ReadB16(b, 2)
	rest := b[4:]
	for len(rest) > 0 {
		a, n, err := decodeCfgAttribute(rest)
		if err != nil {
			return err
		}
		s.Attributes = append(s.Attributes, a)
		rest = rest[n:]
	}
	return nil
}

func decodeCfgAttribute(b []byte) (attr *CfgAttribute, used int, err error) {
	if len(b) < 4 {
		return nil, 0, ErrF(PAYLOAD_MALFORMED, "cfg attribute shorter than 4 bytes")
	}
	raw, _ := packets.ReadB16(b, 0)
	attr = &CfgAttribute{Type: raw &^ attrAfBit}
	if raw&attrAfBit != 0 {
		attr.Value, _ = packets.ReadB16(b, 2)
		return attr, 4, nil
	}
	alen, _ := packets.ReadB16(b, 2)
	if len(b) < 4+int(alen) {
		return nil, 0, ErrF(PAYLOAD_MALFORMED, "cfg attribute data truncated")
	}
	attr.Data = append([]byte{}, b[4:4+int(alen)]...)
	return attr, 4 + int(alen), nil
}

func encodeCfgAttribute(a *CfgAttribute) []byte {
	if a.IsBasic() {
		b := make([]byte, 4)
		packets.WriteB16(b, 0, a.Type|attrAfBit)
		packets.WriteB16(b, 2, a.Value)
		return b
	}
	b := make([]byte, 4+len(a.Data))
	packets.WriteB16(b, 0, a.Type)
	packets.WriteB16(b, 2, uint16(len(a.Data)))
	copy(b[4:], a.Data)
	return b
}
