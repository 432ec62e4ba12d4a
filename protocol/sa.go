package protocol

import (
	"github.com/msgboxio/log"
	"github.com/msgboxio/packets"
)

const LOG_CODEC = 3

type ProtocolId uint8

const (
	PROTO_ISAKMP ProtocolId = 1
	PROTO_IPSEC_AH ProtocolId = 2
	PROTO_IPSEC_ESP ProtocolId = 3
	PROTO_IPCOMP   ProtocolId = 4
)

type DoiType uint32

const IPSEC_DOI DoiType = 1

// Situation bits, IPsec DOI (RFC 2407 4.6.1).
type Situation uint32

const (
	SIT_IDENTITY_ONLY Situation = 1 << 0
	SIT_SECRECY       Situation = 1 << 1
	SIT_INTEGRITY     Situation = 1 << 2
)

// OakleyAttributeType enumerates Phase 1 (ISAKMP/Oakley) SA attributes,
// RFC 2409 Appendix A.
type OakleyAttributeType uint16

const (
	OAKLEY_ENCRYPTION_ALGORITHM OakleyAttributeType = 1
	OAKLEY_HASH_ALGORITHM       OakleyAttributeType = 2
	OAKLEY_AUTHENTICATION_METHOD OakleyAttributeType = 3
	OAKLEY_GROUP_DESCRIPTION    OakleyAttributeType = 4
	OAKLEY_GROUP_TYPE           OakleyAttributeType = 5
	OAKLEY_LIFE_TYPE            OakleyAttributeType = 11
	OAKLEY_LIFE_DURATION        OakleyAttributeType = 12
	OAKLEY_PRF                  OakleyAttributeType = 13
	OAKLEY_KEY_LENGTH           OakleyAttributeType = 14
	OAKLEY_FIELD_SIZE           OakleyAttributeType = 15
	OAKLEY_GROUP_ORDER          OakleyAttributeType = 16
)

// IpsecAttributeType enumerates Phase 2 (IPsec DOI) SA attributes,
// RFC 2407 4.5.
type IpsecAttributeType uint16

const (
	IPSEC_SA_LIFE_TYPE     IpsecAttributeType = 1
	IPSEC_SA_LIFE_DURATION IpsecAttributeType = 2
	IPSEC_GROUP_DESC       IpsecAttributeType = 3
	IPSEC_ENCAPSULATION_MODE IpsecAttributeType = 4
	IPSEC_AUTH_ALGORITHM   IpsecAttributeType = 5
	IPSEC_KEY_LENGTH       IpsecAttributeType = 6
	IPSEC_KEY_ROUNDS       IpsecAttributeType = 7
)

const (
	LIFE_TYPE_SECONDS IpsecAttributeType = 1
	LIFE_TYPE_KBYTES  IpsecAttributeType = 2
)

const (
	ENCAPSULATION_MODE_TUNNEL    = 1
	ENCAPSULATION_MODE_TRANSPORT = 2
	ENCAPSULATION_MODE_UDP_TUNNEL = 61443 // RFC 3948, NAT-T private use range
	ENCAPSULATION_MODE_UDP_TRANSPORT = 61443 + 1
)

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |A|       Attribute Type        |    AF=0  Attribute Length     |
   |F|                             |    AF=1  Attribute Value      |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   .                   AF=0  Attribute Value                       .
   .                   AF=1  Not Transmitted                       .
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
const attrAfBit = 0x8000

// TransformAttribute is a single Oakley or IPsec SA attribute. Basic
// (AF=1, TV) attributes carry a 16 bit Value; variable (AF=0, TLV)
// attributes, used only for multi-byte lifetimes, carry Data instead.
type TransformAttribute struct {
	Type  uint16
	Value uint16
	Data  []byte // only set when the attribute was encoded TLV
}

func (a *TransformAttribute) IsBasic() bool { return a.Data == nil }

func decodeAttribute(b []byte) (attr *TransformAttribute, used int, err error) {
	if len(b) < 4 {
		return nil, 0, ErrF(BAD_PROPOSAL_SYNTAX, "attribute shorter than 4 bytes")
	}
	raw, _ := packets.ReadB16(b, 0)
	attr = &TransformAttribute{Type: raw &^ attrAfBit}
	if raw&attrAfBit != 0 {
		attr.Value, _ = packets.ReadB16(b, 2)
		return attr, 4, nil
	}
	alen, _ := packets.ReadB16(b, 2)
	if len(b) < 4+int(alen) {
		return nil, 0, ErrF(BAD_PROPOSAL_SYNTAX, "attribute data truncated")
	}
	attr.Data = append([]byte{}, b[4:4+int(alen)]...)
	return attr, 4 + int(alen), nil
}

func encodeAttribute(a *TransformAttribute) []byte {
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

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |  Next Transform |  RESERVED    |        Transform Length       |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Transform #   | Transform-ID  |           RESERVED2            |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                      SA Attributes                            ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
const (
	nextTransformMore = 3
	nextTransformLast = 0
	minLenTransform   = 8
)

// SaTransform is one Transform substructure: a numbered candidate
// cipher/hash/DH/auth-method choice carried inside a Proposal, along
// with its attributes (key length, lifetime, ...).
type SaTransform struct {
	Number      uint8
	TransformId uint8
	Attributes  []*TransformAttribute
}

func (t *SaTransform) Attr(typ uint16) (*TransformAttribute, bool) {
	for _, a := range t.Attributes {
		if a.Type == typ {
			return a, true
		}
	}
	return nil, false
}

func decodeTransform(b []byte) (tr *SaTransform, isLast bool, used int, err error) {
	if len(b) < minLenTransform {
		return nil, false, 0, ErrF(BAD_PROPOSAL_SYNTAX, "transform shorter than %d", minLenTransform)
	}
	next, _ := packets.ReadB8(b, 0)
	isLast = next == nextTransformLast
	trLen, _ := packets.ReadB16(b, 2)
	if int(trLen) < minLenTransform || len(b) < int(trLen) {
		return nil, false, 0, ErrF(BAD_PROPOSAL_SYNTAX, "bad transform length %d", trLen)
	}
	tr = &SaTransform{}
	tr.Number, _ = packets.ReadB8(b, 4)
	tr.TransformId, _ = packets.ReadB8(b, 5)
	rest := b[minLenTransform:trLen]
	for len(rest) > 0 {
		a, n, aerr := decodeAttribute(rest)
		if aerr != nil {
			return nil, false, 0, aerr
		}
		tr.Attributes = append(tr.Attributes, a)
		rest = rest[n:]
	}
	return tr, isLast, int(trLen), nil
}

func encodeTransform(tr *SaTransform, isLast bool) []byte {
	b := make([]byte, minLenTransform)
	if isLast {
		packets.WriteB8(b, 0, nextTransformLast)
	} else {
		packets.WriteB8(b, 0, nextTransformMore)
	}
	packets.WriteB8(b, 4, tr.Number)
	packets.WriteB8(b, 5, tr.TransformId)
	for _, a := range tr.Attributes {
		b = append(b, encodeAttribute(a)...)
	}
	packets.WriteB16(b, 2, uint16(len(b)))
	return b
}

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |  Next Payload |  RESERVED    |         Payload Length         |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Proposal #    |  Protocol-Id  |    SPI Size   |  # of Trans.  |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                        SPI (variable)                        ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                       Transforms                             ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
const minLenProposal = 8

// SaProposal is one numbered Proposal substructure. IKEv1 lets a
// proposal number repeat across several Proposal substructures to mean
// "AND" (all must be accepted together, e.g. AH+ESP bundles); same
// Proposal number with different Protocol-Id is how that is expressed.
type SaProposal struct {
	Number     uint8
	ProtocolId ProtocolId
	Spi        []byte
	Transforms []*SaTransform
}

func decodeProposal(b []byte) (p *SaProposal, isLast bool, used int, err error) {
	if len(b) < minLenProposal {
		return nil, false, 0, ErrF(BAD_PROPOSAL_SYNTAX, "proposal shorter than %d", minLenProposal)
	}
	next, _ := packets.ReadB8(b, 0)
	isLast = next == 0
	pLen, _ := packets.ReadB16(b, 2)
	if int(pLen) < minLenProposal || len(b) < int(pLen) {
		return nil, false, 0, ErrF(BAD_PROPOSAL_SYNTAX, "bad proposal length %d", pLen)
	}
	p = &SaProposal{}
	p.Number, _ = packets.ReadB8(b, 4)
	pid, _ := packets.ReadB8(b, 5)
	p.ProtocolId = ProtocolId(pid)
	spiSize, _ := packets.ReadB8(b, 6)
	numTrans, _ := packets.ReadB8(b, 7)
	if len(b) < minLenProposal+int(spiSize) {
		return nil, false, 0, ErrF(BAD_PROPOSAL_SYNTAX, "proposal spi truncated")
	}
	p.Spi = append([]byte{}, b[minLenProposal:minLenProposal+int(spiSize)]...)
	rest := b[minLenProposal+int(spiSize) : pLen]
	for len(rest) > 0 {
		tr, last, n, terr := decodeTransform(rest)
		if terr != nil {
			return nil, false, 0, terr
		}
		p.Transforms = append(p.Transforms, tr)
		rest = rest[n:]
		if last {
			if len(rest) > 0 {
				return nil, false, 0, ErrF(BAD_PROPOSAL_SYNTAX, "trailing bytes after last transform")
			}
			break
		}
	}
	if len(p.Transforms) != int(numTrans) {
		log.V(LOG_CODEC).Infof("proposal declared %d transforms, decoded %d", numTrans, len(p.Transforms))
		return nil, false, 0, ErrF(BAD_PROPOSAL_SYNTAX, "transform count mismatch")
	}
	return p, isLast, int(pLen), nil
}

func encodeProposal(p *SaProposal, isLast bool) []byte {
	b := make([]byte, minLenProposal)
	if !isLast {
		packets.WriteB8(b, 0, 2)
	}
	packets.WriteB8(b, 4, p.Number)
	packets.WriteB8(b, 5, uint8(p.ProtocolId))
	packets.WriteB8(b, 6, uint8(len(p.Spi)))
	packets.WriteB8(b, 7, uint8(len(p.Transforms)))
	b = append(b, p.Spi...)
	for i, tr := range p.Transforms {
		b = append(b, encodeTransform(tr, i == len(p.Transforms)-1)...)
	}
	packets.WriteB16(b, 2, uint16(len(b)))
	return b
}

// SaPayload is the IKEv1 SA payload: a DOI/Situation header (Phase 1
// SAs always carry IPSEC_DOI, logged but not enforced strictly against
// peers that get it wrong) followed by one or more Proposal
// substructures.
type SaPayload struct {
	*PayloadHeader
	Doi       DoiType
	Situation Situation
	Proposals []*SaProposal
}

func (s *SaPayload) Type() PayloadType { return PayloadTypeSA }

func (s *SaPayload) Decode(b []byte) error {
	if len(b) < 8 {
		return ErrF(BAD_PROPOSAL_SYNTAX, "sa payload shorter than 8 bytes")
	}
	doi, _ := packets.ReadB32(b, 0)
	s.Doi = DoiType(doi)
	sit, _ := packets.ReadB32(b, 4)
	s.Situation = Situation(sit)
	b = b[8:]
	for len(b) > 0 {
		p, last, n, err := decodeProposal(b)
		if err != nil {
			return err
		}
		s.Proposals = append(s.Proposals, p)
		b = b[n:]
		if last {
			if len(b) > 0 {
				return ErrF(BAD_PROPOSAL_SYNTAX, "trailing bytes after last proposal")
			}
			break
		}
	}
	return nil
}

func (s *SaPayload) Encode() []byte {
	b := make([]byte, 8)
	packets.WriteB32(b, 0, uint32(s.Doi))
	packets.WriteB32(b, 4, uint32(s.Situation))
	for i, p := range s.Proposals {
		b = append(b, encodeProposal(p, i == len(s.Proposals)-1)...)
	}
	return b
}
