package ike

import (
	"crypto/rand"
	"encoding/binary"
	"net"

	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/platform"
	"github.com/msgboxio/ikev1/protocol"
)

func init() {
	microcode.RegisterHandler(microcode.HandlerQuickMode, handleQuickMode)
}

// randomEspSpi returns a fresh 4-byte ESP SPI (RFC 2406 2.1) -- a
// different size and a different generator from randomSpi's 8-byte
// ISAKMP cookie.
func randomEspSpi() protocol.Spi {
	b := make([]byte, 4)
	rand.Read(b)
	return protocol.Spi(b)
}

// handleQuickMode implements Phase 2 (RFC 2409 5.5): a three-message
// exchange, protected under the Phase 1 SA's keys, negotiating a child
// ESP SA for a pair of traffic selectors.
func handleQuickMode(ex microcode.Exchange) microcode.Result {
	sx := ex.(*sessionExchange)
	s, m := sx.session, sx.msg

	switch sx.Transition().FromState {
	case protocol.QUICK_R0:
		return quickR0(s, sx, m)
	case protocol.QUICK_I1:
		return quickI1(s, sx, m)
	case protocol.QUICK_R1:
		return quickR1Confirm(s, sx, m)
	default:
		return microcode.ResultFail(protocol.INVALID_EXCHANGE_TYPE)
	}
}

// quickSelectors pulls the two Phase 2 ID payloads (IDci, IDcr) out of
// m, or synthesizes the RFC 2409 5.5 default (the Phase 1 IP addresses
// themselves, host selectors) when the peer omitted them -- permitted
// when the whole host, not a subnet behind it, is what's protected.
func quickSelectors(s *Session, m *Message) (local, remote *protocol.Phase2IdPayload) {
	ids := m.Payloads.All(protocol.PayloadTypeID)
	if len(ids) == 2 {
		// Wire order is IDci, IDcr from the initiator's point of view;
		// from the responder's point of view IDci is the peer's own
		// selector ("remote" to us) and IDcr is ours.
		a := ids[0].(*protocol.Phase2IdPayload)
		b := ids[1].(*protocol.Phase2IdPayload)
		if s.IsInitiator {
			return a, b
		}
		return b, a
	}
	return hostSelector(s.Conn.LocalAddr.IP), hostSelector(s.Conn.RemoteAddr.IP)
}

func hostSelector(ip net.IP) *protocol.Phase2IdPayload {
	return &protocol.Phase2IdPayload{IdType: protocol.ID_IPV4_ADDR, Data: append([]byte{}, ip.To4()...)}
}

// selectorIPNet turns a Phase 2 selector into the net.IPNet platform.SaParams
// wants, treating anything that isn't an explicit subnet as a /32 host.
func selectorIPNet(id *protocol.Phase2IdPayload) *net.IPNet {
	ip := net.IP(append([]byte{}, id.Data[:4]...))
	if id.IdType == protocol.ID_IPV4_ADDR_SUBNET && len(id.Data) >= 8 {
		return &net.IPNet{IP: ip, Mask: net.IPMask(id.Data[4:8])}
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(32, 32)}
}

func encrAlgoName(id protocol.EspTransformId) string {
	switch id {
	case protocol.ESP_DES:
		return "cbc(des)"
	case protocol.ESP_3DES:
		return "cbc(des3_ede)"
	case protocol.ESP_AES:
		return "cbc(aes)"
	case protocol.ESP_CAMELLIA:
		return "cbc(camellia)"
	case protocol.ESP_NULL:
		return "ecb(cipher_null)"
	default:
		return ""
	}
}

func authAlgoName(id protocol.IpsecAuthId) string {
	switch id {
	case protocol.IPSEC_AUTH_HMAC_MD5:
		return "hmac(md5)"
	case protocol.IPSEC_AUTH_HMAC_SHA:
		return "hmac(sha1)"
	case protocol.IPSEC_AUTH_HMAC_SHA2_256:
		return "hmac(sha256)"
	case protocol.IPSEC_AUTH_HMAC_SHA2_384:
		return "hmac(sha384)"
	case protocol.IPSEC_AUTH_HMAC_SHA2_512:
		return "hmac(sha512)"
	default:
		return ""
	}
}

// saParamsFor builds one direction's platform.SaParams from the
// negotiated IpsecSuite and keying material.
func saParamsFor(s *Session, dir platform.Direction, spi protocol.Spi, encrKey, authKey []byte, local, remote *protocol.Phase2IdPayload) *platform.SaParams {
	tr := s.lastEspTransform
	return &platform.SaParams{
		Direction:    dir,
		LocalAddr:    s.Conn.LocalAddr.IP,
		RemoteAddr:   s.Conn.RemoteAddr.IP,
		Spi:          spiToUint32(spi),
		EncrAlgo:     encrAlgoName(protocol.EspTransformId(tr.TransformId)),
		EncrKey:      encrKey,
		AuthAlgo:     authAlgoName(ipsecAuthOf(tr)),
		AuthKey:      authKey,
		LocalSubnet:  selectorIPNet(local),
		RemoteSubnet: selectorIPNet(remote),
	}
}

// spiToUint32 reads a 4-byte ESP SPI in network byte order, padding a
// shorter value with leading zeroes -- platform.SaParams wants the
// kernel's native uint32 form, the wire form is a byte slice.
func spiToUint32(spi protocol.Spi) uint32 {
	var b [4]byte
	copy(b[4-len(spi):], spi)
	return binary.BigEndian.Uint32(b[:])
}

func ipsecAuthOf(tr *protocol.SaTransform) protocol.IpsecAuthId {
	if a, ok := tr.Attr(uint16(protocol.IPSEC_AUTH_ALGORITHM)); ok {
		return protocol.IpsecAuthId(a.Value)
	}
	return 0
}

// installChildSa derives both directions' ESP keys from SKEYID_d and
// this exchange's SPIs/nonces (RFC 2407 section 4) and hands them to
// the configured platform.Installer, once for each direction, matching
// the "external collaborator called twice" install shape Quick Mode
// completion always produces.
//
// Inbound traffic always arrives addressed to this side's own SPI and
// outbound traffic is always addressed to the peer's SPI, regardless
// of which side initiated the exchange -- espSpiI/espSpiR name which
// endpoint picked the SPI, not which direction it protects, so the
// initiator/responder roles have to be unpicked here.
func (s *Session) installChildSa(local, remote *protocol.Phase2IdPayload) error {
	keyLen := s.ipsec.KeyLen
	authKeyLen := s.ipsec.MacKeyLen

	ownSpi, peerSpi := s.espSpiR, s.espSpiI
	if s.IsInitiator {
		ownSpi, peerSpi = s.espSpiI, s.espSpiR
	}

	inEncr := s.quickModeKeymat(protocol.PROTO_IPSEC_ESP, ownSpi, keyLen+authKeyLen)
	outEncr := s.quickModeKeymat(protocol.PROTO_IPSEC_ESP, peerSpi, keyLen+authKeyLen)

	in := saParamsFor(s, platform.DirectionIn, ownSpi, inEncr[:keyLen], inEncr[keyLen:], local, remote)
	out := saParamsFor(s, platform.DirectionOut, peerSpi, outEncr[:keyLen], outEncr[keyLen:], local, remote)

	if s.installer != nil {
		if err := s.installer.Install(in); err != nil {
			return err
		}
		if err := s.installer.Install(out); err != nil {
			return err
		}
	}
	if s.onAddSa != nil {
		if err := s.onAddSa(s); err != nil {
			return err
		}
	}
	return nil
}

// quickR0 is the responder's reaction to the initiator's first Quick
// Mode message: select an ESP proposal, generate our SPI and nonce, and
// reply with HASH(2)|SA|Nr|[IDci|IDcr].
func quickR0(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	sa, ok := m.Payloads.First(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	nonce, ok := m.Payloads.First(protocol.PayloadTypeNONCE).(*protocol.NoncePayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	prop, tr, err := s.Conn.Config.CheckEspProposal(sa)
	if err != nil {
		return microcode.ResultFail(protocol.NO_PROPOSAL_CHOSEN)
	}
	suite, err := s.ipsecSuiteFor(tr)
	if err != nil {
		return microcode.ResultFail(protocol.ATTRIBUTES_NOT_SUPPORTED)
	}
	local, remote := quickSelectors(s, m)
	for _, allowed := range s.Conn.LocalTs {
		if !matchPhase2Selector(local, allowed) {
			return microcode.ResultFail(protocol.INVALID_ID_INFORMATION)
		}
	}

	s.ipsec = suite
	s.lastEspTransform = tr
	s.nonceI = nonce.Nonce
	s.nonceR = generateNonce()
	s.espSpiR = randomEspSpi()

	reply := []protocol.Payload{NarrowedSaPayload(protocol.PROTO_IPSEC_ESP, s.espSpiR, tr),
		&protocol.NoncePayload{PayloadHeader: &protocol.PayloadHeader{}, Nonce: s.nonceR}}
	if len(m.Payloads.All(protocol.PayloadTypeID)) == 2 {
		reply = append(reply, local, remote)
	}
	var rest []byte
	for _, p := range reply {
		rest = append(rest, p.Encode()...)
	}
	sx.AddPayload(&protocol.HashPayload{PayloadHeader: &protocol.PayloadHeader{}, Data: s.quickModeHash2(m.IkeHeader.MsgId, rest)})
	for _, p := range reply {
		sx.AddPayload(p)
	}
	s.espSpiI = protocol.Spi(append([]byte{}, prop.Spi...))
	s.pendingLocalSel, s.pendingRemoteSel = local, remote
	return microcode.ResultOk()
}

// quickI1 is the initiator's reaction to the responder's HASH(2)|SA|Nr
// reply: accept the narrowed proposal, derive the child SA's keys, and
// close the exchange with HASH(3).
func quickI1(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	sa, ok := m.Payloads.First(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok || len(sa.Proposals) == 0 || len(sa.Proposals[0].Transforms) == 0 {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	nonce, ok := m.Payloads.First(protocol.PayloadTypeNONCE).(*protocol.NoncePayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	tr := sa.Proposals[0].Transforms[0]
	suite, err := s.ipsecSuiteFor(tr)
	if err != nil {
		return microcode.ResultFail(protocol.ATTRIBUTES_NOT_SUPPORTED)
	}
	s.ipsec = suite
	s.lastEspTransform = tr
	s.nonceR = nonce.Nonce
	s.espSpiR = protocol.Spi(append([]byte{}, sa.Proposals[0].Spi...))

	local, remote := quickSelectors(s, m)
	if err := s.installChildSa(local, remote); err != nil {
		log.Warningf("%sinstalling child SA: %v", s.Tag(), err)
		return microcode.ResultFail(protocol.INTERNAL_DECODE_ERROR)
	}

	hash := s.quickModeHash3(m.IkeHeader.MsgId)
	sx.AddPayload(&protocol.HashPayload{PayloadHeader: &protocol.PayloadHeader{}, Data: hash})
	return microcode.ResultOk()
}

// quickR1Confirm processes the initiator's HASH(3) liveness/completion
// proof (already verified by the dispatcher) and installs the
// responder's side of the child SA.
func quickR1Confirm(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	if err := s.installChildSa(s.pendingLocalSel, s.pendingRemoteSel); err != nil {
		log.Warningf("%sinstalling child SA: %v", s.Tag(), err)
		return microcode.ResultFail(protocol.INTERNAL_DECODE_ERROR)
	}
	log.Infof("%sQuick Mode complete", s.Tag())
	return microcode.ResultOk()
}
