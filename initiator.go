package ike

import (
	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/protocol"
)

// StartMainMode builds and sends the very first Main Mode message (the
// bare SA proposal) and arms the initial timeout. Session.State is
// already MAIN_I1 by the time this runs (NewSession sets it for every
// initiator Session at construction) since the microcode table's
// MAIN_I1 row describes processing the responder's reply, not sending
// this message -- building it is this engine's job, not the table's.
func (s *Session) StartMainMode() error {
	sa := &protocol.SaPayload{
		Doi:       protocol.IPSEC_DOI,
		Situation: protocol.SIT_IDENTITY_ONLY,
		Proposals: []*protocol.SaProposal{{
			Number:     1,
			ProtocolId: protocol.PROTO_ISAKMP,
			Transforms: s.Conn.Config.ProposalsIke,
		}},
	}
	s.IkeSpiI = randomSpi()
	s.initSaBytes = sa.Encode()
	if s.demux != nil {
		s.demux.registerIcookie(s)
	}

	chain := protocol.NewPayloadChain()
	chain.Add(sa)
	h := &protocol.IkeHeader{
		IcookieSpi: s.IkeSpiI,
		MajorVersion: protocol.ISAKMP_MAJOR_VERSION, MinorVersion: protocol.ISAKMP_MINOR_VERSION,
		ExchangeType: protocol.EXCHANGE_IDPROT,
	}
	reply, err := s.encodeReply(h, chain, false)
	if err != nil {
		return err
	}
	s.send(reply)
	s.scheduleRetransmit(0)
	return nil
}

// StartAggressiveMode builds and sends Aggressive Mode's first message
// (SA, KE, Nonce, ID in one round trip -- see aggr_mode.go), moving
// Session.State from NewSession's MAIN_I1 to AGGR_I1 so the
// responder's reply is matched against Aggressive Mode's AGGR_I1 row.
func (s *Session) StartAggressiveMode() error {
	if err := s.beginKeyExchange(); err != nil {
		return err
	}
	s.nonceI = generateNonce()
	s.IkeSpiI = randomSpi()
	s.State = protocol.AGGR_I1
	if s.demux != nil {
		s.demux.registerIcookie(s)
	}

	tr := s.Conn.Config.ProposalsIke[0]
	sa := &protocol.SaPayload{
		Doi:       protocol.IPSEC_DOI,
		Situation: protocol.SIT_IDENTITY_ONLY,
		Proposals: []*protocol.SaProposal{{Number: 1, ProtocolId: protocol.PROTO_ISAKMP, Transforms: []*protocol.SaTransform{tr}}},
	}
	s.initSaBytes = sa.Encode()

	chain := protocol.NewPayloadChain()
	chain.Add(sa)
	chain.Add(&protocol.KePayload{PayloadHeader: &protocol.PayloadHeader{}, KeyData: s.publicKey})
	chain.Add(&protocol.NoncePayload{PayloadHeader: &protocol.PayloadHeader{}, Nonce: s.nonceI})
	chain.Add(s.localId())

	h := &protocol.IkeHeader{
		IcookieSpi: s.IkeSpiI,
		MajorVersion: protocol.ISAKMP_MAJOR_VERSION, MinorVersion: protocol.ISAKMP_MINOR_VERSION,
		ExchangeType: protocol.EXCHANGE_AGGR,
	}
	reply, err := s.encodeReply(h, chain, false)
	if err != nil {
		return err
	}
	s.send(reply)
	s.scheduleRetransmit(0)
	return nil
}

// StartQuickMode begins a new Phase 2 negotiation over this Session's
// already-completed Phase 1 SA: a child ESP SA protecting traffic
// between localNet and remoteNet. The exchange's message-id is chosen
// here and becomes the key every later message in the same exchange is
// looked up under (see dispatch.go's fromStateFor).
func (s *Session) StartQuickMode(localNet, remoteNet *protocol.Phase2IdPayload) error {
	if s.Oakley == nil || s.skeyid == nil {
		log.Warningf("%scannot start Quick Mode before Phase 1 completes", s.Tag())
		return protocol.ErrF(protocol.INVALID_EXCHANGE_TYPE, "phase 1 not complete")
	}

	msgId := randomMsgId()
	s.subState[msgId] = protocol.QUICK_I1
	s.nonceI = generateNonce()
	s.espSpiI = randomEspSpi()

	tr := s.Conn.Config.ProposalsEsp[0]
	sa := &protocol.SaPayload{
		Doi:       protocol.IPSEC_DOI,
		Situation: protocol.SIT_IDENTITY_ONLY,
		Proposals: []*protocol.SaProposal{{Number: 1, ProtocolId: protocol.PROTO_IPSEC_ESP, Spi: append([]byte{}, s.espSpiI...), Transforms: []*protocol.SaTransform{tr}}},
	}

	chain := protocol.NewPayloadChain()
	body := protocol.NewPayloadChain()
	body.Add(sa)
	body.Add(&protocol.NoncePayload{PayloadHeader: &protocol.PayloadHeader{}, Nonce: s.nonceI})
	body.Add(localNet)
	body.Add(remoteNet)
	hash := s.quickModeHash1(msgId, protocol.EncodePayloadChain(body))
	chain.Add(&protocol.HashPayload{PayloadHeader: &protocol.PayloadHeader{}, Data: hash})
	chain.Add(sa)
	chain.Add(&protocol.NoncePayload{PayloadHeader: &protocol.PayloadHeader{}, Nonce: s.nonceI})
	chain.Add(localNet)
	chain.Add(remoteNet)

	h := &protocol.IkeHeader{
		IcookieSpi: s.IkeSpiI, RcookieSpi: s.IkeSpiR,
		MajorVersion: protocol.ISAKMP_MAJOR_VERSION, MinorVersion: protocol.ISAKMP_MINOR_VERSION,
		ExchangeType: protocol.EXCHANGE_QUICK, MsgId: msgId,
	}
	reply, err := s.encodeReply(h, chain, true)
	if err != nil {
		return err
	}
	s.send(reply)
	return nil
}
