package ike

import (
	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

func init() {
	microcode.RegisterHandler(microcode.HandlerAggrMode, handleAggrMode)
}

// handleAggrMode implements Aggressive Mode's three transitions
// (RFC 2409 5.4): it folds Main Mode's three round trips into two by
// carrying SA/KE/Nonce/ID in the first message and SA/KE/Nonce/ID/HASH_R
// in the second, leaving only a HASH_I confirmation for the third.
func handleAggrMode(ex microcode.Exchange) microcode.Result {
	sx := ex.(*sessionExchange)
	s, m := sx.session, sx.msg

	switch sx.Transition().FromState {
	case protocol.AGGR_R0:
		return aggrR0(s, sx, m)
	case protocol.AGGR_I1:
		return aggrI1(s, sx, m)
	case protocol.AGGR_R1:
		return aggrR1(s, sx, m)
	default:
		return microcode.ResultFail(protocol.INVALID_EXCHANGE_TYPE)
	}
}

// aggrR0 is the responder's first message: accept the proposal, derive
// our keypair, and reply with SA/KE/Nonce/ID/HASH_R in one message --
// the defining difference from Main Mode, which splits those across
// three.
func aggrR0(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	sa, ok := m.Payloads.First(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	ke, ok := m.Payloads.First(protocol.PayloadTypeKE).(*protocol.KePayload)
	if !ok {
		return microcode.ResultFail(protocol.INVALID_KEY_INFORMATION)
	}
	nonce, ok := m.Payloads.First(protocol.PayloadTypeNONCE).(*protocol.NoncePayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	id, ok := m.Payloads.First(protocol.PayloadTypeID).(*protocol.IdPayload)
	if !ok {
		return microcode.ResultFail(protocol.INVALID_ID_INFORMATION)
	}

	prop, tr, err := s.Conn.Config.CheckIkeProposal(sa)
	if err != nil {
		return microcode.ResultFail(protocol.NO_PROPOSAL_CHOSEN)
	}
	suite, err := s.oakleySuiteFor(tr)
	if err != nil {
		return microcode.ResultFail(protocol.ATTRIBUTES_NOT_SUPPORTED)
	}
	s.Oakley = suite
	s.AuthClass = protocol.AuthClassFor(protocol.AuthMethod(mustAttr(tr, protocol.OAKLEY_AUTHENTICATION_METHOD)))
	s.IkeSpiI = m.IkeHeader.IcookieSpi
	s.IkeSpiR = randomSpi()
	s.initSaBytes = sa.Encode()
	s.nonceI = nonce.Nonce
	s.peerPublic = ke.KeyData
	s.recordRemoteId(id)

	if s.demux != nil {
		s.demux.BindResponderCookie(s)
	}

	if err := s.beginKeyExchange(); err != nil {
		return microcode.ResultFail(protocol.INVALID_KEY_INFORMATION)
	}
	s.nonceR = generateNonce()

	// The shared secret is needed immediately -- HASH_R goes out in
	// this same reply -- so the rest of the message is built inside
	// the DH continuation.
	tr2 := sx.Transition()
	s.suspendForDh(s.peerPublic, func() {
		sx.AddPayload(NarrowedSaPayload(protocol.PROTO_ISAKMP, prop.Spi, tr))
		sx.AddPayload(&protocol.KePayload{PayloadHeader: &protocol.PayloadHeader{}, KeyData: s.publicKey})
		sx.AddPayload(&protocol.NoncePayload{PayloadHeader: &protocol.PayloadHeader{}, Nonce: s.nonceR})
		localId := s.localId()
		sx.AddPayload(localId)
		hash := s.mainModeHash(false, localId.Encode())
		sx.AddPayload(&protocol.HashPayload{PayloadHeader: &protocol.PayloadHeader{}, Data: hash})
		if err := s.commit(m, tr2, sx); err != nil {
			log.Warningf("%s%v", s.Tag(), err)
		}
	})
	return microcode.ResultSuspend()
}

// aggrI1 is the initiator's reaction to the responder's
// SA/KE/Nonce/ID/HASH_R. dispatch has already, ahead of calling this
// handler, derived SKEYID from this same message's KE/Nonce
// (prepareSharedSecretIfNeeded, since HASH_R arrives in the same
// message as the peer's half of the key exchange) and verified HASH_R
// against it -- IKEv1 Aggressive Mode pays its DH cost as synchronous
// CPU-bound work on the initiator's single message rather than a
// network round trip the way Main Mode's suspend does.
func aggrI1(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	id, ok := m.Payloads.First(protocol.PayloadTypeID).(*protocol.IdPayload)
	if !ok {
		return microcode.ResultFail(protocol.INVALID_ID_INFORMATION)
	}
	s.recordRemoteId(id)

	localId := s.localId()
	sx.AddPayload(localId)
	hash := s.mainModeHash(true, localId.Encode())
	sx.AddPayload(&protocol.HashPayload{PayloadHeader: &protocol.PayloadHeader{}, Data: hash})
	return microcode.ResultOk()
}

// aggrR1 is the responder's reaction to the initiator's HASH_I
// confirmation (already verified by the dispatcher): Aggressive Mode
// is now complete on both sides.
func aggrR1(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	log.Infof("%sAggressive Mode complete", s.Tag())
	return microcode.ResultOk()
}
