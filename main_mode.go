package ike

import (
	"crypto/rand"
	"math/big"

	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

func init() {
	microcode.RegisterHandler(microcode.HandlerMainMode, handleMainMode)
}

func randomSpi() protocol.Spi {
	b := make([]byte, 8)
	rand.Read(b)
	return protocol.Spi(b)
}

func generateNonce() *big.Int {
	b := make([]byte, 32)
	rand.Read(b)
	return new(big.Int).SetBytes(b)
}

// handleMainMode implements every Main Mode transition's handler side
// of the microcode table: the table already enforces which payloads
// must be present for the from_state reached, this function only needs
// to build whatever reply the transition calls for and advance the
// Session's negotiated key material.
func handleMainMode(ex microcode.Exchange) microcode.Result {
	sx := ex.(*sessionExchange)
	s, m := sx.session, sx.msg

	switch sx.Transition().FromState {
	case protocol.MAIN_R0:
		return mainR0(s, sx, m)
	case protocol.MAIN_I1:
		return mainI1(s, sx, m)
	case protocol.MAIN_R1:
		return mainR1(s, sx, m)
	case protocol.MAIN_I2:
		return mainI2(s, sx, m)
	case protocol.MAIN_R2:
		return mainR2(s, sx, m)
	case protocol.MAIN_I3:
		return mainI3(s, sx, m)
	default:
		return microcode.ResultFail(protocol.INVALID_EXCHANGE_TYPE)
	}
}

// mainR0 is the responder's first message: pick our half of the SPI
// pair, accept an Oakley proposal, and echo the narrowed SA back.
func mainR0(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	sa, ok := m.Payloads.First(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
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

	if s.demux != nil {
		s.demux.BindResponderCookie(s)
	}

	sx.AddPayload(NarrowedSaPayload(protocol.PROTO_ISAKMP, prop.Spi, tr))
	return microcode.ResultOk()
}

// mainI1 is the initiator's reaction to the responder's narrowed SA:
// save it (it's still needed for the HASH computation) and send our KE
// and nonce.
func mainI1(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	sa, ok := m.Payloads.First(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok || len(sa.Proposals) == 0 || len(sa.Proposals[0].Transforms) == 0 {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	tr := sa.Proposals[0].Transforms[0]
	suite, err := s.oakleySuiteFor(tr)
	if err != nil {
		return microcode.ResultFail(protocol.ATTRIBUTES_NOT_SUPPORTED)
	}
	s.Oakley = suite
	s.AuthClass = protocol.AuthClassFor(protocol.AuthMethod(mustAttr(tr, protocol.OAKLEY_AUTHENTICATION_METHOD)))
	s.IkeSpiR = m.IkeHeader.RcookieSpi
	s.initSaBytes = sa.Encode()

	if s.demux != nil {
		s.demux.BindResponderCookie(s)
	}

	if err := s.beginKeyExchange(); err != nil {
		return microcode.ResultFail(protocol.INVALID_KEY_INFORMATION)
	}
	s.nonceI = generateNonce()
	sx.AddPayload(&protocol.KePayload{PayloadHeader: &protocol.PayloadHeader{}, KeyData: s.publicKey})
	sx.AddPayload(&protocol.NoncePayload{PayloadHeader: &protocol.PayloadHeader{}, Nonce: s.nonceI})
	return microcode.ResultOk()
}

// mainR1 is the responder's reaction to the initiator's KE/Nonce: it
// adds our own KE/Nonce to the reply (they need nothing but our own
// keypair) and suspends on the Diffie-Hellman computation; the reply
// is sent from the DH continuation (commit) once the shared secret is
// installed, so it waits for the modular exponentiation.
func mainR1(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	ke, ok := m.Payloads.First(protocol.PayloadTypeKE).(*protocol.KePayload)
	if !ok {
		return microcode.ResultFail(protocol.INVALID_KEY_INFORMATION)
	}
	nonce, ok := m.Payloads.First(protocol.PayloadTypeNONCE).(*protocol.NoncePayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	s.nonceI = nonce.Nonce
	s.peerPublic = ke.KeyData

	if err := s.beginKeyExchange(); err != nil {
		return microcode.ResultFail(protocol.INVALID_KEY_INFORMATION)
	}
	s.nonceR = generateNonce()
	sx.AddPayload(&protocol.KePayload{PayloadHeader: &protocol.PayloadHeader{}, KeyData: s.publicKey})
	sx.AddPayload(&protocol.NoncePayload{PayloadHeader: &protocol.PayloadHeader{}, Nonce: s.nonceR})

	tr := sx.Transition()
	s.suspendForDh(s.peerPublic, func() {
		if err := s.commit(m, tr, sx); err != nil {
			log.Warningf("%s%v", s.Tag(), err)
		}
	})
	return microcode.ResultSuspend()
}

// mainI2 is the initiator's reaction to the responder's KE/Nonce: the
// shared secret is needed immediately, to authenticate the ID+HASH_I
// this side sends next, so the reply is built inside the DH
// continuation rather than before suspending.
func mainI2(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	ke, ok := m.Payloads.First(protocol.PayloadTypeKE).(*protocol.KePayload)
	if !ok {
		return microcode.ResultFail(protocol.INVALID_KEY_INFORMATION)
	}
	nonce, ok := m.Payloads.First(protocol.PayloadTypeNONCE).(*protocol.NoncePayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	s.nonceR = nonce.Nonce
	s.peerPublic = ke.KeyData

	tr := sx.Transition()
	s.suspendForDh(s.peerPublic, func() {
		id := s.localId()
		sx.AddPayload(id)
		hash := s.mainModeHash(true, id.Encode())
		sx.AddPayload(&protocol.HashPayload{PayloadHeader: &protocol.PayloadHeader{}, Data: hash})
		if err := s.commit(m, tr, sx); err != nil {
			log.Warningf("%s%v", s.Tag(), err)
		}
	})
	return microcode.ResultSuspend()
}

// mainR2 is the responder's reaction to the initiator's ID+HASH_I:
// verify it (done by the dispatcher's hash check before this handler
// runs, now that SKEYID was derived in MAIN_R1's continuation), record
// the peer's identity, and answer with our own authenticated identity.
func mainR2(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	id, ok := m.Payloads.First(protocol.PayloadTypeID).(*protocol.IdPayload)
	if !ok {
		return microcode.ResultFail(protocol.INVALID_ID_INFORMATION)
	}
	s.recordRemoteId(id)

	localId := s.localId()
	sx.AddPayload(localId)
	hash := s.mainModeHash(false, localId.Encode())
	sx.AddPayload(&protocol.HashPayload{PayloadHeader: &protocol.PayloadHeader{}, Data: hash})
	return microcode.ResultOk()
}

// mainI3 is the initiator's reaction to the responder's ID+HASH_R:
// Main Mode is now complete on both sides.
func mainI3(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	id, ok := m.Payloads.First(protocol.PayloadTypeID).(*protocol.IdPayload)
	if !ok {
		return microcode.ResultFail(protocol.INVALID_ID_INFORMATION)
	}
	s.recordRemoteId(id)
	log.Infof("%sMain Mode complete", s.Tag())
	return microcode.ResultOk()
}

func mustAttr(tr *protocol.SaTransform, typ protocol.OakleyAttributeType) uint16 {
	if a, ok := tr.Attr(uint16(typ)); ok {
		return a.Value
	}
	return 0
}
