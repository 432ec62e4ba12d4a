package ike

import (
	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

// usePhase2Id reports whether exchange et carries Quick Mode's
// protocol/port-bearing ID payload shape rather than Main/Aggressive
// Mode's bare identity.
func usePhase2Id(et protocol.IkeExchangeType) bool {
	return et == protocol.EXCHANGE_QUICK
}

// decodeBody finishes decoding m in the context of Session s: if the
// header's ENCRYPTION flag is set, the body is decrypted first (and
// the session's IV chained forward for the next message in the same
// exchange); the resulting plaintext is then walked into a payload
// chain starting at the header's declared first payload type.
func (s *Session) decodeBody(m *Message) error {
	body := m.Body()
	if m.IkeHeader.Flags.IsEncrypted() {
		if s.Oakley == nil {
			return protocol.ErrF(protocol.INVALID_FLAGS, "encrypted message before Oakley suite negotiated")
		}
		clear, err := s.decryptInbound(m.IkeHeader, body)
		if err != nil {
			return err
		}
		body = clear
	}
	chain, err := protocol.DecodePayloadChain(m.IkeHeader.NextPayload, body, usePhase2Id(m.IkeHeader.ExchangeType))
	if err != nil {
		return err
	}
	m.Payloads = chain
	return nil
}

// encodeReply finishes an outbound message built from chain: if the
// transition says the reply must be encrypted, the serialized payload
// chain is encrypted in place and the header's ENCRYPTION flag set;
// otherwise it is sent as plaintext (IKE_SA_INIT-equivalent leg,
// pre-Phase-1 Informational notifications).
func (s *Session) encodeReply(h *protocol.IkeHeader, chain *protocol.PayloadChain, encrypted bool) ([]byte, error) {
	next := protocol.PayloadTypeNone
	if len(chain.Order) > 0 {
		next = chain.Order[0].Type()
	}
	body := protocol.EncodePayloadChain(chain)
	if encrypted {
		h.Flags |= protocol.FLAG_ENCRYPTION
		ct, err := s.encryptOutbound(h, body)
		if err != nil {
			return nil, err
		}
		body = ct
	}
	h.NextPayload = next
	h.MsgLength = uint32(protocol.IKE_HEADER_LEN + len(body))
	return append(h.Encode(), body...), nil
}

// checkPayloads enforces the transition's payload grammar: every type
// in ReqPayloads must be present, and every present type must be
// covered by ReqPayloads, OptPayloads, or the always-acceptable set
// (VID/N/D/CR/CERT, which any message may carry regardless of mode).
func (s *Session) checkPayloads(m *Message, tr *microcode.Transition) error {
	present := m.Payloads.PresentTypes()
	missing := tr.ReqPayloads &^ present
	if !missing.Empty() {
		return protocol.ErrF(protocol.PAYLOAD_MALFORMED, "missing required payload(s)")
	}
	allowed := tr.ReqPayloads | tr.OptPayloads
	for _, p := range m.Payloads.Order {
		t := p.Type()
		if allowed.Has(t) || protocol.IsAlwaysAcceptable(t) {
			continue
		}
		return protocol.ErrF(protocol.INVALID_PAYLOAD_TYPE, "unexpected payload %s for this transition", t)
	}
	return nil
}

// verifyTransitionHash dispatches to the exchange-appropriate HASH
// formula and compares it against the HASH payload the peer sent.
func (s *Session) verifyTransitionHash(m *Message, tr *microcode.Transition) error {
	hp, ok := m.Payloads.First(protocol.PayloadTypeHASH).(*protocol.HashPayload)
	if !ok {
		return protocol.ErrF(protocol.INVALID_HASH_INFORMATION, "hash required but absent")
	}
	// Which HASH formula a message carries is a property of the
	// transition, not of which role this session plays: a V1_HASH_1
	// message always carries HASH_I/HASH(1), a V1_HASH_2 message always
	// carries HASH_R/HASH(2), regardless of whether this side is the
	// initiator or the responder of the exchange.
	var want []byte
	switch tr.HashType {
	case microcode.V1_HASH_1:
		switch m.IkeHeader.ExchangeType {
		case protocol.EXCHANGE_QUICK:
			want = s.quickModeHash1(m.IkeHeader.MsgId, quickModeHashBody(m))
		case protocol.EXCHANGE_TRANSACTION:
			// Transaction (XAUTH/Mode-Config) messages carry one HASH
			// formula regardless of which leg of the round trip they are
			// (RFC 2407 appendix A): prf(SKEYID_a, M-ID | Attributes),
			// the same shape as Quick Mode's HASH(1) with the attribute
			// payload standing in for SA|Ni.
			want = s.quickModeHash1(m.IkeHeader.MsgId, quickModeHashBody(m))
		case protocol.EXCHANGE_INFO:
			want = s.informationalHash(m.IkeHeader.MsgId, quickModeHashBody(m))
		default:
			want = s.mainModeHash(true, idPayloadBody(m))
		}
	case microcode.V1_HASH_2:
		if m.IkeHeader.ExchangeType == protocol.EXCHANGE_QUICK {
			want = s.quickModeHash2(m.IkeHeader.MsgId, quickModeHashBody(m))
		} else {
			want = s.mainModeHash(false, idPayloadBody(m))
		}
	case microcode.V1_HASH_3:
		if m.IkeHeader.ExchangeType == protocol.EXCHANGE_QUICK {
			want = s.quickModeHash3(m.IkeHeader.MsgId)
		} else {
			// Aggressive Mode's third message confirms the exchange with
			// HASH_I (RFC 2409 5.4): same formula Main Mode uses, just
			// carried one message earlier since Aggressive Mode folds
			// the SA/KE/Nonce/ID exchange into two round trips instead
			// of three. That third message carries no ID payload, so
			// IDii_b is the identity aggrR0 recorded from the first one.
			idBody := idPayloadBody(m)
			if idBody == nil && s.Conn.RemoteID != nil {
				idBody = s.Conn.RemoteID.Encode()
			}
			want = s.mainModeHash(true, idBody)
		}
	case microcode.HashNone:
		return protocol.ErrF(protocol.INVALID_HASH_INFORMATION, "hash present but transition declares no hash type")
	}
	return verifyHash(hp.Data, want)
}

// quickModeHashBody reconstructs the SA | Ni [| KE] [| IDci | IDcr]
// portion HASH(1)/HASH(2) cover, by re-encoding every payload in the
// message after the HASH payload itself in wire order.
func quickModeHashBody(m *Message) []byte {
	var b []byte
	seenHash := false
	for _, p := range m.Payloads.Order {
		if p.Type() == protocol.PayloadTypeHASH {
			seenHash = true
			continue
		}
		if !seenHash {
			continue
		}
		b = append(b, p.Encode()...)
	}
	return b
}

// idPayloadBody returns the raw identity payload body (IDii_b/IDir_b)
// Main/Aggressive Mode's HASH formula folds in.
func idPayloadBody(m *Message) []byte {
	id := m.Payloads.First(protocol.PayloadTypeID)
	if id == nil {
		return nil
	}
	return id.Encode()
}
