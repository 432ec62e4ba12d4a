package ike

import "github.com/msgboxio/ikev1/protocol"

// msgIdBytes renders a message-id in the big-endian form every HASH
// formula in RFC 2409 section 5 folds it in as.
func msgIdBytes(id uint32) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

// phase1Iv derives the first IV used once Main/Aggressive Mode starts
// encrypting: hash(g^xi | g^xr), truncated to the cipher's block
// length (RFC 2409 Section 5).
func (s *Session) phase1Iv() []byte {
	data := append(append([]byte{}, s.gxi()...), s.gxr()...)
	return truncateToBlock(s.Oakley.Prf(nil, data), s.Oakley.Cipher.BlockLen)
}

// exchangeIv derives the IV a brand-new Quick Mode or Informational
// exchange's first message uses: hash(phase1FinalIv | msgid), truncated
// to block length (RFC 2409 Section 5.5).
func (s *Session) exchangeIv(msgId uint32) []byte {
	data := append(append([]byte{}, s.phase1FinalIv...), msgIdBytes(msgId)...)
	return truncateToBlock(s.Oakley.Prf(nil, data), s.Oakley.Cipher.BlockLen)
}

func truncateToBlock(h []byte, blockLen int) []byte {
	if blockLen > 0 && len(h) > blockLen {
		return h[:blockLen]
	}
	return h
}

func isPhase1Exchange(et protocol.IkeExchangeType) bool {
	return et == protocol.EXCHANGE_IDPROT || et == protocol.EXCHANGE_AGGR
}

// ivFor returns the IV to use for exchange h, deriving and caching a
// fresh one for the first message of a non-Phase-1 exchange.
func (s *Session) ivFor(h *protocol.IkeHeader) []byte {
	if isPhase1Exchange(h.ExchangeType) {
		if s.iv == nil {
			s.iv = s.phase1Iv()
		}
		return s.iv
	}
	if iv, ok := s.exchangeIvs[h.MsgId]; ok {
		return iv
	}
	iv := s.exchangeIv(h.MsgId)
	s.exchangeIvs[h.MsgId] = iv
	return iv
}

// chainIv saves ciphertext's last block as the IV the next message in
// the same exchange uses (RFC 2409 5.3's "last CBC output block"
// chaining rule), and additionally remembers Main/Aggressive Mode's
// final value so exchangeIv can derive from it later.
func (s *Session) chainIv(h *protocol.IkeHeader, ciphertext []byte) {
	if len(ciphertext) < s.Oakley.Cipher.BlockLen {
		return
	}
	last := append([]byte{}, ciphertext[len(ciphertext)-s.Oakley.Cipher.BlockLen:]...)
	if isPhase1Exchange(h.ExchangeType) {
		s.iv = last
		s.phase1FinalIv = last
		return
	}
	s.exchangeIvs[h.MsgId] = last
}

func (s *Session) decryptInbound(h *protocol.IkeHeader, body []byte) ([]byte, error) {
	clear, err := s.Oakley.Cipher.Decrypt(body, s.skeyidE, s.ivFor(h))
	if err != nil {
		return nil, err
	}
	s.chainIv(h, body)
	return clear, nil
}

func (s *Session) encryptOutbound(h *protocol.IkeHeader, clear []byte) ([]byte, error) {
	ct, err := s.Oakley.Cipher.Encrypt(clear, s.skeyidE, s.ivFor(h))
	if err != nil {
		return nil, err
	}
	s.chainIv(h, ct)
	return ct, nil
}

// gxi and gxr return this session's view of the initiator's and
// responder's Diffie-Hellman public values respectively, regardless of
// whether this side is the initiator or the responder.
func (s *Session) gxi() []byte {
	if s.IsInitiator {
		return s.publicKey.Bytes()
	}
	return s.peerPublic.Bytes()
}

func (s *Session) gxr() []byte {
	if s.IsInitiator {
		return s.peerPublic.Bytes()
	}
	return s.publicKey.Bytes()
}

// mainModeHash computes HASH_I (computeHashI true) or HASH_R
// (computeHashI false) for Main and Aggressive Mode, which share one
// formula (RFC 2409 5.3/5.4):
//
//	HASH_I = prf(SKEYID, g^xi | g^xr | CKY-I | CKY-R | SAi_b | IDii_b)
//	HASH_R = prf(SKEYID, g^xr | g^xi | CKY-R | CKY-I | SAi_b | IDir_b)
//
// Which formula to compute is a property of the message being built or
// verified (an R2-bound message always carries HASH_I, an I3-bound one
// always carries HASH_R), not of which role this session plays -- gxi/gxr
// already resolve "whose public value is which" from IsInitiator.
func (s *Session) mainModeHash(computeHashI bool, idBody []byte) []byte {
	var data []byte
	if computeHashI {
		data = append(data, s.gxi()...)
		data = append(data, s.gxr()...)
		data = append(data, s.IkeSpiI...)
		data = append(data, s.IkeSpiR...)
	} else {
		data = append(data, s.gxr()...)
		data = append(data, s.gxi()...)
		data = append(data, s.IkeSpiR...)
		data = append(data, s.IkeSpiI...)
	}
	data = append(data, s.initSaBytes...)
	data = append(data, idBody...)
	return s.Oakley.Prf(s.skeyid, data)
}

// quickModeHash1 computes HASH(1) (RFC 2409 5.5):
//
//	HASH(1) = prf(SKEYID_a, M-ID | SA | Ni [| KE] [| IDci | IDcr])
func (s *Session) quickModeHash1(msgId uint32, rest []byte) []byte {
	data := append(msgIdBytes(msgId), rest...)
	return s.Oakley.Prf(s.skeyidA, data)
}

// quickModeHash2 computes HASH(2) (RFC 2409 5.5):
//
//	HASH(2) = prf(SKEYID_a, M-ID | Ni_b | SA | Nr [| KE] [| IDci | IDcr])
func (s *Session) quickModeHash2(msgId uint32, rest []byte) []byte {
	data := append(msgIdBytes(msgId), s.nonceI.Bytes()...)
	data = append(data, rest...)
	return s.Oakley.Prf(s.skeyidA, data)
}

// quickModeHash3 computes HASH(3), the optional third-message liveness
// proof (RFC 2409 5.5):
//
//	HASH(3) = prf(SKEYID_a, 0 | M-ID | Ni_b | Nr_b)
func (s *Session) quickModeHash3(msgId uint32) []byte {
	data := append([]byte{0}, msgIdBytes(msgId)...)
	data = append(data, s.nonceI.Bytes()...)
	data = append(data, s.nonceR.Bytes()...)
	return s.Oakley.Prf(s.skeyidA, data)
}

// informationalHash computes HASH(4), the Informational exchange's
// single integrity payload (RFC 2409 5.7):
//
//	HASH(4) = prf(SKEYID_a, M-ID | N/D payload body)
func (s *Session) informationalHash(msgId uint32, body []byte) []byte {
	data := append(msgIdBytes(msgId), body...)
	return s.Oakley.Prf(s.skeyidA, data)
}

func constantTimeEqualBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// verifyHash checks got (the HASH payload the peer sent) against want
// (the locally computed value) in constant time, returning an AUTHENTICATION_FAILED IkeError on
// mismatch.
func verifyHash(got, want []byte) error {
	if !constantTimeEqualBytes(got, want) {
		return protocol.ErrF(protocol.AUTHENTICATION_FAILED, "hash mismatch")
	}
	return nil
}
