package ike

import (
	"math/big"

	"github.com/msgboxio/ikev1/protocol"
)

// installSharedSecret derives SKEYID and the three SKEYID_{d,a,e}
// subkeys from the completed Diffie-Hellman exchange (RFC 2409
// Appendix B, pre-shared-key authentication):
//
//	SKEYID   = prf(psk, Ni_b | Nr_b)
//	SKEYID_d = prf(SKEYID, g^xy | CKY-I | CKY-R | 0)
//	SKEYID_a = prf(SKEYID, SKEYID_d | g^xy | CKY-I | CKY-R | 1)
//	SKEYID_e = prf(SKEYID, SKEYID_a | g^xy | CKY-I | CKY-R | 2)
//
// SKEYID_e is expanded, if the negotiated cipher's key is longer than
// one PRF output, by iteratively hashing forward (RFC 2409 Appendix B's
// Ka/Kb/... construction) until enough bytes are available.
func (s *Session) installSharedSecret(shared *big.Int) {
	gxy := shared.Bytes()

	nonces := append(append([]byte{}, s.nonceI.Bytes()...), s.nonceR.Bytes()...)
	s.skeyid = s.Oakley.Prf(s.Conn.Config.PresharedKey, nonces)

	cookies := append(append([]byte{}, s.IkeSpiI...), s.IkeSpiR...)

	d := append(append([]byte{}, gxy...), cookies...)
	d = append(d, 0)
	s.skeyidD = s.Oakley.Prf(s.skeyid, d)

	a := append(append([]byte{}, s.skeyidD...), gxy...)
	a = append(a, cookies...)
	a = append(a, 1)
	s.skeyidA = s.Oakley.Prf(s.skeyid, a)

	e := append(append([]byte{}, s.skeyidA...), gxy...)
	e = append(e, cookies...)
	e = append(e, 2)
	s.skeyidE = expandKey(s.Oakley.Prf, s.skeyid, e, s.Oakley.KeyLen)
}

// quickModeKeymat derives one direction's ESP keying material (RFC 2407
// section 4, no PFS group negotiated -- the common case this engine
// supports):
//
//	KEYMAT = prf+(SKEYID_d, protocol | SPI | Ni_b | Nr_b)
//
// prf+ is RFC 2409 Appendix B's same iterative expansion installSharedSecret
// uses for SKEYID_e, just reseeded per child SA rather than per Phase 1 SA.
func (s *Session) quickModeKeymat(prot protocol.ProtocolId, spi protocol.Spi, n int) []byte {
	seed := append([]byte{byte(prot)}, spi...)
	seed = append(seed, s.nonceI.Bytes()...)
	seed = append(seed, s.nonceR.Bytes()...)
	return expandKey(s.Oakley.Prf, s.skeyidD, seed, n)
}

// expandKey runs RFC 2409 Appendix B's key-expansion construction:
// K1 = prf(skeyid, seed), Ki+1 = prf(skeyid, Ki) appended until at
// least n bytes are available, then truncated to exactly n.
func expandKey(prf func(key, data []byte) []byte, skeyid, seed []byte, n int) []byte {
	k := prf(skeyid, seed)
	out := append([]byte{}, k...)
	for len(out) < n {
		k = prf(skeyid, k)
		out = append(out, k...)
	}
	return out[:n]
}
