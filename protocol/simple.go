package protocol

import (
	"math/big"

	"github.com/msgboxio/packets"
)

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Next Payload  |   RESERVED    |         Payload Length        |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                       Key Exchange Data                       ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

// KePayload carries the Diffie-Hellman public value. IKEv1 puts no
// group number inside the payload (unlike IKEv2's KE payload) -- the
// group is negotiated in the SA payload's Oakley attributes instead.
type KePayload struct {
	*PayloadHeader
	KeyData *big.Int
}

func (s *KePayload) Type() PayloadType { return PayloadTypeKE }
func (s *KePayload) Encode() []byte    { return s.KeyData.Bytes() }
func (s *KePayload) Decode(b []byte) error {
	s.KeyData = new(big.Int).SetBytes(b)
	return nil
}

// NoncePayload carries the Ni/Nr/Nonce used in key derivation and as
// the Quick Mode antireplay input.
type NoncePayload struct {
	*PayloadHeader
	Nonce *big.Int
}

func (s *NoncePayload) Type() PayloadType { return PayloadTypeNONCE }
func (s *NoncePayload) Encode() []byte    { return s.Nonce.Bytes() }
func (s *NoncePayload) Decode(b []byte) error {
	if len(b) < 8 || len(b) > 256 {
		return ErrF(PAYLOAD_MALFORMED, "nonce length %d out of range", len(b))
	}
	s.Nonce = new(big.Int).SetBytes(b)
	return nil
}

// HashPayload carries HASH(1)/HASH(2)/HASH(3) (Main/Aggressive Mode
// authentication and Quick Mode liveness) or HASH(4) (Informational
// integrity), all opaque bytes whose meaning depends on exchange and
// position -- the integrity gate interprets them, not this type.
type HashPayload struct {
	*PayloadHeader
	Data []byte
}

func (s *HashPayload) Type() PayloadType { return PayloadTypeHASH }
func (s *HashPayload) Encode() []byte    { return s.Data }
func (s *HashPayload) Decode(b []byte) error {
	s.Data = append([]byte{}, b...)
	return nil
}

// AuthMethod is the Oakley authentication method negotiated in the SA
// payload (RFC 2409 Appendix A).
type AuthMethod uint16

const (
	SHARED_KEY_MESSAGE_INTEGRITY_CODE AuthMethod = 1
	DSS_DIGITAL_SIGNATURE             AuthMethod = 2
	RSA_DIGITAL_SIGNATURE             AuthMethod = 3
	RSA_ENCRYPTION                    AuthMethod = 4
	RSA_ENCRYPTION_REVISED            AuthMethod = 5

	// XAUTH extends the base methods with xauth-combined variants
	// (draft-ietf-ipsec-isakmp-xauth); carried transparently.
	XAUTH_INIT_PSK AuthMethod = 65001
	XAUTH_RESP_PSK AuthMethod = 65002
)

// SigPayload carries a digital signature, used instead of HASH when the
// negotiated auth method is RSA/DSS signatures rather than PSK.
type SigPayload struct {
	*PayloadHeader
	Data []byte
}

func (s *SigPayload) Type() PayloadType { return PayloadTypeSIG }
func (s *SigPayload) Encode() []byte    { return s.Data }
func (s *SigPayload) Decode(b []byte) error {
	s.Data = append([]byte{}, b...)
	return nil
}

type CertEncoding uint8

const (
	CERT_X509_SIGNATURE CertEncoding = 4
	CERT_PKCS7          CertEncoding = 5
)

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Cert Encoding |                 Certificate Data              ~
   +-+-+-+-+-+-+-+-+
*/

// CertPayload is kept shape-only: real certificate parsing/validation
// is out of scope, but the envelope is decoded so the payload still
// chains and counts correctly.
type CertPayload struct {
	*PayloadHeader
	Encoding CertEncoding
	Data     []byte
}

func (s *CertPayload) Type() PayloadType { return PayloadTypeCERT }
func (s *CertPayload) Encode() []byte {
	b := []byte{uint8(s.Encoding)}
	return append(b, s.Data...)
}
func (s *CertPayload) Decode(b []byte) error {
	if len(b) < 1 {
		return ErrF(INVALID_CERT_ENCODING, "cert payload empty")
	}
	enc, _ := packets.ReadB8(b, 0)
	s.Encoding = CertEncoding(enc)
	s.Data = append([]byte{}, b[1:]...)
	return nil
}

// CertRequestPayload is likewise shape-only.
type CertRequestPayload struct {
	*PayloadHeader
	Encoding CertEncoding
	Data     []byte
}

func (s *CertRequestPayload) Type() PayloadType { return PayloadTypeCR }
func (s *CertRequestPayload) Encode() []byte {
	b := []byte{uint8(s.Encoding)}
	return append(b, s.Data...)
}
func (s *CertRequestPayload) Decode(b []byte) error {
	if len(b) < 1 {
		return ErrF(INVALID_CERT_ENCODING, "cert request payload empty")
	}
	enc, _ := packets.ReadB8(b, 0)
	s.Encoding = CertEncoding(enc)
	s.Data = append([]byte{}, b[1:]...)
	return nil
}

// VendorIdPayload is opaque bytes whose value the decoder matches
// against known fingerprints (fragmentation support, NAT-T drafts,
// nortel ...); that matching lives in the parent ike package's decoder,
// this type only carries the raw bytes.
type VendorIdPayload struct {
	*PayloadHeader
	Data []byte
}

func (s *VendorIdPayload) Type() PayloadType { return PayloadTypeVID }
func (s *VendorIdPayload) Encode() []byte    { return s.Data }
func (s *VendorIdPayload) Decode(b []byte) error {
	s.Data = append([]byte{}, b...)
	return nil
}

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Protocol ID   |   SPI Size    |          # of SPIs             |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                     Security Parameter Index(es)               ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

// DeletePayload names one or more SAs (by protocol + SPI list) the
// sender has removed; the informational handler tears down any
// matching local state.
type DeletePayload struct {
	*PayloadHeader
	ProtocolId ProtocolId
	Spis       [][]byte
}

func (s *DeletePayload) Type() PayloadType { return PayloadTypeD }

func (s *DeletePayload) Encode() []byte {
	spiSize := 0
	if len(s.Spis) > 0 {
		spiSize = len(s.Spis[0])
	}
	b := make([]byte, 4)
	packets.WriteB8(b, 0, uint8(s.ProtocolId))
	packets.WriteB8(b, 1, uint8(spiSize))
	packets.WriteB16(b, 2, uint16(len(s.Spis)))
	for _, spi := range s.Spis {
		b = append(b, spi...)
	}
	return b
}

func (s *DeletePayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(PAYLOAD_MALFORMED, "delete payload shorter than 4 bytes")
	}
	pid, _ := packets.ReadB8(b, 0)
	s.ProtocolId = ProtocolId(pid)
	spiSize, _ := packets.ReadB8(b, 1)
	numSpis, _ := packets.ReadB16(b, 2)
	b = b[4:]
	for i := 0; i < int(numSpis); i++ {
		if len(b) < int(spiSize) {
			return ErrF(PAYLOAD_MALFORMED, "delete payload spi list truncated")
		}
		s.Spis = append(s.Spis, append([]byte{}, b[:spiSize]...))
		b = b[spiSize:]
	}
	if len(b) != 0 {
		return ErrF(PAYLOAD_MALFORMED, "delete payload declared %d spis, trailing bytes remain", numSpis)
	}
	return nil
}
