package ikecrypto

import (
	"fmt"
	"math/big"

	kitlog "github.com/go-kit/kit/log"

	"github.com/msgboxio/ikev1/protocol"
)

// OakleySuite is the negotiated Phase-1 cryptographic parameter set:
// one accepted Oakley transform's encryption/hash/DH group, resolved
// into live collaborators. The transform's lifetime attributes are not
// read.
type OakleySuite struct {
	Cipher    *BlockCipher
	KeyLen    int
	PrfLen    int
	prf       prfFunc
	dh        *dhGroup
	GroupId   protocol.OakleyGroupId
}

// NewOakleySuite resolves an accepted Phase-1 transform (and its
// attributes) into live keying/cipher collaborators.
func NewOakleySuite(tr *protocol.SaTransform, logger kitlog.Logger) (*OakleySuite, error) {
	s := &OakleySuite{}
	encrAttr, haveEncr := tr.Attr(uint16(protocol.OAKLEY_ENCRYPTION_ALGORITHM))
	hashAttr, haveHash := tr.Attr(uint16(protocol.OAKLEY_HASH_ALGORITHM))
	groupAttr, haveGroup := tr.Attr(uint16(protocol.OAKLEY_GROUP_DESCRIPTION))
	keyLenAttr, haveKeyLen := tr.Attr(uint16(protocol.OAKLEY_KEY_LENGTH))
	if !haveEncr || !haveHash || !haveGroup {
		return nil, fmt.Errorf("ikecrypto: incomplete oakley transform, missing encr/hash/group attribute")
	}
	blockLen, ctor, ok := blockCipherByOakleyEncr(protocol.OakleyEncrId(encrAttr.Value))
	if !ok {
		return nil, fmt.Errorf("ikecrypto: unsupported oakley encryption algorithm %d", encrAttr.Value)
	}
	s.Cipher = &BlockCipher{BlockLen: blockLen, ctor: ctor, logger: logger}
	s.KeyLen = blockLen
	if haveKeyLen {
		s.KeyLen = int(keyLenAttr.Value) / 8
	}
	prfLen, prf, ok := prfByHash(protocol.OakleyHashId(hashAttr.Value))
	if !ok {
		return nil, fmt.Errorf("ikecrypto: unsupported oakley hash algorithm %d", hashAttr.Value)
	}
	s.PrfLen, s.prf = prfLen, prf
	dh, ok := newDhGroup(protocol.OakleyGroupId(groupAttr.Value))
	if !ok {
		return nil, fmt.Errorf("ikecrypto: unsupported oakley group %d", groupAttr.Value)
	}
	s.dh = dh
	s.GroupId = protocol.OakleyGroupId(groupAttr.Value)
	return s, nil
}

// Prf runs the negotiated keyed hash, used both for SKEYID derivation
// and HASH(1/2/3) payload computation -- IKEv1 has no separate PRF
// transform, the HASH_ALGORITHM attribute serves both roles (RFC 2409
// Section 5).
func (s *OakleySuite) Prf(key, data []byte) []byte { return s.prf(key, data) }

// GeneratePrivate/Public/SharedSecret expose the resolved DH group to
// the session's key-exchange sequence (tkm-equivalent code in the ike
// package), keeping the group arithmetic itself out of that package.
func (s *OakleySuite) GeneratePrivate() (*big.Int, error) {
	return s.dh.private(nil)
}
func (s *OakleySuite) Public(priv *big.Int) *big.Int {
	return s.dh.public(priv)
}
func (s *OakleySuite) SharedSecret(their, priv *big.Int) (*big.Int, error) {
	return s.dh.diffieHellman(their, priv)
}

// IpsecSuite is the negotiated Phase-2 (ESP) cryptographic parameter
// set, the IPsec-DOI analogue of OakleySuite.
type IpsecSuite struct {
	Cipher    *BlockCipher
	KeyLen    int
	MacLen    int
	MacKeyLen int
	mac       macFunc
}

// NewIpsecSuite resolves an accepted Phase-2 ESP transform into live
// cipher/mac collaborators.
func NewIpsecSuite(tr *protocol.SaTransform, logger kitlog.Logger) (*IpsecSuite, error) {
	s := &IpsecSuite{}
	blockLen, ctor, ok := blockCipherByEspTransform(protocol.EspTransformId(tr.TransformId))
	if !ok {
		return nil, fmt.Errorf("ikecrypto: unsupported esp transform %d", tr.TransformId)
	}
	s.Cipher = &BlockCipher{BlockLen: blockLen, ctor: ctor, logger: logger}
	s.KeyLen = blockLen
	if kl, ok := tr.Attr(uint16(protocol.IPSEC_KEY_LENGTH)); ok {
		s.KeyLen = int(kl.Value) / 8
	}
	if authAttr, ok := tr.Attr(uint16(protocol.IPSEC_AUTH_ALGORITHM)); ok {
		macLen, macKeyLen, mac, supported := macByIpsecAuth(protocol.IpsecAuthId(authAttr.Value))
		if !supported {
			return nil, fmt.Errorf("ikecrypto: unsupported ipsec auth algorithm %d", authAttr.Value)
		}
		s.MacLen, s.MacKeyLen, s.mac = macLen, macKeyLen, mac
	}
	return s, nil
}

func (s *IpsecSuite) Mac(key, data []byte) []byte {
	if s.mac == nil {
		return nil
	}
	return s.mac(key, data)
}
