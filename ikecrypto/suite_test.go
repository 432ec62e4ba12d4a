package ikecrypto

import (
	"testing"

	"github.com/msgboxio/ikev1/protocol"
	"github.com/stretchr/testify/require"
)

func oakleyTransform() *protocol.SaTransform {
	return &protocol.SaTransform{
		Number:      1,
		TransformId: 1,
		Attributes: []*protocol.TransformAttribute{
			{Type: uint16(protocol.OAKLEY_ENCRYPTION_ALGORITHM), Value: uint16(protocol.OAKLEY_AES_CBC)},
			{Type: uint16(protocol.OAKLEY_HASH_ALGORITHM), Value: uint16(protocol.OAKLEY_SHA)},
			{Type: uint16(protocol.OAKLEY_GROUP_DESCRIPTION), Value: uint16(protocol.OAKLEY_GROUP_MODP_1024)},
			{Type: uint16(protocol.OAKLEY_KEY_LENGTH), Value: 128},
		},
	}
}

func TestNewOakleySuite(t *testing.T) {
	s, err := NewOakleySuite(oakleyTransform(), nil)
	require.NoError(t, err)
	require.Equal(t, 16, s.KeyLen)
	require.Equal(t, protocol.OAKLEY_GROUP_MODP_1024, s.GroupId)
}

func TestOakleySuiteDiffieHellman(t *testing.T) {
	s, err := NewOakleySuite(oakleyTransform(), nil)
	require.NoError(t, err)

	aPriv, err := s.GeneratePrivate()
	require.NoError(t, err)
	aPub := s.Public(aPriv)

	bPriv, err := s.GeneratePrivate()
	require.NoError(t, err)
	bPub := s.Public(bPriv)

	aShared, err := s.SharedSecret(bPub, aPriv)
	require.NoError(t, err)
	bShared, err := s.SharedSecret(aPub, bPriv)
	require.NoError(t, err)
	require.Equal(t, aShared, bShared)
}

func TestOakleySuiteMissingAttribute(t *testing.T) {
	tr := oakleyTransform()
	tr.Attributes = tr.Attributes[:1]
	_, err := NewOakleySuite(tr, nil)
	require.Error(t, err)
}

func TestBlockCipherEncryptDecryptRoundTrip(t *testing.T) {
	s, err := NewOakleySuite(oakleyTransform(), nil)
	require.NoError(t, err)
	key := make([]byte, s.KeyLen)
	iv := make([]byte, s.Cipher.BlockLen)
	clear := []byte("quick mode payload bytes")

	enc, err := s.Cipher.Encrypt(clear, key, iv)
	require.NoError(t, err)
	dec, err := s.Cipher.Decrypt(enc, key, iv)
	require.NoError(t, err)
	require.Equal(t, clear, dec)
}

func ipsecTransform() *protocol.SaTransform {
	return &protocol.SaTransform{
		Number:      1,
		TransformId: uint8(protocol.ESP_AES),
		Attributes: []*protocol.TransformAttribute{
			{Type: uint16(protocol.IPSEC_KEY_LENGTH), Value: 128},
			{Type: uint16(protocol.IPSEC_AUTH_ALGORITHM), Value: uint16(protocol.IPSEC_AUTH_HMAC_SHA2_256)},
		},
	}
}

func TestNewIpsecSuite(t *testing.T) {
	s, err := NewIpsecSuite(ipsecTransform(), nil)
	require.NoError(t, err)
	require.Equal(t, 16, s.KeyLen)
	require.Equal(t, 16, s.MacLen)
	mac := s.Mac([]byte("key"), []byte("data"))
	require.Len(t, mac, 16)
}
