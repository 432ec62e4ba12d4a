package ikecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	camellia "github.com/dgryski/go-camellia"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/msgboxio/ikev1/protocol"
)

type macFunc func(key, data []byte) []byte
type prfFunc func(key, data []byte) []byte
type cipherCtor func(key, iv []byte, isRead bool) cipher.BlockMode

func hmacFunc(h func() hash.Hash, truncTo int) macFunc {
	return func(key, data []byte) []byte {
		m := hmac.New(h, key)
		m.Write(data)
		sum := m.Sum(nil)
		if truncTo > 0 && truncTo < len(sum) {
			return sum[:truncTo]
		}
		return sum
	}
}

func prfFor(h func() hash.Hash) prfFunc {
	return func(key, data []byte) []byte {
		m := hmac.New(h, key)
		m.Write(data)
		return m.Sum(nil)
	}
}

// prfByHash resolves the PRF used for both keying material derivation
// and HASH payload computation from the negotiated Oakley hash
// algorithm; IKEv1, unlike IKEv2, has no separate PRF transform type,
// it reuses the HASH_ALGORITHM attribute for both (RFC 2409 Section 5).
func prfByHash(id protocol.OakleyHashId) (prfLen int, fn prfFunc, ok bool) {
	switch id {
	case protocol.OAKLEY_MD5:
		return md5.Size, prfFor(md5.New), true
	case protocol.OAKLEY_SHA:
		return sha1.Size, prfFor(sha1.New), true
	case protocol.OAKLEY_SHA2_256:
		return sha256.Size, prfFor(sha256.New), true
	case protocol.OAKLEY_SHA2_384:
		return sha512.Size384, prfFor(sha512.New384), true
	case protocol.OAKLEY_SHA2_512:
		return sha512.Size, prfFor(sha512.New), true
	default:
		return 0, nil, false
	}
}

func macByIpsecAuth(id protocol.IpsecAuthId) (macLen, macKeyLen int, fn macFunc, ok bool) {
	switch id {
	case protocol.IPSEC_AUTH_HMAC_MD5:
		return 12, md5.Size, hmacFunc(md5.New, 12), true
	case protocol.IPSEC_AUTH_HMAC_SHA:
		return 12, sha1.Size, hmacFunc(sha1.New, 12), true
	case protocol.IPSEC_AUTH_HMAC_SHA2_256:
		return 16, sha256.Size, hmacFunc(sha256.New, 16), true
	case protocol.IPSEC_AUTH_HMAC_SHA2_384:
		return 24, sha512.Size384, hmacFunc(sha512.New384, 24), true
	case protocol.IPSEC_AUTH_HMAC_SHA2_512:
		return 32, sha512.Size, hmacFunc(sha512.New, 32), true
	default:
		return 0, 0, nil, false
	}
}

func blockCipherByOakleyEncr(id protocol.OakleyEncrId) (blockLen int, ctor cipherCtor, ok bool) {
	switch id {
	case protocol.OAKLEY_AES_CBC:
		return aes.BlockSize, cbcAES, true
	case protocol.OAKLEY_CAMELLIA_CBC:
		return camellia.BlockSize, cbcCamellia, true
	default:
		return 0, nil, false
	}
}

func blockCipherByEspTransform(id protocol.EspTransformId) (blockLen int, ctor cipherCtor, ok bool) {
	switch id {
	case protocol.ESP_AES:
		return aes.BlockSize, cbcAES, true
	case protocol.ESP_CAMELLIA:
		return camellia.BlockSize, cbcCamellia, true
	case protocol.ESP_NULL:
		return 1, nil, true
	default:
		return 0, nil, false
	}
}

func cbcAES(key, iv []byte, isRead bool) cipher.BlockMode {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil
	}
	if isRead {
		return cipher.NewCBCDecrypter(block, iv)
	}
	return cipher.NewCBCEncrypter(block, iv)
}

func cbcCamellia(key, iv []byte, isRead bool) cipher.BlockMode {
	block, err := camellia.New(key)
	if err != nil {
		return nil
	}
	if isRead {
		return cipher.NewCBCDecrypter(block, iv)
	}
	return cipher.NewCBCEncrypter(block, iv)
}

// BlockCipher wraps a negotiated Oakley/ESP cipher. Unlike IKEv2's
// per-message random IV, IKEv1 chains IVs across a Phase-1 exchange:
// the caller supplies the IV to use (the saved `iv` or `new_iv`)
// rather than one being generated and prefixed here.
type BlockCipher struct {
	BlockLen int
	ctor     cipherCtor
	logger   kitlog.Logger
}

// Decrypt decrypts ciphertext into a newly allocated buffer (ciphertext
// itself is not modified) using iv, returning the
// plaintext with PKCS-style trailing pad-length byte stripped. The
// null cipher (ESP_NULL / OAKLEY with no encryption negotiated, used
// only in test fixtures) returns ciphertext unchanged.
func (c *BlockCipher) Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if c.ctor == nil {
		return ciphertext, nil
	}
	mode := c.ctor(key, iv, true)
	if mode == nil {
		return nil, protocol.ErrF(protocol.INVALID_FLAGS, "could not initialize cipher")
	}
	if len(ciphertext)%mode.BlockSize() != 0 {
		return nil, protocol.ErrF(protocol.PAYLOAD_MALFORMED, "ciphertext not a multiple of block size")
	}
	clear := make([]byte, len(ciphertext))
	mode.CryptBlocks(clear, ciphertext)
	if c.logger != nil {
		level.Debug(c.logger).Log("msg", "decrypted block", "len", len(clear))
	}
	if len(clear) == 0 {
		return clear, nil
	}
	padlen := int(clear[len(clear)-1]) + 1
	if padlen > len(clear) || padlen > mode.BlockSize() {
		return nil, protocol.ErrF(protocol.PAYLOAD_MALFORMED, "pad length larger than block size")
	}
	return clear[:len(clear)-padlen], nil
}

// Encrypt pads clear to a block boundary (PKCS-style trailing
// pad-length byte) and encrypts it into a newly allocated buffer using
// iv.
func (c *BlockCipher) Encrypt(clear, key, iv []byte) ([]byte, error) {
	if c.ctor == nil {
		return clear, nil
	}
	mode := c.ctor(key, iv, false)
	if mode == nil {
		return nil, protocol.ErrF(protocol.INVALID_FLAGS, "could not initialize cipher")
	}
	padded := padTo(clear, mode.BlockSize())
	out := make([]byte, len(padded))
	mode.CryptBlocks(out, padded)
	if c.logger != nil {
		level.Debug(c.logger).Log("msg", "encrypted block", "len", len(out))
	}
	return out, nil
}

func padTo(clear []byte, blockSize int) []byte {
	padlen := blockSize - len(clear)%blockSize
	pad := make([]byte, padlen)
	pad[padlen-1] = byte(padlen - 1)
	return append(append([]byte{}, clear...), pad...)
}

// randomIV returns a fresh IV of the cipher's block length. Nothing in
// the engine calls it: `phase1_iv` and every later IV are derived
// deterministically (the root package's phase1Iv/exchangeIv).
func randomIV(blockLen int) ([]byte, error) {
	iv := make([]byte, blockLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	return iv, nil
}
