package ikecrypto

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/msgboxio/ikev1/protocol"
)

// modpGroup is a finite-field (MODP) Diffie-Hellman group, the only
// kind Oakley groups 1/2/5/14 name. Parameters are the well-known
// constants from RFC 2409 Appendix E / RFC 3526.
type modpGroup struct {
	prime     *big.Int
	generator *big.Int
}

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("ikecrypto: bad group constant")
	}
	return n
}

// RFC 2409 Appendix E / RFC 3526; primes trimmed of whitespace, full
// width kept (768/1024/1536/2048 bit groups).
var groupParams = map[protocol.OakleyGroupId]*modpGroup{
	protocol.OAKLEY_GROUP_MODP_768: {
		prime: mustHex("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
			"129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519" +
			"B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7" +
			"EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F2" +
			"4117C4B1FE649286651ECE65381FFFFFFFFFFFFFFFF"),
		generator: big.NewInt(2),
	},
	protocol.OAKLEY_GROUP_MODP_1024: {
		prime: mustHex("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
			"129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519" +
			"B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7" +
			"EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F2" +
			"4117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55" +
			"D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED" +
			"529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E" +
			"36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9D" +
			"E2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A" +
			"8AACAA68FFFFFFFFFFFFFFFF"),
		generator: big.NewInt(2),
	},
	protocol.OAKLEY_GROUP_MODP_1536: {
		prime: mustHex("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
			"129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519" +
			"B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7" +
			"EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F2" +
			"4117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55" +
			"D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED" +
			"529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E" +
			"36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9D" +
			"E2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A" +
			"8AAAC42DAD33170D04507A33A85521ABDF1CBA64ECFB850458DBEF0" +
			"A8AEA71575D060C7DB3970F85A6E1E4C7ABF5AE8CDB0933D71E8C94" +
			"E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864D87602733EC86" +
			"A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E208E2" +
			"4FA074E5AB3143DB5BFCE0FD108E4B82D120A92108011A723C12A78" +
			"7E6D788719A10BDBA5B2699C327186AF4E23C1A946834B6150BDA25" +
			"83E9CA2AD44CE8DBBBC2DB04DE8EF92E8EFC141FBECAA6287C59474" +
			"E6BC05D99B2964FA090C3A2233BA186515BE7ED1F612970CEE2D7AF" +
			"B81BDD762170481CD0069127D5B05AA993B4EA988D8FDDC186FFB7D" +
			"C90A6C08F4DF435C934063199FFFFFFFFFFFFFFFF"),
		generator: big.NewInt(2),
	},
	protocol.OAKLEY_GROUP_MODP_2048: {
		prime: mustHex("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
			"129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519" +
			"B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7" +
			"EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F2" +
			"4117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55" +
			"D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED" +
			"529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E" +
			"36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9D" +
			"E2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A" +
			"8AAAC42DAD33170D04507A33A85521ABDF1CBA64ECFB850458DBEF0" +
			"A8AEA71575D060C7DB3970F85A6E1E4C7ABF5AE8CDB0933D71E8C94" +
			"E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864D87602733EC86" +
			"A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E208E2" +
			"4FA074E5AB3143DB5BFCE0FD108E4B82D120A92108011A723C12A78" +
			"7E6D788719A10BDBA5B2699C327186AF4E23C1A946834B6150BDA25" +
			"83E9CA2AD44CE8DBBBC2DB04DE8EF92E8EFC141FBECAA6287C59474" +
			"E6BC05D99B2964FA090C3A2233BA186515BE7ED1F612970CEE2D7AF" +
			"B81BDD762170481CD0069127D5B05AA993B4EA988D8FDDC186FFB7D" +
			"C90A6C08F4DF435C93402849236C3FAB4D27C7026C1D4DCB2602646" +
			"DEC9751E763DBA37BDF8FF9406AD9E530EE5DB382F413001AEB06A5" +
			"3ED9027D831179727B0865A8918DA3EDBEBCF9B14ED44CE6CBACED4" +
			"BB1BDB7F1447E6CC254B332051512BD7AF426FB8F401378CD2BF598" +
			"2F74EAA95F75FBE5B11075B06F02B3D51D9F5DDB0FFFFFFFFFFFFFF" +
			"FF"),
		generator: big.NewInt(2),
	},
}

// dhGroup is the keying collaborator for one negotiated Oakley group.
type dhGroup struct {
	id     protocol.OakleyGroupId
	params *modpGroup
}

func newDhGroup(id protocol.OakleyGroupId) (*dhGroup, bool) {
	p, ok := groupParams[id]
	if !ok {
		return nil, false
	}
	return &dhGroup{id: id, params: p}, true
}

// private generates a random exponent in [2, prime-2].
func (g *dhGroup) private(rnd io.Reader) (*big.Int, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	max := new(big.Int).Sub(g.params.prime, big.NewInt(3))
	n, err := rand.Int(rnd, max)
	if err != nil {
		return nil, err
	}
	return n.Add(n, big.NewInt(2)), nil
}

// public computes g^priv mod p.
func (g *dhGroup) public(priv *big.Int) *big.Int {
	return new(big.Int).Exp(g.params.generator, priv, g.params.prime)
}

// diffieHellman computes their^priv mod p, the shared secret.
func (g *dhGroup) diffieHellman(their, priv *big.Int) (*big.Int, error) {
	if their.Cmp(big.NewInt(1)) <= 0 || their.Cmp(g.params.prime) >= 0 {
		return nil, protocol.ErrF(protocol.INVALID_KEY_INFORMATION, "peer key exchange value out of range")
	}
	return new(big.Int).Exp(their, priv, g.params.prime), nil
}
