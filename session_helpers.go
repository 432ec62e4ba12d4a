package ike

import (
	kitlog "github.com/go-kit/kit/log"

	"github.com/msgboxio/ikev1/ikecrypto"
	"github.com/msgboxio/ikev1/protocol"
)

// oakleySuiteFor resolves an accepted Phase 1 transform into live
// keying/cipher collaborators for this session.
func (s *Session) oakleySuiteFor(tr *protocol.SaTransform) (*ikecrypto.OakleySuite, error) {
	var logger kitlog.Logger
	if s.logger != nil {
		logger = s.logger
	}
	return ikecrypto.NewOakleySuite(tr, logger)
}

// ipsecSuiteFor resolves an accepted Phase 2 (ESP) transform.
func (s *Session) ipsecSuiteFor(tr *protocol.SaTransform) (*ikecrypto.IpsecSuite, error) {
	return ikecrypto.NewIpsecSuite(tr, s.logger)
}

// beginKeyExchange generates this session's Diffie-Hellman keypair
// against the negotiated Oakley group.
func (s *Session) beginKeyExchange() error {
	priv, err := s.Oakley.GeneratePrivate()
	if err != nil {
		return err
	}
	s.privateKey = priv
	s.publicKey = s.Oakley.Public(priv)
	return nil
}

// prepareSharedSecretIfNeeded synchronously derives SKEYID from this
// message's KE/Nonce payloads when the current state requires it
// before the message's HASH can even be checked. Every Main Mode
// transition defers its HASH to a later message once SKEYID already
// exists (see main_mode.go's suspend-then-continue handling); only
// Aggressive Mode's AGGR_I1 carries a peer's half of the key exchange
// and that peer's HASH in the very same message, so the initiator has
// no earlier point at which to have derived it.
func (s *Session) prepareSharedSecretIfNeeded(m *Message) error {
	if s.State != protocol.AGGR_I1 || s.skeyid != nil {
		return nil
	}
	ke, ok := m.Payloads.First(protocol.PayloadTypeKE).(*protocol.KePayload)
	if !ok {
		return protocol.ErrF(protocol.INVALID_KEY_INFORMATION, "missing KE payload")
	}
	nonce, ok := m.Payloads.First(protocol.PayloadTypeNONCE).(*protocol.NoncePayload)
	if !ok {
		return protocol.ErrF(protocol.PAYLOAD_MALFORMED, "missing NONCE payload")
	}
	s.nonceR = nonce.Nonce
	s.peerPublic = ke.KeyData
	s.IkeSpiR = m.IkeHeader.RcookieSpi
	if s.demux != nil {
		s.demux.BindResponderCookie(s)
	}
	shared, err := s.Oakley.SharedSecret(s.peerPublic, s.privateKey)
	if err != nil {
		return protocol.ErrF(protocol.INVALID_KEY_INFORMATION, "shared secret: %v", err)
	}
	s.installSharedSecret(shared)
	return nil
}

// initialTransactionState picks the from_state a never-before-seen
// Transaction exchange message-id should be treated as belonging to.
// The Connection's XAUTH/Mode-Config server/client role flags are
// authoritative when set, matching deployment policy rather than
// guessing from wire content; absent any role flag (a bare Connection,
// e.g. in a test), the lone CfgPayload's first attribute type is
// inspected instead -- every XAUTH attribute lives in its own 16520+
// range, so that's enough to tell the two exchanges apart.
func (s *Session) initialTransactionState(m *Message) protocol.FromState {
	c := s.Conn
	switch {
	case c.XauthServer:
		return protocol.XAUTH_R0
	case c.XauthClient:
		return protocol.XAUTH_I0
	case c.ModeCfgServer:
		return protocol.MODE_CFG_R0
	case c.ModeCfgClient:
		return protocol.MODE_CFG_I1
	}
	if cfg, ok := m.Payloads.First(protocol.PayloadTypeATTR).(*protocol.CfgPayload); ok {
		for _, a := range cfg.Attributes {
			if isXauthAttribute(protocol.CfgAttributeType(a.Type)) {
				if s.IsInitiator {
					return protocol.XAUTH_I0
				}
				return protocol.XAUTH_R0
			}
			break
		}
	}
	if s.IsInitiator {
		return protocol.MODE_CFG_I1
	}
	return protocol.MODE_CFG_R0
}

func isXauthAttribute(t protocol.CfgAttributeType) bool {
	return t >= protocol.XAUTH_TYPE && t <= protocol.XAUTH_ANSWER
}
