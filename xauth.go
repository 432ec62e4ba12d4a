package ike

import (
	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

func init() {
	microcode.RegisterHandler(microcode.HandlerXauth, handleXauth)
}

// SetXauthCredentials configures the username/password this Session
// answers a XAUTH server's CFG_REQUEST with, when acting as a client
// (Connection.XauthClient).
func (s *Session) SetXauthCredentials(username, password string) {
	s.xauthUser, s.xauthPassword = username, password
}

func cfgAttr(t protocol.CfgAttributeType, data []byte) *protocol.CfgAttribute {
	return &protocol.CfgAttribute{Type: uint16(t), Data: data}
}

func cfgAttrString(cfg *protocol.CfgPayload, t protocol.CfgAttributeType) string {
	for _, a := range cfg.Attributes {
		if protocol.CfgAttributeType(a.Type) == t {
			return string(a.Data)
		}
	}
	return ""
}

// handleXauth implements the legacy extended-authentication side
// channel (draft-ietf-ipsec-isakmp-xauth), carried as CfgPayload
// messages over the Transaction exchange: a server pushes a
// CFG_REQUEST asking for a username and password, the client answers
// with a CFG_REPLY, and the server closes the loop with a CFG_SET
// carrying XAUTH_STATUS.
func handleXauth(ex microcode.Exchange) microcode.Result {
	sx := ex.(*sessionExchange)
	s, m := sx.session, sx.msg

	switch sx.Transition().FromState {
	case protocol.XAUTH_R0:
		return xauthR0(s, sx, m)
	case protocol.XAUTH_I0:
		return xauthI0(s, sx, m)
	case protocol.XAUTH_R1:
		return xauthR1(s, sx, m)
	default:
		return microcode.ResultFail(protocol.INVALID_EXCHANGE_TYPE)
	}
}

// xauthR0 is the server's reaction to the client's CFG_REPLY carrying a
// username and password: check them and push back XAUTH_STATUS.
func xauthR0(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	cfg, ok := m.Payloads.First(protocol.PayloadTypeATTR).(*protocol.CfgPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	user := cfgAttrString(cfg, protocol.XAUTH_USER_NAME)
	pass := cfgAttrString(cfg, protocol.XAUTH_USER_PASSWORD)

	ok = s.Conn.Config.XauthAuthenticator != nil && s.Conn.Config.XauthAuthenticator(user, pass)
	log.Infof("%sXAUTH login for %q: %v", s.Tag(), user, ok)

	status := uint16(0)
	if ok {
		status = 1
	}
	reply := &protocol.CfgPayload{
		PayloadHeader: &protocol.PayloadHeader{},
		MsgType:       protocol.ISAKMP_CFG_SET,
		Identifier:    cfg.Identifier,
		Attributes:    []*protocol.CfgAttribute{{Type: uint16(protocol.XAUTH_STATUS), Value: status}},
	}
	sx.AddPayload(reply)
	return microcode.ResultOk()
}

// xauthI0 is the client's reaction to the server's CFG_REQUEST: answer
// with whatever credentials SetXauthCredentials configured.
func xauthI0(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	cfg, ok := m.Payloads.First(protocol.PayloadTypeATTR).(*protocol.CfgPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	reply := &protocol.CfgPayload{
		PayloadHeader: &protocol.PayloadHeader{},
		MsgType:       protocol.ISAKMP_CFG_REPLY,
		Identifier:    cfg.Identifier,
		Attributes: []*protocol.CfgAttribute{
			cfgAttr(protocol.XAUTH_USER_NAME, []byte(s.xauthUser)),
			cfgAttr(protocol.XAUTH_USER_PASSWORD, []byte(s.xauthPassword)),
		},
	}
	sx.AddPayload(reply)
	return microcode.ResultOk()
}

// xauthR1 is the server's self-loop once it has pushed XAUTH_STATUS:
// the client's CFG_ACK, if it sends one, just ends the exchange.
func xauthR1(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	log.Infof("%sXAUTH exchange acknowledged", s.Tag())
	return microcode.ResultOk()
}
