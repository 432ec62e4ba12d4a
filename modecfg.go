package ike

import (
	"net"

	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

func init() {
	microcode.RegisterHandler(microcode.HandlerModeCfg, handleModeCfg)
}

// handleModeCfg implements ISAKMP Mode-Config (draft-dukes-ike-mode-
// cfg): a server pushes internal-network attributes (tunnel address,
// netmask, DNS) in answer to a client's CFG_REQUEST.
func handleModeCfg(ex microcode.Exchange) microcode.Result {
	sx := ex.(*sessionExchange)
	s, m := sx.session, sx.msg

	switch sx.Transition().FromState {
	case protocol.MODE_CFG_R0:
		return modeCfgR0(s, sx, m)
	case protocol.MODE_CFG_I1:
		return modeCfgI1(s, sx, m)
	case protocol.MODE_CFG_R2:
		return modeCfgR2(s, sx, m)
	default:
		return microcode.ResultFail(protocol.INVALID_EXCHANGE_TYPE)
	}
}

// modeCfgR0 is the server's reaction to a client's CFG_REQUEST: answer
// with whatever InternalAddress this Connection's policy configures.
func modeCfgR0(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	cfg, ok := m.Payloads.First(protocol.PayloadTypeATTR).(*protocol.CfgPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	reply := &protocol.CfgPayload{
		PayloadHeader: &protocol.PayloadHeader{},
		MsgType:       protocol.ISAKMP_CFG_REPLY,
		Identifier:    cfg.Identifier,
		Attributes:    internalAddressAttrs(s.Conn.Config.InternalAddress),
	}
	sx.AddPayload(reply)
	return microcode.ResultOk()
}

// modeCfgI1 is the client's reaction to the server's CFG_REPLY: record
// the assigned internal address for later use and acknowledge it.
func modeCfgI1(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	cfg, ok := m.Payloads.First(protocol.PayloadTypeATTR).(*protocol.CfgPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	s.assignedAddress = parseInternalAddressAttrs(cfg.Attributes)
	log.Infof("%sMode-Config assigned %+v", s.Tag(), s.assignedAddress)

	ack := &protocol.CfgPayload{
		PayloadHeader: &protocol.PayloadHeader{},
		MsgType:       protocol.ISAKMP_CFG_ACK,
		Identifier:    cfg.Identifier,
	}
	sx.AddPayload(ack)
	return microcode.ResultOk()
}

// modeCfgR2 is the server's self-loop after the first CFG_REQUEST/
// CFG_REPLY round trip: a client's CFG_ACK, or (RFC draft allows a
// server to push unsolicited CFG_SET updates) a further request, lands
// here and is answered the same way as the initial request.
func modeCfgR2(s *Session, sx *sessionExchange, m *Message) microcode.Result {
	cfg, ok := m.Payloads.First(protocol.PayloadTypeATTR).(*protocol.CfgPayload)
	if !ok {
		return microcode.ResultFail(protocol.PAYLOAD_MALFORMED)
	}
	if cfg.MsgType == protocol.ISAKMP_CFG_ACK {
		log.Infof("%sMode-Config acknowledged", s.Tag())
		return microcode.ResultOk()
	}
	reply := &protocol.CfgPayload{
		PayloadHeader: &protocol.PayloadHeader{},
		MsgType:       protocol.ISAKMP_CFG_REPLY,
		Identifier:    cfg.Identifier,
		Attributes:    internalAddressAttrs(s.Conn.Config.InternalAddress),
	}
	sx.AddPayload(reply)
	return microcode.ResultOk()
}

func internalAddressAttrs(addr *InternalAddress) []*protocol.CfgAttribute {
	if addr == nil {
		return nil
	}
	var attrs []*protocol.CfgAttribute
	if addr.Address != nil {
		attrs = append(attrs, cfgAttr(protocol.INTERNAL_IP4_ADDRESS, addr.Address.To4()))
	}
	if addr.Netmask != nil {
		attrs = append(attrs, cfgAttr(protocol.INTERNAL_IP4_NETMASK, addr.Netmask.To4()))
	}
	if addr.Dns != nil {
		attrs = append(attrs, cfgAttr(protocol.INTERNAL_IP4_DNS, addr.Dns.To4()))
	}
	return attrs
}

func parseInternalAddressAttrs(attrs []*protocol.CfgAttribute) *InternalAddress {
	addr := &InternalAddress{}
	for _, a := range attrs {
		switch protocol.CfgAttributeType(a.Type) {
		case protocol.INTERNAL_IP4_ADDRESS:
			addr.Address = net.IP(append([]byte{}, a.Data...))
		case protocol.INTERNAL_IP4_NETMASK:
			addr.Netmask = net.IP(append([]byte{}, a.Data...))
		case protocol.INTERNAL_IP4_DNS:
			addr.Dns = net.IP(append([]byte{}, a.Data...))
		}
	}
	return addr
}
