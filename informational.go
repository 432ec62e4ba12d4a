package ike

import (
	"crypto/rand"
	"encoding/binary"
	"net"

	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

func init() {
	microcode.RegisterHandler(microcode.HandlerInformational, handleInformational)
}

// randomMsgId returns a random nonzero message-id, the value every
// Informational and Quick Mode exchange picks for itself (RFC 2408
// 3.1): zero is reserved for Phase 1.
func randomMsgId() uint32 {
	var b [4]byte
	for {
		rand.Read(b[:])
		id := binary.BigEndian.Uint32(b[:])
		if id != 0 {
			return id
		}
	}
}

// sendNotify builds and sends a one-payload Informational exchange
// carrying a Notify message, encrypted under the Phase 1 SA once its
// keys exist (Oakley negotiated and SKEYID_e derived) and sent in the
// clear otherwise -- the
// only case for a plaintext Informational is a decode-time failure
// before Main/Aggressive Mode has completed.
func (s *Session) sendNotify(nt protocol.NotificationType, spi []byte) {
	msgId := randomMsgId()
	n := &protocol.NotifyPayload{
		PayloadHeader:    &protocol.PayloadHeader{},
		ProtocolId:       protocol.PROTO_ISAKMP,
		NotificationType: nt,
		Spi:              spi,
	}
	chain := protocol.NewPayloadChain()
	chain.Add(n)

	h := &protocol.IkeHeader{
		IcookieSpi: s.IkeSpiI, RcookieSpi: s.IkeSpiR,
		MajorVersion: protocol.ISAKMP_MAJOR_VERSION, MinorVersion: protocol.ISAKMP_MINOR_VERSION,
		ExchangeType: protocol.EXCHANGE_INFO, MsgId: msgId,
	}
	encrypted := s.Oakley != nil && s.skeyidE != nil
	reply, err := s.encodeReply(h, chain, encrypted)
	if err != nil {
		log.Warningf("%sfailed to build notify: %v", s.Tag(), err)
		return
	}
	s.send(reply)
}

// handleInformational processes one decoded Informational exchange
// message: R_U_THERE/R_U_THERE_ACK dead-peer-detection probes are
// answered or simply noted as liveness evidence; CISCO_LOAD_BALANCE
// redirects the shared Connection so every sibling SA's next message
// goes to the new endpoint; Delete payloads tear down the SAs they
// name; anything else is logged and ignored, per RFC 2408's "a peer
// must accept but need not act on every notification type" latitude.
func handleInformational(ex microcode.Exchange) microcode.Result {
	sx := ex.(*sessionExchange)
	s := sx.session
	m := sx.msg

	for _, p := range m.Payloads.All(protocol.PayloadTypeN) {
		n := p.(*protocol.NotifyPayload)
		switch {
		case n.NotificationType == protocol.R_U_THERE:
			s.sendNotify(protocol.R_U_THERE_ACK, n.Spi)
		case n.NotificationType == protocol.R_U_THERE_ACK:
			// Liveness confirmed; nothing further to do.
		case n.NotificationType == protocol.CISCO_LOAD_BALANCE:
			handleLoadBalance(s, n)
		default:
			log.Infof("%snotify %s received, no local handling", s.Tag(), n.NotificationType)
		}
	}

	for _, p := range m.Payloads.All(protocol.PayloadTypeD) {
		d := p.(*protocol.DeletePayload)
		s.handleDelete(d)
	}

	return microcode.ResultOk()
}

// handleLoadBalance implements the documented, non-default behavior
// for CISCO_LOAD_BALANCE: the last four bytes of the notification's
// data carry the new endpoint's IPv4 address (an all-zero address is
// ignored), and redirecting mutates the Connection shared by every SA
// negotiated against this peer, not just the one that received the
// notify. Only the Connection's RemoteAddr changes; the current SA is
// not deleted and nothing is re-initiated here.
func handleLoadBalance(s *Session, n *protocol.NotifyPayload) {
	if len(n.Data) < 4 {
		log.Warningf("%sCISCO_LOAD_BALANCE notify too short to carry an address", s.Tag())
		return
	}
	ip := net.IP(append([]byte{}, n.Data[len(n.Data)-4:]...))
	if ip.Equal(net.IPv4zero) {
		log.Warningf("%sCISCO_LOAD_BALANCE notify carries the all-zero address, ignored", s.Tag())
		return
	}
	newAddr := &net.UDPAddr{IP: ip, Port: s.Conn.RemoteAddr.Port}
	s.Conn.Redirect(newAddr)
}

// handleDelete removes whatever local state a peer-originated Delete
// payload names. An ISAKMP-protocol delete tears the whole session
// down; an ESP/AH delete only concerns a Quick Mode child and is
// logged, since per-child-SA bookkeeping is out of scope for this
// Session (it tracks one negotiated ESP suite at a time).
func (s *Session) handleDelete(d *protocol.DeletePayload) {
	if d.ProtocolId == protocol.PROTO_ISAKMP {
		log.Infof("%speer deleted ISAKMP SA", s.Tag())
		s.teardown()
		return
	}
	for _, spi := range d.Spis {
		log.Infof("%speer deleted %s SPI %x", s.Tag(), d.ProtocolId, spi)
	}
}
