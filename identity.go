package ike

import (
	"net"

	"github.com/msgboxio/ikev1/protocol"
)

// defaultLocalId builds the Phase 1 identity a Session sends when the
// Connection has none configured explicitly: an ID_IPV4_ADDR carrying
// the local endpoint, the common case for a PSK-authenticated gateway
// identified by address rather than name.
func defaultLocalId(addr *net.UDPAddr) *protocol.IdPayload {
	return &protocol.IdPayload{
		PayloadHeader: &protocol.PayloadHeader{},
		IdType:        protocol.ID_IPV4_ADDR,
		Data:          append([]byte{}, addr.IP.To4()...),
	}
}

// localId returns the Connection's configured identity, or the
// address-derived default when none was set.
func (s *Session) localId() *protocol.IdPayload {
	if s.Conn.LocalID != nil {
		return s.Conn.LocalID
	}
	return defaultLocalId(s.Conn.LocalAddr)
}

// recordRemoteId saves the peer's asserted identity on the Connection
// once Main/Aggressive Mode has authenticated it, so a subsequent
// Quick Mode or rekey on the same Connection can refer back to it.
func (s *Session) recordRemoteId(id *protocol.IdPayload) {
	s.Conn.RemoteID = id
}

// matchPhase2Selector reports whether the peer's asserted Quick Mode
// selector is consistent with the protocol/port this Session's
// Connection was configured to carry -- a selector naming a different
// protocol or port than what policy allows must be rejected
// (INVALID_ID_INFORMATION), not silently narrowed.
func matchPhase2Selector(offered *protocol.Phase2IdPayload, allowed *protocol.Phase2IdPayload) bool {
	if allowed == nil {
		return true
	}
	if allowed.ProtocolId != 0 && offered.ProtocolId != allowed.ProtocolId {
		return false
	}
	if allowed.Port != 0 && offered.Port != allowed.Port {
		return false
	}
	return true
}

// refineConnection looks for a more specific Connection to use than
// the one the demultiplexer matched by address alone, based on the
// peer's asserted Phase 1 identity -- e.g. several Connections sharing
// one NAT-translated address, disambiguated by ID payload rather than
// IP. Recursion is bounded to one level: a refined Connection's own
// identity is taken as final, it is never refined again.
func (s *Session) refineConnection(id *protocol.IdPayload, candidates []*Connection) *Connection {
	for _, c := range candidates {
		if c.RemoteID == nil {
			continue
		}
		if c.RemoteID.IdType == id.IdType && string(c.RemoteID.Data) == string(id.Data) {
			return c
		}
	}
	return s.Conn
}
