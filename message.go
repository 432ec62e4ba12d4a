package ike

import (
	"net"

	"github.com/msgboxio/ikev1/protocol"
)

// Message is one decoded ISAKMP datagram: the fixed header plus its
// payload chain, still possibly encrypted (Payloads is nil until the
// integrity gate has decrypted and parsed the body). Raw keeps the
// exact bytes as received, for duplicate-request comparison; the HASH
// checks re-encode the decrypted payloads instead (see decode.go).
type Message struct {
	IkeHeader *protocol.IkeHeader
	Payloads  *protocol.PayloadChain
	Raw       []byte

	RemoteAddr net.Addr
	LocalAddr  *net.UDPAddr

	// usePhase2Id selects Quick Mode's protocol/port-bearing ID payload
	// shape over Main/Aggressive Mode's bare identity, decided by the
	// demultiplexer from the SA this message belongs to before decoding
	// proceeds.
	usePhase2Id bool
}

// DecodeHeader parses just the fixed ISAKMP header, enough for the
// demultiplexer to find (or create) the SA this message belongs to
// before anything about its payload shape is known.
func DecodeHeader(b []byte) (*Message, error) {
	h, err := protocol.DecodeIkeHeader(b)
	if err != nil {
		return nil, err
	}
	return &Message{IkeHeader: h, Raw: b}, nil
}

// Body returns the message bytes following the fixed header.
func (m *Message) Body() []byte {
	return m.Raw[protocol.IKE_HEADER_LEN:]
}

// Encode serializes the header and, if Payloads is set, the payload
// chain following it; callers that need an encrypted body build Raw
// directly (see decode.go's encodeReply) and call this only for
// plaintext messages (IKE_SA_INIT's SA/KE/Nonce leg, Informational
// notifications sent before a Phase 1 SA exists).
func (m *Message) Encode() []byte {
	var body []byte
	next := protocol.PayloadTypeNone
	if m.Payloads != nil && len(m.Payloads.Order) > 0 {
		next = m.Payloads.Order[0].Type()
		body = protocol.EncodePayloadChain(m.Payloads)
	}
	m.IkeHeader.NextPayload = next
	m.IkeHeader.MsgLength = uint32(protocol.IKE_HEADER_LEN + len(body))
	return append(m.IkeHeader.Encode(), body...)
}
