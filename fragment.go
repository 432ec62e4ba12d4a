package ike

import (
	"github.com/msgboxio/ikev1/protocol"
)

// reassembleFragment feeds one inbound fragment datagram (IkeHeader.
// NextPayload == PayloadTypeFRAG) into this session's reassembler. It
// returns a reconstructed Message once every fragment up to the
// last-marked index has arrived, or (nil, nil) while more fragments
// are still expected.
//
// The responder's half of the SPI pair, exchange type and msgid are
// unaffected by fragmentation, so the reassembled Message reuses the
// original header verbatim except for NextPayload: the vendor scheme
// this reassembler implements only ever fragments an already-encrypted
// post-Phase-1 message, and RFC 2409 requires every such message to
// begin with a HASH payload, so that is the value the header is
// rewritten to once the fragments are concatenated back into one body.
func (s *Session) reassembleFragment(m *Message) (*Message, error) {
	chain, err := protocol.DecodePayloadChain(protocol.PayloadTypeFRAG, m.Body(), false)
	if err != nil {
		return nil, err
	}
	f, ok := chain.First(protocol.PayloadTypeFRAG).(*protocol.FragmentPayload)
	if !ok {
		return nil, protocol.ErrF(protocol.PAYLOAD_MALFORMED, "fragment payload missing")
	}

	if s.Conn.Config.DisableFragmentation {
		s.reassembler.Discard(f)
		return nil, nil
	}

	body, err := s.reassembler.Add(f)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	header := *m.IkeHeader
	header.NextPayload = protocol.PayloadTypeHASH
	header.MsgLength = uint32(protocol.IKE_HEADER_LEN + len(body))
	return &Message{
		IkeHeader:  &header,
		Raw:        append(header.Encode(), body...),
		RemoteAddr: m.RemoteAddr,
		LocalAddr:  m.LocalAddr,
	}, nil
}

// validateExchangeHeader enforces the demultiplexer's per-exchange-type
// message-id rules (RFC 2408 3.1's msgid, read per RFC 2409's exchange
// semantics): Main and Aggressive Mode run entirely at msgid 0, while
// Quick Mode, Transaction (XAUTH/Mode-Config) and an encrypted
// Informational exchange each identify their own run by a non-zero
// msgid. An exchange type this table has no entry for at all is
// rejected outright rather than falling through to Main/Aggressive
// Mode's state machine.
func validateExchangeHeader(m *Message) error {
	h := m.IkeHeader
	switch h.ExchangeType {
	case protocol.EXCHANGE_IDPROT, protocol.EXCHANGE_AGGR:
		if h.MsgId != 0 {
			return protocol.ErrF(protocol.INVALID_MESSAGE_ID, "%s requires msgid 0, got %d", h.ExchangeType, h.MsgId)
		}
	case protocol.EXCHANGE_INFO:
		if h.Flags.IsEncrypted() && h.MsgId == 0 {
			return protocol.ErrF(protocol.INVALID_MESSAGE_ID, "encrypted informational exchange requires non-zero msgid")
		}
	case protocol.EXCHANGE_QUICK, protocol.EXCHANGE_TRANSACTION:
		if h.MsgId == 0 {
			return protocol.ErrF(protocol.INVALID_MESSAGE_ID, "%s requires non-zero msgid", h.ExchangeType)
		}
	default:
		return protocol.ErrF(protocol.UNSUPPORTED_EXCHANGE_TYPE, "unsupported exchange type %s", h.ExchangeType)
	}
	return nil
}
