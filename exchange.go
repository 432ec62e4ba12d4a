package ike

import (
	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

// sessionExchange adapts one inbound Message, the Session it belongs
// to, and the transition the dispatcher matched to the narrow view
// microcode.Exchange handler functions see.
type sessionExchange struct {
	session    *Session
	msg        *Message
	transition *microcode.Transition
	reply      *protocol.PayloadChain

	// advance applies a transition's ToState wherever this exchange's
	// from_state actually lives -- Session.State for Main/Aggressive
	// Mode, Session.subState[msgid] for Quick Mode and Transaction
	// exchanges, a no-op for Informational's self-loops. Set by
	// fromStateFor when dispatch builds this exchange.
	advance func(protocol.FromState)
}

func (e *sessionExchange) Header() *protocol.IkeHeader     { return e.msg.IkeHeader }
func (e *sessionExchange) Payloads() *protocol.PayloadChain { return e.msg.Payloads }
func (e *sessionExchange) Transition() *microcode.Transition { return e.transition }

func (e *sessionExchange) AddPayload(p protocol.Payload) {
	if e.reply == nil {
		e.reply = protocol.NewPayloadChain()
	}
	e.reply.Add(p)
}
