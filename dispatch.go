package ike

import (
	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
	"github.com/msgboxio/ikev1/protocol"
)

// dispatch is the entry point for every inbound message: it resolves
// which from_state the message belongs to, matches a microcode
// transition, checks for a cached duplicate, decodes the body and
// validates the payload grammar and hash, runs the matched handler,
// and applies whatever Result the handler returned.
func (s *Session) dispatch(m *Message) error {
	if s.suspendedContinue != nil {
		log.Warningf("%sexchange in flight, dropping message", s.Tag())
		return nil
	}

	if m.IkeHeader.NextPayload == protocol.PayloadTypeFRAG {
		reassembled, err := s.reassembleFragment(m)
		if err != nil {
			s.countMalformed()
			return s.sendNotifyFor(m, err)
		}
		if reassembled == nil {
			return nil
		}
		m = reassembled
	}

	if err := validateExchangeHeader(m); err != nil {
		s.countMalformed()
		return s.sendNotifyFor(m, err)
	}

	from, advance := s.fromStateFor(m)

	auth := s.AuthClass
	authKnown := s.State != protocol.MAIN_R0 && s.State != protocol.AGGR_R0
	tr, ok := microcode.Lookup(from, auth, authKnown)
	if !ok {
		return s.sendNotifyFor(m, protocol.ErrF(protocol.UNSUPPORTED_EXCHANGE_TYPE, "no transition for state %s", from))
	}

	if dup, reply := s.checkDuplicate(m); dup {
		if reply != nil && tr.Flags.Has(microcode.FlagRetransmitOnDuplicate) {
			s.send(reply)
		}
		return nil
	}

	if err := s.decodeBody(m); err != nil {
		s.countMalformed()
		return s.sendNotifyForPlaintext(m, err)
	}

	if err := s.checkPayloads(m, tr); err != nil {
		s.countMalformed()
		return s.sendNotifyForPlaintext(m, err)
	}

	if tr.HashType != microcode.HashNone {
		if err := s.prepareSharedSecretIfNeeded(m); err != nil {
			s.countMalformed()
			return s.sendNotifyForPlaintext(m, err)
		}
		if err := s.verifyTransitionHash(m, tr); err != nil {
			return s.sendNotifyForPlaintext(m, err)
		}
	}

	handler, ok := microcode.Handler(tr.Handler)
	if !ok {
		log.Warningf("%sno handler registered for %s", s.Tag(), tr.Handler)
		return protocol.ErrF(protocol.INTERNAL_DECODE_ERROR, "unregistered handler %s", tr.Handler)
	}

	ex := &sessionExchange{session: s, msg: m, transition: tr, advance: advance}
	result := handler(ex)
	return s.applyResult(m, tr, ex, result)
}

// fromStateFor resolves the microcode from_state an inbound message's
// transition should be looked up under, and the advance closure that
// applies wherever that state lives once the transition commits.
//
// Main/Aggressive Mode and a Phase 1 SA's own Informational traffic
// address the Session's single State field directly, matching one
// ISAKMP SA's single always-in-flight exchange. Quick Mode and
// Transaction (XAUTH/Mode-Config) exchanges are different: several can
// run concurrently over one completed Phase 1 SA, each identified by
// its own message-id, so each tracks its own from_state in subState
// rather than overwriting the Session's.
func (s *Session) fromStateFor(m *Message) (protocol.FromState, func(protocol.FromState)) {
	h := m.IkeHeader
	switch h.ExchangeType {
	case protocol.EXCHANGE_QUICK:
		if st, ok := s.subState[h.MsgId]; ok {
			return st, func(to protocol.FromState) { s.subState[h.MsgId] = to }
		}
		return protocol.QUICK_R0, func(to protocol.FromState) { s.subState[h.MsgId] = to }

	case protocol.EXCHANGE_TRANSACTION:
		if st, ok := s.subState[h.MsgId]; ok {
			return st, func(to protocol.FromState) { s.subState[h.MsgId] = to }
		}
		return s.initialTransactionState(m), func(to protocol.FromState) { s.subState[h.MsgId] = to }

	case protocol.EXCHANGE_INFO:
		if s.Oakley != nil && s.skeyid != nil {
			return protocol.INFO_PROTECTED, func(protocol.FromState) {}
		}
		return protocol.INFO, func(protocol.FromState) {}

	default:
		return s.State, func(to protocol.FromState) { s.State = to }
	}
}

// applyResult turns a handler's Result into the concrete side effects
// the dispatcher owns: state advance, timer scheduling, reply
// transmission, and SA teardown for Fatal outcomes (InternalError is
// only logged; the SA is kept).
//
// Suspend is the one outcome that does not resolve here: the handler
// already parked a continuation on suspendedContinue (via
// suspendForDh) before returning it, and that continuation -- not a
// second call to dispatch -- is what eventually finishes the
// transition, from resumeSuspended.
func (s *Session) applyResult(m *Message, tr *microcode.Transition, ex *sessionExchange, result microcode.Result) error {
	s.lastReceived = m.Raw

	switch result.Outcome {
	case microcode.Suspend:
		return nil

	case microcode.Ignore:
		return nil

	case microcode.Fail:
		s.discardQuickModeChild(m)
		return s.sendNotifyFor(m, protocol.ErrF(result.Notify, "transition failed"))

	case microcode.Fatal:
		log.Warningf("%sfatal error in %s, tearing down SA", s.Tag(), tr.Handler)
		s.teardown()
		return nil

	case microcode.InternalError:
		log.Warningf("%sinternal error in %s", s.Tag(), tr.Handler)
		return nil
	}

	return s.commit(m, tr, ex)
}

// commit applies a transition's successful outcome: advance state,
// send whatever reply the handler built, arm the transition's timer,
// and release any Quick Mode requests a Connection held back. It is
// called both from applyResult's non-suspending path and, once a
// suspended transition's continuation has finished building the rest
// of its reply, directly from that continuation.
func (s *Session) commit(m *Message, tr *microcode.Transition, ex *sessionExchange) error {
	ex.advance(tr.ToState)

	if tr.Flags.Has(microcode.FlagReply) && ex.reply != nil {
		encrypted := tr.Flags.Has(microcode.FlagOutputEncrypted)
		replyHeader := &protocol.IkeHeader{
			IcookieSpi: s.IkeSpiI, RcookieSpi: s.IkeSpiR,
			MajorVersion: protocol.ISAKMP_MAJOR_VERSION, MinorVersion: protocol.ISAKMP_MINOR_VERSION,
			ExchangeType: m.IkeHeader.ExchangeType, MsgId: m.IkeHeader.MsgId,
		}
		reply, err := s.encodeReply(replyHeader, ex.reply, encrypted)
		if err != nil {
			return err
		}
		s.send(reply)
	}

	s.armTimer(tr)

	if tr.Flags.Has(microcode.FlagReleasePendingP2) {
		s.releasePendingQuickModes()
	}

	return nil
}

// sendNotifyFor logs err and, when it carries a wire notification
// type, sends it back to the peer in an Informational exchange.
func (s *Session) sendNotifyFor(m *Message, err error) error {
	log.Warningf("%s%v", s.Tag(), err)
	ie, ok := err.(protocol.IkeError)
	if !ok || ie.NotificationType == protocol.INTERNAL_DECODE_ERROR {
		return err
	}
	s.sendNotify(ie.NotificationType, nil)
	return err
}

// sendNotifyForPlaintext applies the payload-decoder/integrity-gate
// failure rule: a plaintext message that fails decode, grammar, or
// hash verification gets a notification telling the peer what was
// wrong, but an encrypted message that fails the same checks is just
// dropped. Answering an encrypted failure at all would let an
// attacker distinguish a decrypt failure from a grammar violation from
// a HASH mismatch one probe at a time -- an oracle into key material
// this engine never hands out.
func (s *Session) sendNotifyForPlaintext(m *Message, err error) error {
	if m.IkeHeader.Flags.IsEncrypted() {
		log.Warningf("%s%v (encrypted, dropping)", s.Tag(), err)
		return err
	}
	return s.sendNotifyFor(m, err)
}

// discardQuickModeChild drops a Quick Mode exchange's subState entry
// on FAIL, the "discard Quick-mode SAs" half of that outcome -- a
// failed Phase 2 negotiation does not linger as a retriable from_state
// under its msgid.
func (s *Session) discardQuickModeChild(m *Message) {
	if m.IkeHeader.ExchangeType == protocol.EXCHANGE_QUICK {
		delete(s.subState, m.IkeHeader.MsgId)
	}
}

// teardown tears down the Session's SA state and cancels its event
// loop; onRemoveSa fires first so the caller can withdraw any
// installed dataplane state before the loop exits.
func (s *Session) teardown() {
	if s.onRemoveSa != nil {
		if err := s.onRemoveSa(s); err != nil {
			log.Warningf("%sonRemoveSa: %v", s.Tag(), err)
		}
	}
	s.Close()
}
