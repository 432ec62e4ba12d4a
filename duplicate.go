package ike

import (
	"bytes"

	"github.com/msgboxio/log"
)

// checkDuplicate compares m's raw bytes against the last message this
// session received. A byte-identical retransmit of an already-answered
// request is the common case (the peer's own retransmit timer fired
// before our reply arrived); reporting dup=true tells dispatch to
// resend the cached reply instead of reprocessing a message whose side
// effects (state advance, SA installation) must not run twice.
//
// A session stops replaying once MaximumAcceptedDuplicates is
// exhausted: it keeps logging the duplicate but answers no further,
// the conventional bound against a peer stuck retransmitting forever.
func (s *Session) checkDuplicate(m *Message) (dup bool, reply []byte) {
	if s.lastReceived == nil || !bytes.Equal(s.lastReceived, m.Raw) {
		return false, nil
	}
	max := s.Conn.Config.MaximumAcceptedDuplicates
	if s.duplicatesAnswered >= max {
		log.Warningf("%sduplicate request exceeds limit (%d), not re-answering", s.Tag(), max)
		return true, nil
	}
	s.duplicatesAnswered++
	return true, s.lastSent
}

// countMalformed increments the session's malformed-payload counter and
// tears the SA down once MaximumMalformedNotify is reached -- a peer
// sending one garbled message after another gets a bounded number of
// chances before the session gives up on it.
func (s *Session) countMalformed() {
	s.malformedCount++
	if s.malformedCount >= s.Conn.Config.MaximumMalformedNotify {
		log.Warningf("%smalformed payload count exceeds limit (%d), tearing down", s.Tag(), s.Conn.Config.MaximumMalformedNotify)
		s.teardown()
	}
}
