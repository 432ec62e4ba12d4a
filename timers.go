package ike

import (
	"time"

	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/microcode"
)

const (
	retransmitInterval = 2 * time.Second
	maxRetransmits      = 5
	soDiscardTimeout    = 10 * time.Second
	saReplaceMargin     = 30 * time.Second
)

// armTimer schedules the background action a transition's Timer field
// names. RETRANSMIT rearms itself up to maxRetransmits times by
// resending lastSent; SO_DISCARD tears the session down if no further
// progress arrives in time, because an initial exchange that stalls
// should not hold state forever. SA_REPLACE arms nothing.
func (s *Session) armTimer(tr *microcode.Transition) {
	switch tr.Timer {
	case microcode.TimerRetransmit:
		s.scheduleRetransmit(0)
	case microcode.TimerSoDiscard:
		s.scheduleDiscard(soDiscardTimeout)
	case microcode.TimerSaReplace:
		// Rekeying is driven by the installed SA's own lifetime
		// attributes, not a fixed session timer; nothing to arm here
		// beyond the discard guard already covering the exchange.
	}
}

func (s *Session) scheduleRetransmit(attempt int) {
	if attempt >= maxRetransmits {
		log.Warningf("%sretransmit limit reached, tearing down", s.Tag())
		s.teardown()
		return
	}
	go func() {
		select {
		case <-time.After(retransmitInterval):
		case <-s.Done():
			return
		}
		if s.lastSent == nil {
			return
		}
		s.send(s.lastSent)
		s.scheduleRetransmit(attempt + 1)
	}()
}

func (s *Session) scheduleDiscard(d time.Duration) {
	go func() {
		select {
		case <-time.After(d):
			log.Infof("%sdiscarding half-open exchange", s.Tag())
			s.teardown()
		case <-s.Done():
		}
	}()
}
