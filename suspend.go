package ike

import (
	"math/big"

	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/ikecrypto"
)

// suspendForDh hands a Diffie-Hellman computation off to the crypto
// helper and parks cont, the rest of the in-flight transition's work,
// until the matching Response arrives on helper.Results(). Run's
// select loop stays responsive to other sessions' work in the
// meantime rather than blocking on modular exponentiation.
func (s *Session) suspendForDh(peer *big.Int, cont func()) {
	s.suspendedContinue = cont
	s.helper.Submit(s.ctx, ikecrypto.Request{
		Kind:    ikecrypto.JobDiffieHellman,
		Digest:  s,
		Suite:   s.Oakley,
		Private: s.privateKey,
		Peer:    peer,
	})
}

// resumeSuspended applies one completed crypto helper Response: it
// installs the shared secret (the SKEYID family now derivable) and
// runs the continuation the suspending handler left behind, rather
// than re-entering dispatch and re-running that handler from scratch.
//
// Only one exchange is ever suspended per session at a time -- IKEv1
// has no concept of multiple outstanding exchanges -- so Digest exists
// to let a single shared Helper serve many sessions concurrently, not
// to disambiguate within one.
func (s *Session) resumeSuspended(resp ikecrypto.Response) {
	cont := s.suspendedContinue
	if cont == nil {
		return
	}
	s.suspendedContinue = nil
	if resp.Err != nil {
		log.Warningf("%scrypto helper error: %v", s.Tag(), resp.Err)
		return
	}
	if resp.Shared != nil {
		s.installSharedSecret(resp.Shared)
	}
	cont()
}

// releasePendingQuickModes re-dispatches every Quick Mode request a
// Connection with DeferQuickModeUntilModeCfg held back while Mode
// Config finished (SOFTREMOTE_CLIENT_WORKAROUND), in arrival order.
func (s *Session) releasePendingQuickModes() {
	pending := s.pendingQuickModes
	s.pendingQuickModes = nil
	for _, m := range pending {
		if err := s.dispatch(m); err != nil {
			log.Warningf("%s%v", s.Tag(), err)
		}
	}
}
