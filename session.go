package ike

import (
	"context"
	"math/big"

	kitlog "github.com/go-kit/kit/log"
	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/ikecrypto"
	"github.com/msgboxio/ikev1/platform"
	"github.com/msgboxio/ikev1/protocol"
	"github.com/msgboxio/ikev1/reassembly"
)

// WriteData hands one encoded datagram to the transport.
type WriteData func([]byte) error

// SaCallback notifies the caller that an SA (Phase 1 or a Quick Mode
// child) was installed or torn down, so it can program the dataplane.
type SaCallback func(*Session) error

// Session is one ISAKMP (Phase 1) SA and the state machine driving it
// and whatever Quick Mode children it negotiates. Main/Aggressive Mode
// runs one exchange at a time, tracked in State; Quick Mode and
// Transaction exchanges over the completed Phase 1 SA are tracked per
// message-id in subState, so several can be in flight at once.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	Conn *Connection

	// demux is set by the Demux that created this Session (responder
	// Sessions only) so MAIN_R0/AGGR_R0's handler can re-key the demux's
	// lookup table once it has picked its half of the SPI pair.
	demux *Demux

	IsInitiator bool
	State       protocol.FromState
	AuthClass   protocol.AuthClass

	IkeSpiI, IkeSpiR protocol.Spi

	Oakley *ikecrypto.OakleySuite

	skeyid, skeyidD, skeyidA, skeyidE []byte

	privateKey            *big.Int
	publicKey, peerPublic *big.Int
	nonceI, nonceR        *big.Int

	// iv is the chaining IV used for the next message this Session sends
	// or receives; phase1FinalIv is iv's value right after Main/Aggressive
	// Mode completes, the point every subsequent Quick/Informational
	// exchange re-derives its own per-message IV from (RFC 2409 5.3/5.5).
	iv, phase1FinalIv []byte
	exchangeIvs       map[uint32][]byte

	initSaBytes []byte // raw SAi_b bytes from the first Main/Aggressive Mode message, a HASH input

	lastSent, lastReceived []byte
	duplicatesAnswered     int

	malformedCount int

	reassembler *reassembly.Reassembler

	helper ikecrypto.Helper

	// suspendedContinue is non-nil while a Diffie-Hellman computation is
	// outstanding on the crypto helper: it holds the rest of the
	// in-flight transition's work, deferred until the shared secret is
	// available, and is invoked (not re-dispatched) by resumeSuspended.
	suspendedContinue func()

	pendingQuickModes []*Message // held back by DeferQuickModeUntilModeCfg

	// subState tracks from_state for exchanges that run independently of
	// this Session's own Main/Aggressive Mode progress -- Quick Mode and
	// Transaction (XAUTH/Mode-Config), each identified by message-id,
	// since a completed Phase 1 SA can carry several of these
	// concurrently where Session.State has already settled at a terminal
	// self-loop.
	subState map[uint32]protocol.FromState

	incoming  chan *Message
	outgoing  chan []byte
	writeData WriteData

	onAddSa, onRemoveSa SaCallback

	espSpiI, espSpiR protocol.Spi
	ipsec            *ikecrypto.IpsecSuite
	lastEspTransform *protocol.SaTransform

	// pendingLocalSel/pendingRemoteSel hold the traffic selectors a
	// responder agreed to in quickR0 until quickR1Confirm needs them
	// again to install its half of the child SA once HASH(3) arrives --
	// IKEv1 has no concept of more than one Quick Mode exchange sharing
	// a selector pair at a time, consistent with nonceI/nonceR and
	// espSpiI/espSpiR already being reused the same way across Quick
	// Mode exchanges rather than tracked per message-id.
	pendingLocalSel, pendingRemoteSel *protocol.Phase2IdPayload

	// installer drives the kernel dataplane once a child SA is ready;
	// nil is valid (platform.NullInstaller's zero value behavior) for
	// callers that only want the onAddSa/onRemoveSa callbacks.
	installer platform.Installer

	// xauthUser/xauthPassword are the credentials this Session answers a
	// XAUTH server's CFG_REQUEST with when acting as a client.
	xauthUser, xauthPassword string

	// assignedAddress is the internal-network configuration a Mode-
	// Config server assigned this Session, when acting as a client.
	assignedAddress *InternalAddress

	logger kitlog.Logger
}

// NewSession creates a Session bound to conn, ready to run. isInitiator
// picks the initial from_state (I1 for an outbound connection attempt,
// R0 for a server accepting an unrecognized icookie).
func NewSession(ctx context.Context, conn *Connection, isInitiator bool, helper ikecrypto.Helper, logger kitlog.Logger) *Session {
	cctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ctx:         cctx,
		cancel:      cancel,
		Conn:        conn,
		IsInitiator: isInitiator,
		helper:      helper,
		reassembler: reassembly.New(),
		exchangeIvs: make(map[uint32][]byte),
		subState:    make(map[uint32]protocol.FromState),
		incoming:    make(chan *Message, 8),
		outgoing:    make(chan []byte, 8),
		logger:      logger,
	}
	if isInitiator {
		s.State = protocol.MAIN_I1
	} else {
		s.State = protocol.MAIN_R0
	}
	return s
}

func (s *Session) Tag() string {
	return "[" + s.IkeSpiI.String() + ":" + s.IkeSpiR.String() + "] "
}

func (s *Session) AddSaHandlers(onAddSa, onRemoveSa SaCallback) {
	s.onAddSa, s.onRemoveSa = onAddSa, onRemoveSa
}

// SetInstaller configures the kernel dataplane driver a completed
// Quick Mode negotiation installs its child SA into. Unset, only
// onAddSa/onRemoveSa fire.
func (s *Session) SetInstaller(installer platform.Installer) {
	s.installer = installer
}

func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Close cancels the session's context, unwinding Run's select loop on
// its next iteration.
func (s *Session) Close() { s.cancel() }

// PostMessage hands one decoded inbound message to the session's event
// loop. It never blocks the caller (the demultiplexer's single read
// loop): the incoming channel is buffered, and a full channel drops the
// message with a log rather than stalling every other session.
func (s *Session) PostMessage(m *Message) {
	select {
	case s.incoming <- m:
	default:
		log.Warningf("%ssession busy, dropping message", s.Tag())
	}
}

// Run is the session's single-goroutine event loop: every state
// mutation happens here, so no mutex guards Session's fields. Inbound
// packets, outbound writes, and completed crypto helper work are all
// select cases, and helper completions resume suspended exchanges from
// this same loop rather than a separate goroutine touching SA state.
func (s *Session) Run(writeData WriteData) {
	s.writeData = writeData
	for {
		select {
		case msg, ok := <-s.incoming:
			if !ok {
				return
			}
			if err := s.dispatch(msg); err != nil {
				log.Warningf("%s%v", s.Tag(), err)
			}
		case reply, ok := <-s.outgoing:
			if !ok {
				return
			}
			if err := s.writeData(reply); err != nil {
				log.Warningf("%swrite failed: %v", s.Tag(), err)
			}
		case resp, ok := <-s.helper.Results():
			if !ok {
				return
			}
			s.resumeSuspended(resp)
		case <-s.ctx.Done():
			log.Infof("%sfinished", s.Tag())
			return
		}
	}
}

// send queues reply on the outgoing channel and remembers it as
// lastSent so the duplicate controller can retransmit it verbatim.
func (s *Session) send(reply []byte) {
	s.lastSent = reply
	select {
	case s.outgoing <- reply:
	case <-s.ctx.Done():
	}
}
