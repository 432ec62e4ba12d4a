package ike

import (
	"context"
	"net"
	"sync"

	kitlog "github.com/go-kit/kit/log"
	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/ikecrypto"
	"github.com/msgboxio/ikev1/protocol"
)

// Demux is the packet demultiplexer: it reads raw datagrams off one
// Conn, decodes just the fixed header, and routes each message to the
// Session that owns its SPI pair -- spawning a new responder Session
// on an unrecognized initiator cookie, the entry point for every
// inbound negotiation this engine did not start itself.
type Demux struct {
	conn Conn
	cfg  *Config
	ctx  context.Context

	helper ikecrypto.Helper
	logger kitlog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	conns    map[string]*Connection
}

func NewDemux(ctx context.Context, conn Conn, cfg *Config, helper ikecrypto.Helper, logger kitlog.Logger) *Demux {
	return &Demux{
		conn:     conn,
		cfg:      cfg,
		ctx:      ctx,
		helper:   helper,
		logger:   logger,
		sessions: map[string]*Session{},
		conns:    map[string]*Connection{},
	}
}

func addrKey(a *net.UDPAddr) string { return a.String() }

func sessionKey(icookie, rcookie protocol.Spi) string {
	return icookie.String() + ":" + rcookie.String()
}

// connectionFor returns the Connection already known for remoteAddr,
// or creates a fresh default one -- the first message from a
// never-seen peer always succeeds at the demux layer; policy
// rejection, if any, happens once Main/Aggressive Mode actually
// negotiates. The caller (route) already holds d.mu.
func (d *Demux) connectionFor(localAddr, remoteAddr *net.UDPAddr) *Connection {
	key := addrKey(remoteAddr)
	if c, ok := d.conns[key]; ok {
		return c
	}
	c := &Connection{LocalAddr: localAddr, RemoteAddr: remoteAddr, Config: d.cfg}
	d.conns[key] = c
	return c
}

// Run is the demultiplexer's read loop: one goroutine reads every
// inbound datagram off conn and hands it to the matching session,
// for as long as ctx is alive.
func (d *Demux) Run() {
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}
		raw, remoteAddr, localAddr, err := ReadRawMessage(d.conn)
		if err != nil {
			log.Warningf("ike: read failed: %v", err)
			continue
		}
		ua, ok := remoteAddr.(*net.UDPAddr)
		if !ok {
			continue
		}
		m, err := DecodeHeader(raw)
		if err != nil {
			log.Warningf("ike: header decode failed from %s: %v", ua, err)
			continue
		}
		m.RemoteAddr = ua
		m.LocalAddr = localAddr
		d.route(m)
	}
}

// route finds (or creates) the Session for m's SPI pair and hands the
// message off to it. A fragment (PayloadTypeFRAG as the message's
// first and only payload) is reassembled on the Session's own event
// loop rather than here (dispatch's reassembleFragment), since the
// reassembler is session state touched only by that single goroutine,
// the same invariant every other field on Session relies on.
func (d *Demux) route(m *Message) {
	h := m.IkeHeader
	d.mu.Lock()
	key := sessionKey(h.IcookieSpi, h.RcookieSpi)
	s, ok := d.sessions[key]
	if !ok && h.IcookieOnly() {
		conn := d.connectionFor(localAddrOf(d.conn), m.RemoteAddr.(*net.UDPAddr))
		s = NewSession(d.ctx, conn, false, d.helper, d.logger)
		s.demux = d
		s.IkeSpiI = h.IcookieSpi
		if h.ExchangeType == protocol.EXCHANGE_AGGR {
			s.State = protocol.AGGR_R0
		}
		d.sessions[sessionKey(h.IcookieSpi, nil)] = s
		go s.Run(d.writerFor(m.RemoteAddr.(*net.UDPAddr)))
	} else if !ok {
		// Not a fresh icookie and no session under the full pair yet:
		// this may be the first reply to an exchange we initiated, still
		// parked under the icookie-only bucket because it has not yet
		// learned the responder's half of the SPI pair (mainI1/aggrI1's
		// handler rebinds it once it does).
		if pending, found := d.sessions[sessionKey(h.IcookieSpi, nil)]; found && pending.IsInitiator {
			s = pending
		}
	}
	d.mu.Unlock()
	if s == nil {
		log.Warningf("ike: no session for %s, dropping", key)
		return
	}
	s.PostMessage(m)
}

// StartInitiatorSession creates a Session for a new outbound negotiation
// to remoteAddr, registers it in this demux's lookup table under its
// icookie (the same bucket a responder Session briefly occupies before
// BindResponderCookie moves it), starts its event loop, and returns it
// without sending anything -- the caller drives the exchange itself with
// StartMainMode or StartAggressiveMode once it holds the Session.
func (d *Demux) StartInitiatorSession(remoteAddr *net.UDPAddr, cfg *Config) *Session {
	conn := &Connection{LocalAddr: localAddrOf(d.conn), RemoteAddr: remoteAddr, Config: cfg}
	s := NewSession(d.ctx, conn, true, d.helper, d.logger)
	s.demux = d
	go s.Run(d.writerFor(remoteAddr))
	return s
}

// registerIcookie publishes an initiator Session under its icookie-only
// key once it has picked one (StartMainMode/StartAggressiveMode, right
// before sending the first message) so the reply naming the responder's
// half of the SPI pair can find its way back to it via route's pending
// lookup above.
func (d *Demux) registerIcookie(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[sessionKey(s.IkeSpiI, nil)] = s
}

// BindResponderCookie re-keys a responder Session once it has assigned
// its half of the SPI pair (MAIN_R0/AGGR_R0's handler), moving it from
// the icookie-only bucket to the full SPI-pair key every subsequent
// message for this SA arrives under.
func (d *Demux) BindResponderCookie(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionKey(s.IkeSpiI, nil))
	d.sessions[sessionKey(s.IkeSpiI, s.IkeSpiR)] = s
}

func (d *Demux) writerFor(remote *net.UDPAddr) WriteData {
	return func(b []byte) error {
		return d.conn.WritePacket(b, remote)
	}
}

func localAddrOf(c Conn) *net.UDPAddr {
	if ua, ok := c.LocalAddr().(*net.UDPAddr); ok {
		return ua
	}
	return &net.UDPAddr{}
}
